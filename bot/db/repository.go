// Package db persists play history and guild settings in SQLite. The
// database is bookkeeping only: audio files live on disk under the cache
// directory and are managed by the buffer, never stored here.
package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/muhammadzakizn/sonora/bot"
)

// Repository provides access to the history database.
type Repository struct {
	db            *gorm.DB
	defaultVolume int
}

// NewSQLiteRepository creates a repository backed by SQLite.
func NewSQLiteRepository(dsn string, gormLogger logger.Interface) (*Repository, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn required")
	}

	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	dbDir := filepath.Dir(dsn)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, err
	}

	if err := applySQLitePragmas(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&PlayRecordModel{}, &GuildSettingsModel{}); err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Repository{
		db:            db,
		defaultVolume: 100,
	}, nil
}

// ConfigurePool updates the database connection pool settings.
func (r *Repository) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if maxOpen >= 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime >= 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	return nil
}

// SetDefaultVolume sets the volume used when creating new guild settings.
func (r *Repository) SetDefaultVolume(volume int) {
	if r == nil || volume <= 0 || volume > 200 {
		return
	}
	r.defaultVolume = volume
}

// RecordPlay inserts a history row for one playback attempt.
func (r *Repository) RecordPlay(ctx context.Context, record *bot.PlayRecord) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	model := recordToModel(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	record.ID = model.ID
	record.CreatedAt = model.CreatedAt
	record.UpdatedAt = model.UpdatedAt
	return nil
}

// RecentPlays returns the most recent history rows for a guild, newest first.
func (r *Repository) RecentPlays(ctx context.Context, guildID string, limit int) ([]bot.PlayRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	var models []PlayRecordModel
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]bot.PlayRecord, 0, len(models))
	for _, model := range models {
		records = append(records, recordToInternal(model))
	}
	return records, nil
}

// CountPlays returns the number of completed plays for a guild.
func (r *Repository) CountPlays(ctx context.Context, guildID string) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("repository not configured")
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&PlayRecordModel{}).
		Where("guild_id = ? AND outcome = ?", guildID, string(bot.OutcomePlayed)).
		Count(&count).Error
	return count, err
}

// TopTracks returns play counts grouped by track for a guild, most played
// first. Used by the stats command.
func (r *Repository) TopTracks(ctx context.Context, guildID string, limit int) ([]bot.PlayRecord, []int64, error) {
	if r == nil || r.db == nil {
		return nil, nil, errors.New("repository not configured")
	}
	if limit <= 0 {
		limit = 5
	}

	rows := make([]struct {
		Title  string
		Artist string
		Count  int64
	}, 0)
	err := r.db.WithContext(ctx).Model(&PlayRecordModel{}).
		Select("title, artist, COUNT(*) as count").
		Where("guild_id = ? AND outcome = ?", guildID, string(bot.OutcomePlayed)).
		Group("title, artist").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	records := make([]bot.PlayRecord, 0, len(rows))
	counts := make([]int64, 0, len(rows))
	for _, row := range rows {
		records = append(records, bot.PlayRecord{GuildID: guildID, Title: row.Title, Artist: row.Artist})
		counts = append(counts, row.Count)
	}
	return records, counts, nil
}

// GetGuildSettings retrieves settings for a guild, creating defaults if
// not present.
func (r *Repository) GetGuildSettings(ctx context.Context, guildID string) (*bot.GuildSettings, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("repository not configured")
	}
	var settings GuildSettingsModel
	err := r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := GuildSettingsModel{
			GuildID:       guildID,
			DefaultVolume: r.defaultVolume,
		}
		if createErr := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			DoNothing: true,
		}).Create(&defaults).Error; createErr != nil {
			return nil, createErr
		}
		err = r.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&settings).Error
	}
	if err != nil {
		return nil, err
	}
	return settingsToInternal(settings), nil
}

// UpdateGuildSettings updates guild settings.
func (r *Repository) UpdateGuildSettings(ctx context.Context, settings *bot.GuildSettings) error {
	if r == nil || r.db == nil {
		return errors.New("repository not configured")
	}
	model := settingsToModel(settings)
	return r.db.WithContext(ctx).Save(model).Error
}

// PruneHistory removes history rows older than the retention window.
func (r *Repository) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("repository not configured")
	}
	cutoff := time.Now().Add(-retention)
	res := r.db.WithContext(ctx).
		Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&PlayRecordModel{})
	return res.RowsAffected, res.Error
}

func applySQLitePragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-64000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
