package db

import (
	"gorm.io/gorm"

	"github.com/muhammadzakizn/sonora/bot"
)

// PlayRecordModel mirrors the play_records schema.
type PlayRecordModel struct {
	gorm.Model
	GuildID     string `gorm:"not null;index:idx_guild_created"`
	ChannelID   string
	Title       string
	Artist      string
	Album       string
	Provider    string
	DurationSec int
	Outcome     string `gorm:"not null;default:'played'"`
	Detail      string
	RequestedBy string
}

func (PlayRecordModel) TableName() string {
	return "play_records"
}

// GuildSettingsModel stores per-guild preferences.
type GuildSettingsModel struct {
	gorm.Model
	GuildID         string `gorm:"uniqueIndex;not null"`
	DefaultVolume   int    `gorm:"not null;default:100"`
	AnnounceChannel string
}

func (GuildSettingsModel) TableName() string {
	return "guild_settings"
}

func recordToInternal(model PlayRecordModel) bot.PlayRecord {
	return bot.PlayRecord{
		ID:          model.ID,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		GuildID:     model.GuildID,
		ChannelID:   model.ChannelID,
		Title:       model.Title,
		Artist:      model.Artist,
		Album:       model.Album,
		Provider:    model.Provider,
		DurationSec: model.DurationSec,
		Outcome:     bot.PlayOutcome(model.Outcome),
		Detail:      model.Detail,
		RequestedBy: model.RequestedBy,
	}
}

func recordToModel(record *bot.PlayRecord) *PlayRecordModel {
	if record == nil {
		return &PlayRecordModel{}
	}

	model := &PlayRecordModel{
		GuildID:     record.GuildID,
		ChannelID:   record.ChannelID,
		Title:       record.Title,
		Artist:      record.Artist,
		Album:       record.Album,
		Provider:    record.Provider,
		DurationSec: record.DurationSec,
		Outcome:     string(record.Outcome),
		Detail:      record.Detail,
		RequestedBy: record.RequestedBy,
	}

	if record.ID != 0 {
		model.ID = record.ID
	}
	if !record.CreatedAt.IsZero() {
		model.CreatedAt = record.CreatedAt
	}
	if !record.UpdatedAt.IsZero() {
		model.UpdatedAt = record.UpdatedAt
	}

	return model
}

func settingsToInternal(model GuildSettingsModel) *bot.GuildSettings {
	return &bot.GuildSettings{
		ID:              model.ID,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		GuildID:         model.GuildID,
		DefaultVolume:   model.DefaultVolume,
		AnnounceChannel: model.AnnounceChannel,
	}
}

func settingsToModel(settings *bot.GuildSettings) *GuildSettingsModel {
	model := &GuildSettingsModel{
		GuildID:         settings.GuildID,
		DefaultVolume:   settings.DefaultVolume,
		AnnounceChannel: settings.AnnounceChannel,
	}
	if settings.ID != 0 {
		model.ID = settings.ID
	}
	if !settings.CreatedAt.IsZero() {
		model.CreatedAt = settings.CreatedAt
	}
	if !settings.UpdatedAt.IsZero() {
		model.UpdatedAt = settings.UpdatedAt
	}
	return model
}
