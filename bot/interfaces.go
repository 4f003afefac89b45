package bot

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config provides typed access to configuration values.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetFloat64(key string) float64
	GetBool(key string) bool
}

// HistoryRepository defines storage operations for play history and guild
// settings. RecordPlay is fire-and-forget for callers: failures are logged
// by the caller and must never block or fail playback.
type HistoryRepository interface {
	RecordPlay(ctx context.Context, record *PlayRecord) error
	RecentPlays(ctx context.Context, guildID string, limit int) ([]PlayRecord, error)
	CountPlays(ctx context.Context, guildID string) (int64, error)
	TopTracks(ctx context.Context, guildID string, limit int) ([]PlayRecord, []int64, error)
	GetGuildSettings(ctx context.Context, guildID string) (*GuildSettings, error)
	UpdateGuildSettings(ctx context.Context, settings *GuildSettings) error
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	Submit(task func()) error
	SubmitWait(task func() error) error
	Shutdown(ctx context.Context) error
	Size() int
}
