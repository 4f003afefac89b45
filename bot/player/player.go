// Package player owns the clock-synchronized playback engine: one session
// per guild running a state machine over the queue, emitting progress and
// lyrics at a fixed cadence, and auto-advancing with channel-affinity and
// empty-channel policies.
package player

import (
	"context"
	"errors"
	"time"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// State is the playback state machine position.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateCompleted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrNotPlaying     = errors.New("player: nothing playing")
	ErrNotPaused      = errors.New("player: not paused")
	ErrAlreadyRunning = errors.New("player: session already running")
)

// PlayHandle controls one in-flight track on the audio sink. Done fires
// exactly once, on natural end-of-stream or after Stop.
type PlayHandle interface {
	Pause() error
	Resume() error
	Stop() error
	Done() <-chan error
}

// AudioSink is the voice transport boundary.
type AudioSink interface {
	// Connect joins or moves to the voice channel.
	Connect(ctx context.Context, channelID string) error

	// CurrentChannel returns the connected channel ID, empty when
	// disconnected.
	CurrentChannel() string

	Play(ctx context.Context, path string, volume int) (PlayHandle, error)
}

// MembershipQuerier counts non-bot members in a voice channel.
type MembershipQuerier interface {
	ListHumanMembers(channelID string) (int, error)
}

// Enricher fetches lyrics/artwork before playback and embeds metadata
// into the artifact so the cached file verifies by tags next time.
// Additive only: a nil result or embed failure must never block the
// track.
type Enricher interface {
	Enrich(ctx context.Context, desc bot.TrackDescriptor) *platform.EnrichedMetadata
	EmbedTags(artifactPath string, desc bot.TrackDescriptor, lyrics *platform.Lyrics) error
}

// ProgressUpdate is one emission of the synchronized display state.
type ProgressUpdate struct {
	GuildID  string
	Track    bot.TrackDescriptor
	State    State
	Elapsed  time.Duration
	Duration time.Duration
	Lyrics   *LyricsView
}

// Emitter receives progress updates at the emission cadence. Emitter
// implementations must not block; slow consumers drop updates.
type Emitter interface {
	EmitProgress(update ProgressUpdate)
}

// Options holds the engine timing tunables.
type Options struct {
	// TickInterval is the engine wake-up period (default 200ms).
	TickInterval time.Duration

	// EmitInterval is the progress emission cadence (default 1s).
	EmitInterval time.Duration

	// LyricsGap is the silence length that renders an instrumental
	// marker (default 500ms).
	LyricsGap time.Duration

	// Volume is the default playback volume (0-200, default 100).
	Volume int
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.TickInterval <= 0 {
		opts.TickInterval = 200 * time.Millisecond
	}
	if opts.EmitInterval <= 0 {
		opts.EmitInterval = time.Second
	}
	if opts.LyricsGap <= 0 {
		opts.LyricsGap = 500 * time.Millisecond
	}
	if opts.Volume <= 0 {
		opts.Volume = 100
	}
	return opts
}
