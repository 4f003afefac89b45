package bot

import (
	"fmt"
	"strings"
	"time"
)

// TrackDescriptor is the immutable intent to play a track. It is created at
// enqueue time from a search result or playlist expansion and is never
// mutated afterwards, with one exception: ClearURL returns a copy with the
// source URL dropped so a provider is forced to re-search.
type TrackDescriptor struct {
	Title  string
	Artist string
	Album  string

	// Duration is the provider's estimate. Zero means unknown.
	Duration time.Duration

	// URL is the source URL the descriptor was created from, if any.
	URL string

	// TrackID is the provider-specific identifier, if any.
	TrackID string

	// Provider is the platform that produced this descriptor, if any.
	Provider string

	// VoiceChannelID is the channel affinity: the voice channel this entry
	// was requested for. Empty means "wherever the bot already is".
	VoiceChannelID string

	// RequestedBy is the user ID that enqueued the track.
	RequestedBy string
}

// Query returns the "artist title" search string for this descriptor.
func (d TrackDescriptor) Query() string {
	if d.Artist == "" {
		return d.Title
	}
	return d.Artist + " " + d.Title
}

// DisplayName returns the human-readable "Artist - Title" form.
func (d TrackDescriptor) DisplayName() string {
	if d.Artist == "" {
		return d.Title
	}
	return d.Artist + " - " + d.Title
}

// ClearURL returns a copy with the source URL removed, forcing the next
// download attempt to search instead of reusing a known-bad URL.
func (d TrackDescriptor) ClearURL() TrackDescriptor {
	d.URL = ""
	d.TrackID = ""
	return d
}

// ResolvedArtifact is a verified local audio file plus its provenance.
// Ownership transfers down the pipeline (downloader, verifier, buffer,
// player); it is never mutated concurrently.
type ResolvedArtifact struct {
	Path       string
	Provider   string
	Format     string
	Bitrate    int
	SampleRate int
	Size       int64
}

func (a *ResolvedArtifact) String() string {
	if a == nil {
		return "<nil artifact>"
	}
	return fmt.Sprintf("%s (%s, %dkbps via %s)", a.Path, a.Format, a.Bitrate, a.Provider)
}

// PlayOutcome records how a queue entry left the pipeline.
type PlayOutcome string

const (
	OutcomePlayed  PlayOutcome = "played"
	OutcomeSkipped PlayOutcome = "skipped"
	OutcomeFailed  PlayOutcome = "failed"
)

// PlayRecord is the persisted history row for one playback attempt.
type PlayRecord struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time

	GuildID     string
	ChannelID   string
	Title       string
	Artist      string
	Album       string
	Provider    string
	DurationSec int
	Outcome     PlayOutcome
	Detail      string
	RequestedBy string
}

// GuildSettings holds per-guild preferences.
type GuildSettings struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time

	GuildID         string
	DefaultVolume   int
	AnnounceChannel string
}

// CacheKey normalizes "artist - title" into a filesystem-safe cache key.
// Both the downloader naming scheme and the cache lookup use it, so a file
// written by one provider is found by every other.
func CacheKey(artist, title string) string {
	name := strings.TrimSpace(artist) + " - " + strings.TrimSpace(title)
	if strings.TrimSpace(artist) == "" {
		name = strings.TrimSpace(title)
	}
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
