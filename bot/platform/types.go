package platform

import "time"

// Lyrics represents song lyrics with optional timestamped lines.
type Lyrics struct {
	// Plain is the plain text lyrics without timestamps.
	Plain string `json:"plain"`

	// Timestamped contains synchronized lyrics with timing information,
	// sorted ascending by Time. Empty when only plain lyrics exist.
	Timestamped []LyricLine `json:"timestamped,omitempty"`

	// Source is the provider that supplied the lyrics.
	Source string `json:"source,omitempty"`
}

// Synced reports whether timestamped lines are available.
func (l *Lyrics) Synced() bool {
	return l != nil && len(l.Timestamped) > 0
}

// Lines returns the plain lyrics split into display lines, used when no
// synchronized lyrics are available.
func (l *Lyrics) Lines() []string {
	if l == nil || l.Plain == "" {
		return nil
	}
	return splitPlainLines(l.Plain)
}

// LyricLine represents a single line of synchronized lyrics.
type LyricLine struct {
	// Time is the timestamp when this line should be displayed.
	Time time.Duration `json:"time"`

	// Text is the lyric text for this line.
	Text string `json:"text"`
}

// ArtworkRef points at cover art for a track.
type ArtworkRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// EnrichedMetadata is the additive per-track decoration fetched alongside
// resolution: lyrics and artwork. Every field may be empty; playback never
// depends on enrichment succeeding.
type EnrichedMetadata struct {
	Lyrics  *Lyrics     `json:"lyrics,omitempty"`
	Artwork *ArtworkRef `json:"artwork,omitempty"`
}
