package platform

import (
	"context"

	"github.com/muhammadzakizn/sonora/bot"
)

// Provider defines the interface every audio/metadata source must satisfy.
// Providers indicate which operations they support through Capabilities,
// allowing graceful degradation: a catalog-only source (Spotify, Apple
// Music) reports Download=false and is skipped by the download fallback
// chain while still serving search and playlist expansion.
//
// Provider implementations must be safe for concurrent use by multiple
// goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g. "ytmusic", "spotify").
	// The name should be lowercase and URL-safe.
	Name() string

	Capabilities() Capabilities

	// Search returns descriptors matching the query, best match first.
	// Returns ErrUnsupported if the provider cannot search.
	Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error)

	// Download fetches the audio for the descriptor into destDir and
	// returns the unverified artifact. The artifact file is owned by the
	// caller from this point on, including deletion on verification
	// failure. Returns ErrUnsupported if the provider cannot download.
	Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error)

	// CheckCache reports an existing local file for the descriptor, if
	// any. Most providers delegate to FindCached.
	CheckCache(desc bot.TrackDescriptor, cacheDir string) (path string, ok bool)
}

// Capabilities reports which operations a provider supports.
type Capabilities struct {
	Download bool
	Search   bool
	Lyrics   bool
	Playlist bool
}

// LyricsProvider is implemented by providers that can fetch lyrics.
// Lyrics are purely additive: callers must proceed when every lyrics
// provider fails.
type LyricsProvider interface {
	GetLyrics(ctx context.Context, desc bot.TrackDescriptor) (*Lyrics, error)
}

// ArtworkSearcher is implemented by providers that can locate cover art
// for a track. Like lyrics, artwork is additive only.
type ArtworkSearcher interface {
	GetArtwork(ctx context.Context, desc bot.TrackDescriptor) (*ArtworkRef, error)
}

// PlaylistExpander is implemented by providers that can expand a playlist
// URL into descriptors.
type PlaylistExpander interface {
	ExpandPlaylist(ctx context.Context, playlistID string, limit int) ([]bot.TrackDescriptor, error)

	// MatchPlaylistURL extracts a playlist ID from a provider URL.
	MatchPlaylistURL(url string) (playlistID string, matched bool)
}

// AlbumExpander is implemented by providers whose albums live on a
// separate endpoint from playlists.
type AlbumExpander interface {
	ExpandAlbum(ctx context.Context, albumID string, limit int) ([]bot.TrackDescriptor, error)

	// MatchAlbumURL extracts an album ID from a provider URL.
	MatchAlbumURL(url string) (albumID string, matched bool)
}

// URLMatcher is implemented by providers that recognize single-track URLs.
type URLMatcher interface {
	// MatchURL extracts a track ID from a provider-specific URL. Returns
	// the ID and true on a match.
	MatchURL(url string) (trackID string, matched bool)
}
