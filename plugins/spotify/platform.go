package spotify

import (
	"context"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// Platform adapts the Spotify client to the provider interface. Download
// is unsupported: Spotify descriptors flow to a downloading provider
// through the resolution fallback chain.
type Platform struct {
	client  *Client
	matcher *URLMatcher
}

func NewPlatform(client *Client) *Platform {
	return &Platform{client: client, matcher: NewURLMatcher()}
}

func (p *Platform) Name() string {
	return "spotify"
}

func (p *Platform) Capabilities() platform.Capabilities {
	return platform.Capabilities{
		Search:   true,
		Playlist: true,
	}
}

func (p *Platform) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	// Track URLs resolve directly; queries hit the search endpoint.
	if trackID, ok := p.matcher.MatchURL(query); ok {
		desc, err := p.client.GetTrack(ctx, trackID)
		if err != nil {
			return nil, err
		}
		return []bot.TrackDescriptor{*desc}, nil
	}
	return p.client.Search(ctx, query, limit)
}

func (p *Platform) Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
	return nil, platform.NewProviderError("spotify", "download", desc.DisplayName(), platform.ErrUnsupported)
}

func (p *Platform) CheckCache(desc bot.TrackDescriptor, cacheDir string) (string, bool) {
	return platform.FindCached(desc, cacheDir)
}

func (p *Platform) GetArtwork(ctx context.Context, desc bot.TrackDescriptor) (*platform.ArtworkRef, error) {
	return p.client.GetArtwork(ctx, desc)
}

func (p *Platform) ExpandPlaylist(ctx context.Context, playlistID string, limit int) ([]bot.TrackDescriptor, error) {
	return p.client.ExpandPlaylist(ctx, playlistID, limit)
}

func (p *Platform) MatchPlaylistURL(url string) (string, bool) {
	return p.matcher.MatchPlaylistURL(url)
}

func (p *Platform) ExpandAlbum(ctx context.Context, albumID string, limit int) ([]bot.TrackDescriptor, error) {
	return p.client.ExpandAlbum(ctx, albumID, limit)
}

func (p *Platform) MatchAlbumURL(url string) (string, bool) {
	return p.matcher.MatchAlbumURL(url)
}

func (p *Platform) MatchURL(url string) (string, bool) {
	return p.matcher.MatchURL(url)
}
