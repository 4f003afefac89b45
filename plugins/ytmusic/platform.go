package ytmusic

import (
	"context"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// Platform adapts the YouTube Music client to the provider interface.
// It is the only provider in the default chain that can both search and
// download, which makes it the workhorse of the fallback order.
type Platform struct {
	client  *Client
	matcher *URLMatcher
}

func NewPlatform(client *Client) *Platform {
	return &Platform{client: client, matcher: NewURLMatcher()}
}

func (p *Platform) Name() string {
	return "ytmusic"
}

func (p *Platform) Capabilities() platform.Capabilities {
	return platform.Capabilities{
		Download: true,
		Search:   true,
		Playlist: true,
	}
}

func (p *Platform) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	return p.client.Search(ctx, query, limit)
}

func (p *Platform) Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
	return p.client.Download(ctx, desc, destDir)
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

func (p *Platform) MatchURL(url string) (string, bool) {
	return p.matcher.MatchURL(url)
}
