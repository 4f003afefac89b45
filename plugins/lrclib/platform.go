package lrclib

import (
	"context"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// Platform exposes LRCLIB as a lyrics-only provider: it sits in the
// provider order purely so enrichment can query it, and reports every
// other capability as unsupported.
type Platform struct {
	client *Client
}

func NewPlatform(client *Client) *Platform {
	return &Platform{client: client}
}

func (p *Platform) Name() string {
	return "lrclib"
}

func (p *Platform) Capabilities() platform.Capabilities {
	return platform.Capabilities{Lyrics: true}
}

func (p *Platform) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	return nil, platform.NewProviderError("lrclib", "search", query, platform.ErrUnsupported)
}

func (p *Platform) Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
	return nil, platform.NewProviderError("lrclib", "download", desc.DisplayName(), platform.ErrUnsupported)
}

func (p *Platform) CheckCache(desc bot.TrackDescriptor, cacheDir string) (string, bool) {
	return "", false
}

func (p *Platform) GetLyrics(ctx context.Context, desc bot.TrackDescriptor) (*platform.Lyrics, error) {
	return p.client.GetLyrics(ctx, desc)
}
