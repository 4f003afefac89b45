package applemusic

import (
	"context"
	"regexp"
	"strconv"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// Hi-res artwork comes from rewriting the 100x100 thumbnail URL.
var artworkSizePattern = regexp.MustCompile(`/\d+x\d+(bb)?\.(jpg|png)$`)

// trackURLPattern matches music.apple.com song links, which carry the
// track ID in the i query parameter.
var trackURLPattern = regexp.MustCompile(`music\.apple\.com/[a-z]{2}/(?:album|song)/[^?\s]+(?:\?.*i=|/)(\d+)`)

// Platform adapts the iTunes catalog to the provider interface. Like
// Spotify it is search-only; its value is clean metadata for
// verification and artwork without any credentials.
type Platform struct {
	client *Client
}

func NewPlatform(client *Client) *Platform {
	return &Platform{client: client}
}

func (p *Platform) Name() string {
	return "applemusic"
}

func (p *Platform) Capabilities() platform.Capabilities {
	return platform.Capabilities{Search: true}
}

func (p *Platform) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	return p.client.Search(ctx, query, limit)
}

func (p *Platform) Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
	return nil, platform.NewProviderError("applemusic", "download", desc.DisplayName(), platform.ErrUnsupported)
}

func (p *Platform) CheckCache(desc bot.TrackDescriptor, cacheDir string) (string, bool) {
	return platform.FindCached(desc, cacheDir)
}

func (p *Platform) GetArtwork(ctx context.Context, desc bot.TrackDescriptor) (*platform.ArtworkRef, error) {
	return p.client.GetArtwork(ctx, desc)
}

func (p *Platform) MatchURL(url string) (string, bool) {
	if matches := trackURLPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}

// UpscaleArtworkURL swaps the size segment of an iTunes artwork URL.
func UpscaleArtworkURL(artworkURL string, size int) string {
	s := strconv.Itoa(size)
	return artworkSizePattern.ReplaceAllString(artworkURL, "/"+s+"x"+s+"$1.$2")
}
