// Package enrich decorates a resolved track with lyrics and artwork and
// embeds proper tags into the audio file. Everything here is additive:
// each step has its own timeout and a failure degrades to a partial
// result, never an error the player has to handle.
package enrich

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"go.senan.xyz/taglib"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/download"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

// maxArtworkBytes rejects artwork responses that are clearly not cover
// images before decode.
const maxArtworkBytes = 10 << 20

// Options holds enrichment tunables.
type Options struct {
	// StepTimeout bounds each individual fetch (default 8s).
	StepTimeout time.Duration

	// ArtworkMaxEdge is the thumbnail bound in pixels (default 512).
	ArtworkMaxEdge int

	// CacheDir is where artwork thumbnails are written.
	CacheDir string

	EnableLyrics  bool
	EnableArtwork bool
}

// Service fans enrichment requests out to lyrics providers and artwork
// sources.
type Service struct {
	providers  *platform.Manager
	downloader *download.Service
	opts       Options
	logger     bot.Logger
}

func New(providers *platform.Manager, opts Options, logger bot.Logger) *Service {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 8 * time.Second
	}
	if opts.ArtworkMaxEdge <= 0 {
		opts.ArtworkMaxEdge = 512
	}

	return &Service{
		providers: providers,
		downloader: download.NewService(download.ServiceOptions{
			Timeout: opts.StepTimeout,
			Retries: 2,
		}),
		opts:   opts,
		logger: logger,
	}
}

// Enrich gathers lyrics and artwork for the descriptor. The return value
// is never nil; empty fields mean the corresponding step failed or was
// disabled.
func (s *Service) Enrich(ctx context.Context, desc bot.TrackDescriptor) *platform.EnrichedMetadata {
	meta := &platform.EnrichedMetadata{}

	if s.opts.EnableLyrics {
		meta.Lyrics = s.fetchLyrics(ctx, desc)
	}
	if s.opts.EnableArtwork {
		meta.Artwork = s.fetchArtwork(ctx, desc)
	}
	return meta
}

// fetchLyrics walks lyrics-capable providers in priority order, returning
// the first hit.
func (s *Service) fetchLyrics(ctx context.Context, desc bot.TrackDescriptor) *platform.Lyrics {
	for _, provider := range s.providers.LyricsProviders() {
		lctx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
		lyrics, err := provider.GetLyrics(lctx, desc)
		cancel()

		if err == nil && lyrics != nil && (lyrics.Plain != "" || lyrics.Synced()) {
			return lyrics
		}
		if err != nil {
			s.logger.Debug("lyrics fetch failed", "track", desc.DisplayName(), "error", err)
		}
	}
	return nil
}

// fetchArtwork searches providers for a descriptor match carrying an
// artwork URL, downloads it, and thumbnails it into the cache dir.
func (s *Service) fetchArtwork(ctx context.Context, desc bot.TrackDescriptor) *platform.ArtworkRef {
	ref := s.artworkRef(ctx, desc)
	if ref == nil {
		return nil
	}

	path, err := s.Thumbnail(ctx, ref.URL, bot.CacheKey(desc.Artist, desc.Title))
	if err != nil {
		s.logger.Debug("artwork thumbnail failed", "track", desc.DisplayName(), "error", err)
		return ref
	}
	ref.URL = path
	return ref
}

func (s *Service) artworkRef(ctx context.Context, desc bot.TrackDescriptor) *platform.ArtworkRef {
	for _, provider := range s.providers.Searchers() {
		if artSearcher, ok := provider.(platform.ArtworkSearcher); ok {
			actx, cancel := context.WithTimeout(ctx, s.opts.StepTimeout)
			ref, err := artSearcher.GetArtwork(actx, desc)
			cancel()
			if err == nil && ref != nil && ref.URL != "" {
				return ref
			}
		}
	}
	return nil
}

// Thumbnail downloads an image and writes a bounded JPEG next to the
// audio cache. Returns the local path.
func (s *Service) Thumbnail(ctx context.Context, url, key string) (string, error) {
	tmp := filepath.Join(s.opts.CacheDir, key+".cover.tmp")
	written, err := s.downloader.Download(ctx, &download.Request{URL: url}, tmp, nil)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	if written > maxArtworkBytes {
		return "", fmt.Errorf("artwork too large: %d bytes", written)
	}

	f, err := os.Open(tmp)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", err
	}

	edge := uint(s.opts.ArtworkMaxEdge)
	thumb := resize.Thumbnail(edge, edge, img, resize.Lanczos3)

	path := filepath.Join(s.opts.CacheDir, key+".cover.jpg")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := jpeg.Encode(out, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return path, nil
}

// EmbedTags writes descriptor metadata and lyrics into the audio file so
// the cached artifact verifies instantly next time.
func (s *Service) EmbedTags(artifactPath string, desc bot.TrackDescriptor, lyrics *platform.Lyrics) error {
	tags := map[string][]string{
		taglib.Title:  {desc.Title},
		taglib.Artist: {desc.Artist},
	}
	if desc.Album != "" {
		tags[taglib.Album] = []string{desc.Album}
	}
	if lyrics != nil {
		if text := lyricsText(lyrics); text != "" {
			tags["LYRICS"] = []string{text}
		}
	}
	return taglib.WriteTags(artifactPath, tags, 0)
}

func lyricsText(lyrics *platform.Lyrics) string {
	if lyrics.Plain != "" {
		return lyrics.Plain
	}
	if !lyrics.Synced() {
		return ""
	}
	var b strings.Builder
	for _, line := range lyrics.Timestamped {
		b.WriteString(line.Text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
