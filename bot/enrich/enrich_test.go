package enrich

import (
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)   {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Warn(string, ...any)    {}
func (nopLogger) Error(string, ...any)   {}
func (nopLogger) With(...any) bot.Logger { return nopLogger{} }

// fakeProvider is a search-capable provider that can serve lyrics and
// artwork depending on which fields are set.
type fakeProvider struct {
	name       string
	lyrics     *platform.Lyrics
	lyricsErr  error
	lyricsHits int
	artwork    *platform.ArtworkRef
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Capabilities() platform.Capabilities {
	return platform.Capabilities{Search: true, Lyrics: p.lyrics != nil || p.lyricsErr != nil}
}

func (p *fakeProvider) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	return nil, platform.ErrUnsupported
}

func (p *fakeProvider) Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
	return nil, platform.ErrUnsupported
}

func (p *fakeProvider) CheckCache(desc bot.TrackDescriptor, cacheDir string) (string, bool) {
	return "", false
}

func (p *fakeProvider) GetLyrics(ctx context.Context, desc bot.TrackDescriptor) (*platform.Lyrics, error) {
	p.lyricsHits++
	if p.lyricsErr != nil {
		return nil, p.lyricsErr
	}
	return p.lyrics, nil
}

func (p *fakeProvider) GetArtwork(ctx context.Context, desc bot.TrackDescriptor) (*platform.ArtworkRef, error) {
	if p.artwork == nil {
		return nil, errors.New("no artwork")
	}
	return p.artwork, nil
}

func newService(t *testing.T, providers ...platform.Provider) *Service {
	t.Helper()
	mgr := platform.NewManager()
	for _, p := range providers {
		mgr.Register(p)
	}
	return New(mgr, Options{
		StepTimeout:    2 * time.Second,
		ArtworkMaxEdge: 64,
		CacheDir:       t.TempDir(),
		EnableLyrics:   true,
		EnableArtwork:  true,
	}, nopLogger{})
}

func TestLyricsProviderPriority(t *testing.T) {
	first := &fakeProvider{name: "first", lyricsErr: errors.New("boom")}
	second := &fakeProvider{name: "second", lyrics: &platform.Lyrics{Plain: "la la la", Source: "second"}}

	svc := newService(t, first, second)
	meta := svc.Enrich(context.Background(), bot.TrackDescriptor{Title: "Song", Artist: "Band"})

	if meta == nil {
		t.Fatal("Enrich returned nil metadata")
	}
	if meta.Lyrics == nil || meta.Lyrics.Source != "second" {
		t.Fatalf("expected fallback lyrics from second provider, got %+v", meta.Lyrics)
	}
	if first.lyricsHits != 1 {
		t.Fatalf("first provider hit %d times, want 1", first.lyricsHits)
	}
}

func TestLyricsFirstHitWins(t *testing.T) {
	first := &fakeProvider{name: "first", lyrics: &platform.Lyrics{Plain: "hit", Source: "first"}}
	second := &fakeProvider{name: "second", lyrics: &platform.Lyrics{Plain: "miss", Source: "second"}}

	svc := newService(t, first, second)
	meta := svc.Enrich(context.Background(), bot.TrackDescriptor{Title: "Song"})

	if meta.Lyrics == nil || meta.Lyrics.Source != "first" {
		t.Fatalf("expected lyrics from first provider, got %+v", meta.Lyrics)
	}
	if second.lyricsHits != 0 {
		t.Fatalf("second provider should not be queried, hit %d times", second.lyricsHits)
	}
}

func TestEnrichNeverNil(t *testing.T) {
	svc := newService(t)
	svc.opts.EnableLyrics = false
	svc.opts.EnableArtwork = false

	meta := svc.Enrich(context.Background(), bot.TrackDescriptor{Title: "Song"})
	if meta == nil {
		t.Fatal("Enrich must return a non-nil struct even with everything disabled")
	}
	if meta.Lyrics != nil || meta.Artwork != nil {
		t.Fatalf("disabled enrichment produced data: %+v", meta)
	}
}

func TestThumbnailResizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		img := image.NewRGBA(image.Rect(0, 0, 300, 200))
		if err := png.Encode(w, img); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
	defer srv.Close()

	svc := newService(t)
	path, err := svc.Thumbnail(context.Background(), srv.URL, "Band - Song")
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > 64 || b.Dy() > 64 {
		t.Fatalf("thumbnail %dx%d exceeds 64px bound", b.Dx(), b.Dy())
	}
}

func TestArtworkThumbnailFailureKeepsRemoteURL(t *testing.T) {
	p := &fakeProvider{name: "art", artwork: &platform.ArtworkRef{URL: "http://127.0.0.1:0/nope.jpg"}}

	svc := newService(t, p)
	meta := svc.Enrich(context.Background(), bot.TrackDescriptor{Title: "Song"})

	if meta.Artwork == nil {
		t.Fatal("expected artwork ref even when thumbnailing fails")
	}
	if meta.Artwork.URL != "http://127.0.0.1:0/nope.jpg" {
		t.Fatalf("unexpected artwork URL %q", meta.Artwork.URL)
	}
}

func TestLyricsText(t *testing.T) {
	if got := lyricsText(&platform.Lyrics{Plain: "hello\nworld"}); got != "hello\nworld" {
		t.Fatalf("plain lyrics: got %q", got)
	}

	synced := &platform.Lyrics{Timestamped: []platform.LyricLine{
		{Time: time.Second, Text: "one"},
		{Time: 2 * time.Second, Text: "two"},
	}}
	if got := lyricsText(synced); got != "one\ntwo" {
		t.Fatalf("synced lyrics: got %q", got)
	}

	if got := lyricsText(&platform.Lyrics{}); got != "" {
		t.Fatalf("empty lyrics: got %q", got)
	}
}

func TestEmbedTagsRejectsNonAudio(t *testing.T) {
	svc := newService(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	err := svc.EmbedTags(path, bot.TrackDescriptor{Title: "Song", Artist: "Band"}, nil)
	if err == nil {
		t.Fatal("expected an error embedding tags into a non-audio file")
	}
}
