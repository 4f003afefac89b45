package applemusic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

const sampleResponse = `{
	"resultCount": 2,
	"results": [
		{
			"trackId": 1440857781,
			"trackName": "Levitating",
			"artistName": "Dua Lipa",
			"collectionName": "Future Nostalgia",
			"trackTimeMillis": 203064,
			"trackViewUrl": "https://music.apple.com/us/album/levitating/1538003494?i=1538003843",
			"artworkUrl100": "https://example.com/image/100x100bb.jpg"
		},
		{
			"trackId": 2,
			"trackName": "Levitating (feat. DaBaby)",
			"artistName": "Dua Lipa",
			"trackTimeMillis": 203000
		}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(nopLogger{})
	c.baseURL = srv.URL
	return c
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("entity") != "song" {
			t.Errorf("entity = %q, want song", r.URL.Query().Get("entity"))
		}
		w.Write([]byte(sampleResponse))
	})

	descs, err := c.Search(context.Background(), "dua lipa levitating", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("got %d results, want 2", len(descs))
	}

	first := descs[0]
	if first.Title != "Levitating" || first.Artist != "Dua Lipa" || first.Album != "Future Nostalgia" {
		t.Fatalf("unexpected descriptor: %+v", first)
	}
	if first.Duration != 203064*time.Millisecond {
		t.Fatalf("duration = %v", first.Duration)
	}
	if first.Provider != "applemusic" || first.TrackID != "1440857781" {
		t.Fatalf("provenance: %+v", first)
	}
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultCount": 0, "results": []}`))
	})

	_, err := c.Search(context.Background(), "zzzzz", 5)
	if !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	var perr *platform.ProviderError
	if !errors.As(err, &perr) || perr.Provider != "applemusic" {
		t.Fatalf("expected applemusic ProviderError, got %v", err)
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), "query", 1); err == nil {
			t.Fatal("expected failure")
		}
	}

	before := calls.Load()
	_, err := c.Search(context.Background(), "query", 1)
	if !errors.Is(err, platform.ErrUnavailable) {
		t.Fatalf("open breaker should fail fast with ErrUnavailable, got %v", err)
	}
	if calls.Load() != before {
		t.Fatal("open breaker must not reach the backend")
	}
}

func TestGetArtworkUpscales(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleResponse))
	})

	ref, err := c.GetArtwork(context.Background(), bot.TrackDescriptor{Title: "Levitating", Artist: "Dua Lipa"})
	if err != nil {
		t.Fatalf("GetArtwork: %v", err)
	}
	if ref.URL != "https://example.com/image/600x600bb.jpg" {
		t.Fatalf("artwork URL = %q", ref.URL)
	}
}

func TestUpscaleArtworkURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://x.com/a/100x100bb.jpg", "https://x.com/a/600x600bb.jpg"},
		{"https://x.com/a/100x100.png", "https://x.com/a/600x600.png"},
		{"https://x.com/a/cover.jpg", "https://x.com/a/cover.jpg"},
	}
	for _, c := range cases {
		if got := UpscaleArtworkURL(c.in, 600); got != c.want {
			t.Fatalf("UpscaleArtworkURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMatchURL(t *testing.T) {
	p := NewPlatform(nil)

	id, ok := p.MatchURL("https://music.apple.com/us/album/levitating/1538003494?i=1538003843")
	if !ok || id != "1538003843" {
		t.Fatalf("got (%q, %v)", id, ok)
	}

	if _, ok := p.MatchURL("https://example.com/us/album/x/1?i=2"); ok {
		t.Fatal("non-apple URL should not match")
	}
}
