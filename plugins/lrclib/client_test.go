package lrclib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muhammadzakizn/sonora/bot"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)   {}
func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Warn(string, ...any)    {}
func (nopLogger) Error(string, ...any)   {}
func (nopLogger) With(...any) bot.Logger { return nopLogger{} }

const getResponse = `{
	"id": 42,
	"trackName": "Levitating",
	"artistName": "Dua Lipa",
	"albumName": "Future Nostalgia",
	"duration": 203.0,
	"instrumental": false,
	"plainLyrics": "If you wanna run away with me\nI know a galaxy",
	"syncedLyrics": "[00:02.50]If you wanna run away with me\n[00:05.10]I know a galaxy"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(nopLogger{})
	c.baseURL = srv.URL
	return c
}

func TestGetLyricsSynced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get" {
			t.Errorf("path = %q, want /api/get", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("track_name") != "Levitating" || q.Get("artist_name") != "Dua Lipa" {
			t.Errorf("unexpected query: %v", q)
		}
		if q.Get("duration") != "203" {
			t.Errorf("duration = %q, want 203", q.Get("duration"))
		}
		w.Write([]byte(getResponse))
	})

	lyrics, err := c.GetLyrics(context.Background(), bot.TrackDescriptor{
		Title:    "Levitating",
		Artist:   "Dua Lipa",
		Duration: 203 * time.Second,
	})
	if err != nil {
		t.Fatalf("GetLyrics: %v", err)
	}

	if !lyrics.Synced() {
		t.Fatal("expected synced lyrics")
	}
	if len(lyrics.Timestamped) != 2 {
		t.Fatalf("got %d lines", len(lyrics.Timestamped))
	}
	if lyrics.Timestamped[0].Time != 2500*time.Millisecond {
		t.Fatalf("first line time = %v", lyrics.Timestamped[0].Time)
	}
	if lyrics.Source != "lrclib" {
		t.Fatalf("source = %q", lyrics.Source)
	}
}

func TestGetLyricsFallsBackToSearch(t *testing.T) {
	searched := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/get":
			http.NotFound(w, r)
		case "/api/search":
			searched = true
			w.Write([]byte(`[{"id": 1, "plainLyrics": "", "syncedLyrics": ""}, ` + getResponse + `]`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})

	lyrics, err := c.GetLyrics(context.Background(), bot.TrackDescriptor{Title: "Levitating", Artist: "Dua Lipa"})
	if err != nil {
		t.Fatalf("GetLyrics: %v", err)
	}
	if !searched {
		t.Fatal("search fallback was not used")
	}
	if lyrics.Plain == "" {
		t.Fatal("expected lyrics from the search hit")
	}
}

func TestGetLyricsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/search" {
			w.Write([]byte(`[]`))
			return
		}
		http.NotFound(w, r)
	})

	if _, err := c.GetLyrics(context.Background(), bot.TrackDescriptor{Title: "Nope"}); err == nil {
		t.Fatal("expected an error for missing lyrics")
	}
}
