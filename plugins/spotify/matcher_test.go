package spotify

import "testing"

func TestMatchURL(t *testing.T) {
	m := NewURLMatcher()

	cases := []struct {
		url  string
		id   string
		want bool
	}{
		{"https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh", "4iV5W9uYEdYUVa79Axb7Rh", true},
		{"https://open.spotify.com/intl-de/track/4iV5W9uYEdYUVa79Axb7Rh", "4iV5W9uYEdYUVa79Axb7Rh", true},
		{"open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh?si=abc", "4iV5W9uYEdYUVa79Axb7Rh", true},
		{"spotify:track:4iV5W9uYEdYUVa79Axb7Rh", "4iV5W9uYEdYUVa79Axb7Rh", true},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "", false},
		{"https://example.com/track/4iV5W9uYEdYUVa79Axb7Rh", "", false},
	}

	for _, c := range cases {
		id, ok := m.MatchURL(c.url)
		if ok != c.want || id != c.id {
			t.Fatalf("MatchURL(%q) = (%q, %v), want (%q, %v)", c.url, id, ok, c.id, c.want)
		}
	}
}

func TestMatchPlaylistURL(t *testing.T) {
	m := NewURLMatcher()

	id, ok := m.MatchPlaylistURL("https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")
	if !ok || id != "37i9dQZF1DXcBWIGoYBM5M" {
		t.Fatalf("got (%q, %v)", id, ok)
	}

	id, ok = m.MatchPlaylistURL("spotify:playlist:37i9dQZF1DXcBWIGoYBM5M")
	if !ok || id != "37i9dQZF1DXcBWIGoYBM5M" {
		t.Fatalf("URI form: got (%q, %v)", id, ok)
	}

	if _, ok := m.MatchPlaylistURL("https://open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh"); ok {
		t.Fatal("track URL should not match as playlist")
	}
}

func TestMatchAlbumURL(t *testing.T) {
	m := NewURLMatcher()

	id, ok := m.MatchAlbumURL("https://open.spotify.com/album/2noRn2Aes5aoNVsU6iWThc")
	if !ok || id != "2noRn2Aes5aoNVsU6iWThc" {
		t.Fatalf("got (%q, %v)", id, ok)
	}

	if _, ok := m.MatchAlbumURL("https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M"); ok {
		t.Fatal("playlist URL should not match as album")
	}
}
