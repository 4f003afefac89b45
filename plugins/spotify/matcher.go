package spotify

import "regexp"

// URLMatcher extracts track and playlist IDs from Spotify URLs and URIs.
type URLMatcher struct {
	trackPattern       *regexp.Regexp
	trackURIPattern    *regexp.Regexp
	playlistPattern    *regexp.Regexp
	playlistURIPattern *regexp.Regexp
	albumPattern       *regexp.Regexp
}

func NewURLMatcher() *URLMatcher {
	return &URLMatcher{
		// open.spotify.com/track/4iV5W9uYEdYUVa79Axb7Rh
		trackPattern: regexp.MustCompile(`(?:https?://)?open\.spotify\.com(?:/intl-[a-z]+)?/track/([a-zA-Z0-9]{22})`),

		// spotify:track:4iV5W9uYEdYUVa79Axb7Rh
		trackURIPattern: regexp.MustCompile(`spotify:track:([a-zA-Z0-9]{22})`),

		playlistPattern:    regexp.MustCompile(`(?:https?://)?open\.spotify\.com(?:/intl-[a-z]+)?/playlist/([a-zA-Z0-9]{22})`),
		playlistURIPattern: regexp.MustCompile(`spotify:playlist:([a-zA-Z0-9]{22})`),

		albumPattern: regexp.MustCompile(`(?:https?://)?open\.spotify\.com(?:/intl-[a-z]+)?/album/([a-zA-Z0-9]{22})`),
	}
}

// MatchURL implements platform.URLMatcher.
func (m *URLMatcher) MatchURL(url string) (string, bool) {
	if matches := m.trackPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	if matches := m.trackURIPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}

// MatchPlaylistURL implements platform.PlaylistExpander.
func (m *URLMatcher) MatchPlaylistURL(url string) (string, bool) {
	if matches := m.playlistPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	if matches := m.playlistURIPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}

// MatchAlbumURL implements platform.AlbumExpander. Albums are handled
// separately because the API serves their tracks from a different
// endpoint than playlists.
func (m *URLMatcher) MatchAlbumURL(url string) (string, bool) {
	if matches := m.albumPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}
