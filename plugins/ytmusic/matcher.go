package ytmusic

import "regexp"

// URLMatcher extracts video and playlist IDs from YouTube URLs.
type URLMatcher struct {
	watchPattern    *regexp.Regexp
	shortPattern    *regexp.Regexp
	playlistPattern *regexp.Regexp
}

func NewURLMatcher() *URLMatcher {
	return &URLMatcher{
		// youtube.com/watch?v=dQw4w9WgXcQ and music.youtube.com variants
		watchPattern: regexp.MustCompile(`(?i)(?:music\.|www\.)?youtube\.com/watch\?(?:[^#\s]*&)?v=([a-zA-Z0-9_-]{11})`),

		// youtu.be/dQw4w9WgXcQ short links
		shortPattern: regexp.MustCompile(`(?i)youtu\.be/([a-zA-Z0-9_-]{11})`),

		// list= playlist parameter on any YouTube URL
		playlistPattern: regexp.MustCompile(`(?i)(?:music\.|www\.)?youtube\.com/(?:playlist|watch)\?(?:[^#\s]*&)?list=([a-zA-Z0-9_-]+)`),
	}
}

// MatchURL implements platform.URLMatcher.
func (m *URLMatcher) MatchURL(url string) (string, bool) {
	if matches := m.watchPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	if matches := m.shortPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}

// MatchPlaylistURL implements platform.PlaylistExpander. Watch URLs that
// carry a list parameter count as playlists only when no single video is
// addressed.
func (m *URLMatcher) MatchPlaylistURL(url string) (string, bool) {
	matches := m.playlistPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", false
	}
	if _, isVideo := m.MatchURL(url); isVideo {
		return "", false
	}
	return matches[1], true
}
