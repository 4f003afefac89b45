package platform

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/muhammadzakizn/sonora/bot"
)

// audioExts lists the artifact extensions providers are known to produce.
var audioExts = []string{".opus", ".webm", ".m4a", ".mp3", ".flac", ".ogg", ".wav"}

// FindCached is the shared CheckCache implementation. It looks for an
// exact "artist - title.<ext>" match first, then falls back to a fuzzy
// scan: any audio file whose name contains both the artist and the title
// case-insensitively. The fuzzy pass is what lets a file downloaded as
// "Artist - Title (Official Audio).opus" satisfy a plain descriptor.
func FindCached(desc bot.TrackDescriptor, cacheDir string) (string, bool) {
	if cacheDir == "" {
		return "", false
	}

	key := bot.CacheKey(desc.Artist, desc.Title)
	for _, ext := range audioExts {
		candidate := filepath.Join(cacheDir, key+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Size() > 0 {
			return candidate, true
		}
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return "", false
	}

	artist := strings.ToLower(strings.TrimSpace(desc.Artist))
	title := strings.ToLower(strings.TrimSpace(desc.Title))
	if title == "" {
		return "", false
	}

	for _, entry := range entries {
		if entry.IsDir() || !isAudioFile(entry.Name()) {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.Contains(name, title) {
			continue
		}
		if artist != "" && !strings.Contains(name, artist) {
			continue
		}
		candidate := filepath.Join(cacheDir, entry.Name())
		if info, err := os.Stat(candidate); err == nil && info.Size() > 0 {
			return candidate, true
		}
	}
	return "", false
}

func isAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range audioExts {
		if ext == known {
			return true
		}
	}
	return false
}
