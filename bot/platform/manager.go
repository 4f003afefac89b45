package platform

import (
	"fmt"
	"strings"
	"sync"

	"github.com/muhammadzakizn/sonora/bot"
)

// Manager keeps providers in an explicit priority order. The resolution
// pipeline walks Ordered() front to back for downloads, so provider
// priority is configuration, not code.
type Manager struct {
	mu       sync.RWMutex
	byName   map[string]Provider
	priority []string
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]Provider)}
}

// Register adds a provider at the end of the priority order. Registering a
// name twice replaces the provider but keeps its position.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if _, exists := m.byName[name]; !exists {
		m.priority = append(m.priority, name)
	}
	m.byName[name] = p
}

// SetPriority reorders providers. Unknown names are ignored; registered
// providers missing from the list keep their relative order after the
// listed ones.
func (m *Manager) SetPriority(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(names))
	ordered := make([]string, 0, len(m.priority))
	for _, raw := range names {
		name := strings.TrimSpace(strings.ToLower(raw))
		if name == "" || seen[name] {
			continue
		}
		if _, ok := m.byName[name]; !ok {
			continue
		}
		seen[name] = true
		ordered = append(ordered, name)
	}
	for _, name := range m.priority {
		if !seen[name] {
			ordered = append(ordered, name)
		}
	}
	m.priority = ordered
}

// Get retrieves a provider by name, or nil.
func (m *Manager) Get(name string) Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byName[name]
}

// MustGet retrieves a provider by name or panics. Useful during wiring
// where a missing provider should fail fast.
func (m *Manager) MustGet(name string) Provider {
	p := m.Get(name)
	if p == nil {
		panic(fmt.Sprintf("platform: provider not found: %s", name))
	}
	return p
}

// Ordered returns all providers in priority order.
func (m *Manager) Ordered() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Provider, 0, len(m.priority))
	for _, name := range m.priority {
		out = append(out, m.byName[name])
	}
	return out
}

// Downloaders returns the providers that can download audio, in priority
// order.
func (m *Manager) Downloaders() []Provider {
	var out []Provider
	for _, p := range m.Ordered() {
		if p.Capabilities().Download {
			out = append(out, p)
		}
	}
	return out
}

// Searchers returns the providers that can search, in priority order.
func (m *Manager) Searchers() []Provider {
	var out []Provider
	for _, p := range m.Ordered() {
		if p.Capabilities().Search {
			out = append(out, p)
		}
	}
	return out
}

// LyricsProviders returns lyrics-capable providers in priority order.
func (m *Manager) LyricsProviders() []LyricsProvider {
	var out []LyricsProvider
	for _, p := range m.Ordered() {
		if lp, ok := p.(LyricsProvider); ok && p.Capabilities().Lyrics {
			out = append(out, lp)
		}
	}
	return out
}

// Names returns registered provider names in priority order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.priority...)
}

// FindCached asks each downloader's CheckCache in priority order, then
// falls back to the shared directory scan.
func (m *Manager) FindCached(desc bot.TrackDescriptor, cacheDir string) (string, bool) {
	for _, p := range m.Downloaders() {
		if path, ok := p.CheckCache(desc, cacheDir); ok {
			return path, true
		}
	}
	return FindCached(desc, cacheDir)
}

// MatchURL tries every provider that recognizes URLs. Returns the provider
// name, track ID and true on the first match in priority order.
func (m *Manager) MatchURL(url string) (providerName, trackID string, matched bool) {
	for _, p := range m.Ordered() {
		if matcher, ok := p.(URLMatcher); ok {
			if id, ok := matcher.MatchURL(url); ok {
				return p.Name(), id, true
			}
		}
	}
	return "", "", false
}

// MatchPlaylistURL tries every playlist-capable provider. Returns the
// provider name, playlist ID and true on the first match in priority order.
func (m *Manager) MatchPlaylistURL(url string) (providerName, playlistID string, matched bool) {
	for _, p := range m.Ordered() {
		if expander, ok := p.(PlaylistExpander); ok {
			if id, ok := expander.MatchPlaylistURL(url); ok {
				return p.Name(), id, true
			}
		}
	}
	return "", "", false
}

// MatchAlbumURL tries every album-capable provider. Returns the provider
// name, album ID and true on the first match in priority order.
func (m *Manager) MatchAlbumURL(url string) (providerName, albumID string, matched bool) {
	for _, p := range m.Ordered() {
		if expander, ok := p.(AlbumExpander); ok {
			if id, ok := expander.MatchAlbumURL(url); ok {
				return p.Name(), id, true
			}
		}
	}
	return "", "", false
}
