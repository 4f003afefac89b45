package player

import "sync"

// Registry owns the guild → session mapping. Per-guild state lives here
// and nowhere else; components receive the session they need instead of
// reaching for globals.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  func(guildID string) *Session
}

func NewRegistry(factory func(guildID string) *Session) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		factory:  factory,
	}
}

// Get returns the guild's session, creating one on first use.
func (r *Registry) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	if !ok {
		s = r.factory(guildID)
		r.sessions[guildID] = s
	}
	return s
}

// Peek returns the guild's session without creating one.
func (r *Registry) Peek(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Drop stops and removes the guild's session.
func (r *Registry) Drop(guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()
	if ok {
		s.Stop()
	}
}

// StopAll stops every session, used at shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}
