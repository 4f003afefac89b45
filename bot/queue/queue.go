// Package queue holds per-guild FIFO track queues. Entries carry optional
// voice-channel affinity consumed by the player's auto-advance.
package queue

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/muhammadzakizn/sonora/bot"
)

// ErrEmpty signals a normal end-of-queue, not a failure.
var ErrEmpty = errors.New("queue empty")

// ErrNotFound is returned by Remove and Move for a bad position.
var ErrNotFound = errors.New("queue position not found")

// Entry is either an unresolved descriptor or a playback-ready record.
// Entries move from unresolved to resolved exactly once and are never
// downgraded.
type Entry struct {
	Descriptor bot.TrackDescriptor

	// Artifact is non-nil once the entry has been resolved.
	Artifact *bot.ResolvedArtifact

	// Enriched holds optional lyrics/artwork, filled alongside Artifact.
	Enriched *EnrichedRef
}

// EnrichedRef points at enrichment data without importing the platform
// package (queue stays a leaf).
type EnrichedRef struct {
	LyricsSource string
	ArtworkPath  string
}

// Resolved reports whether the entry carries a verified artifact.
func (e *Entry) Resolved() bool {
	return e != nil && e.Artifact != nil
}

// Queue is one guild's ordered track list. All mutation is serialized by
// the mutex; reads hand out snapshots.
type Queue struct {
	mu      sync.Mutex
	entries []*Entry

	// head is the index of the front element, giving amortized O(1) pop
	// without reslicing the backing array on every call.
	head int

	maxSize int
}

// ErrFull is returned by Append when the queue is at capacity.
var ErrFull = errors.New("queue full")

// New creates a queue bounded at maxSize entries (0 means a default of
// 500).
func New(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 500
	}
	return &Queue{maxSize: maxSize}
}

// Append adds an entry at the tail and returns its position from the
// front (0-based).
func (q *Queue) Append(entry *Entry) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.length() >= q.maxSize {
		return 0, ErrFull
	}
	q.entries = append(q.entries, entry)
	return q.length() - 1, nil
}

// PopFront removes and returns the front entry. Returns ErrEmpty when the
// queue has no entries.
func (q *Queue) PopFront() (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.length() == 0 {
		return nil, ErrEmpty
	}
	entry := q.entries[q.head]
	q.entries[q.head] = nil
	q.head++
	if q.head == len(q.entries) {
		q.entries = q.entries[:0]
		q.head = 0
	}
	return entry, nil
}

// PeekAll returns an ordered snapshot. The slice is a copy; mutating it
// does not affect the queue.
func (q *Queue) PeekAll() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Entry(nil), q.entries[q.head:]...)
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length()
}

// Clear removes all entries and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := q.length()
	q.entries = nil
	q.head = 0
	return removed
}

// Shuffle randomizes the order of queued entries.
func (q *Queue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	live := q.entries[q.head:]
	rand.Shuffle(len(live), func(i, j int) {
		live[i], live[j] = live[j], live[i]
	})
}

// Remove deletes the entry at position (0-based from the front) and
// returns it.
func (q *Queue) Remove(position int) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if position < 0 || position >= q.length() {
		return nil, ErrNotFound
	}
	idx := q.head + position
	entry := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	return entry, nil
}

// Move relocates the entry at from to position to.
func (q *Queue) Move(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.length()
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrNotFound
	}
	if from == to {
		return nil
	}
	live := append([]*Entry(nil), q.entries[q.head:]...)
	entry := live[from]
	live = append(live[:from], live[from+1:]...)
	live = append(live[:to], append([]*Entry{entry}, live[to:]...)...)
	q.entries = live
	q.head = 0
	return nil
}

func (q *Queue) length() int {
	return len(q.entries) - q.head
}

// Registry maps guild IDs to their queues, creating on first use.
type Registry struct {
	mu      sync.Mutex
	queues  map[string]*Queue
	maxSize int
}

func NewRegistry(maxSize int) *Registry {
	return &Registry{queues: make(map[string]*Queue), maxSize: maxSize}
}

// Get returns the guild's queue, creating it if needed.
func (r *Registry) Get(guildID string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[guildID]
	if !ok {
		q = New(r.maxSize)
		r.queues[guildID] = q
	}
	return q
}

// Drop removes a guild's queue entirely.
func (r *Registry) Drop(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, guildID)
}
