// Package buffer implements the rolling download manager: a bounded
// look-ahead window of resolved artifacts over one session's track list,
// filled by a background walker and trimmed as the playhead advances.
package buffer

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/muhammadzakizn/sonora/bot"
)

// Resolver is the resolution dependency, satisfied by *resolve.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, desc bot.TrackDescriptor) (*bot.ResolvedArtifact, error)
}

// Options holds the look-ahead and eviction tunables.
type Options struct {
	// Size is the maximum number of entries resolved ahead of the
	// playhead (default 10).
	Size int

	// EvictionThreshold is the file size in bytes above which a
	// played-back artifact is deleted on Advance. Smaller files are kept
	// as a courtesy cache (default 100MB).
	EvictionThreshold int64

	// PollInterval is how long the walker idles when the window is
	// saturated (default 1s).
	PollInterval time.Duration
}

// Manager prefetches artifacts for an ordered descriptor list. One
// Manager serves one playback session; the window map is never shared.
type Manager struct {
	resolver Resolver
	opts     Options
	logger   bot.Logger

	mu      sync.Mutex
	list    []bot.TrackDescriptor
	window  map[int]*bot.ResolvedArtifact
	failed  map[int]struct{}
	current int
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(resolver Resolver, opts Options, logger bot.Logger) *Manager {
	if opts.Size <= 0 {
		opts.Size = 10
	}
	if opts.EvictionThreshold <= 0 {
		opts.EvictionThreshold = 100 << 20
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Manager{
		resolver: resolver,
		opts:     opts,
		logger:   logger,
		window:   make(map[int]*bot.ResolvedArtifact),
	}
}

// Start begins prefetching for the list with the playhead at startIndex
// (-1 when nothing is playing yet). Calling Start on a running manager
// replaces the list, drops the old window, and restarts the walker.
func (m *Manager) Start(list []bot.TrackDescriptor, startIndex int) {
	m.mu.Lock()
	m.list = append([]bot.TrackDescriptor(nil), list...)
	m.window = make(map[int]*bot.ResolvedArtifact)
	m.failed = nil
	m.current = startIndex
	m.stopped = false
	m.mu.Unlock()
	m.ensureWalker()
}

// Append extends the list with one descriptor and wakes the walker.
// Returns the new entry's index.
func (m *Manager) Append(desc bot.TrackDescriptor) int {
	m.mu.Lock()
	m.list = append(m.list, desc)
	index := len(m.list) - 1
	m.mu.Unlock()
	m.ensureWalker()
	return index
}

// Get returns the artifact at index, resolving synchronously when the
// walker has not reached it yet. This is the slow path the playhead takes
// when it outruns the prefetcher.
func (m *Manager) Get(ctx context.Context, index int) (*bot.ResolvedArtifact, error) {
	m.mu.Lock()
	if index < 0 || index >= len(m.list) {
		m.mu.Unlock()
		return nil, errors.New("buffer: index out of range")
	}
	if artifact, ok := m.window[index]; ok {
		m.mu.Unlock()
		return artifact, nil
	}
	desc := m.list[index]
	m.mu.Unlock()

	artifact, err := m.resolver.Resolve(ctx, desc)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.window[index] = artifact
	m.mu.Unlock()
	return artifact, nil
}

// Advance moves the playhead, evicts large played-back artifacts, and
// restarts the walker if it has run off the end of the list.
func (m *Manager) Advance(newIndex int) {
	m.mu.Lock()
	m.current = newIndex

	for idx := range m.failed {
		if idx < newIndex {
			delete(m.failed, idx)
		}
	}

	for idx, artifact := range m.window {
		if idx >= newIndex {
			continue
		}
		delete(m.window, idx)
		if m.shouldEvict(artifact) {
			if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("eviction failed", "path", artifact.Path, "error", err)
			} else {
				m.logger.Debug("evicted artifact", "index", idx, "path", artifact.Path)
			}
		}
	}
	m.mu.Unlock()

	m.ensureWalker()
}

func (m *Manager) shouldEvict(artifact *bot.ResolvedArtifact) bool {
	size := artifact.Size
	if size == 0 {
		if info, err := os.Stat(artifact.Path); err == nil {
			size = info.Size()
		}
	}
	return size > m.opts.EvictionThreshold
}

// Stop cancels the walker and waits for it to exit. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Resolved reports how many entries strictly ahead of the playhead are
// currently buffered.
func (m *Manager) Resolved() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for idx := range m.window {
		if idx > m.current {
			count++
		}
	}
	return count
}

func (m *Manager) ensureWalker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.stopped {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.walk(ctx, m.done)
}

// walk resolves entries in ascending order, at most opts.Size ahead of the
// playhead, idling when saturated. It exits at the end of the list; Advance
// restarts it when the playhead moves.
func (m *Manager) walk(ctx context.Context, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		index, desc, state := m.nextTarget()
		switch state {
		case walkDone:
			return
		case walkSaturated:
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.opts.PollInterval):
			}
			continue
		}

		artifact, err := m.resolver.Resolve(ctx, desc)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Left unresolved; the playhead will retry via Get.
			m.logger.Warn("prefetch failed, skipping index",
				"index", index, "track", desc.DisplayName(), "error", err)
			m.markSkipped(index)
			continue
		}

		m.mu.Lock()
		m.window[index] = artifact
		m.mu.Unlock()
	}
}

type walkState int

const (
	walkReady walkState = iota
	walkSaturated
	walkDone
)

// nextTarget finds the first unresolved index in the window just after
// the playhead, (current, current+Size].
func (m *Manager) nextTarget() (int, bot.TrackDescriptor, walkState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := m.current + m.opts.Size
	for idx := m.current + 1; idx < len(m.list); idx++ {
		if idx > limit {
			return 0, bot.TrackDescriptor{}, walkSaturated
		}
		if _, ok := m.window[idx]; ok {
			continue
		}
		if m.skipped(idx) {
			continue
		}
		return idx, m.list[idx], walkReady
	}
	if limit < len(m.list)-1 {
		return 0, bot.TrackDescriptor{}, walkSaturated
	}
	return 0, bot.TrackDescriptor{}, walkDone
}

// Failed prefetches are remembered so the walker does not spin on a dead
// index; the map resets when the playhead passes them.
func (m *Manager) markSkipped(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = make(map[int]struct{})
	}
	m.failed[index] = struct{}{}
}

func (m *Manager) skipped(index int) bool {
	_, ok := m.failed[index]
	return ok
}
