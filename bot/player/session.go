package player

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/buffer"
	"github.com/muhammadzakizn/sonora/bot/queue"
)

// Deps wires a session to its collaborators.
type Deps struct {
	GuildID string
	Queue   *queue.Queue
	Buffer  *buffer.Manager
	Sink    AudioSink
	Members MembershipQuerier
	Emitter Emitter
	Enrich  Enricher
	History bot.HistoryRepository
	Pool    bot.WorkerPool
	Logger  bot.Logger

	// Clock is injected for tests; defaults to time.Now.
	Clock func() time.Time
}

// Session is one guild's live playback state. All clock math lives here:
// elapsed = now - start - pausedAccum, adjusted only through the pause
// accumulator, never by moving the start timestamp.
type Session struct {
	deps Deps
	opts Options

	// enqMu keeps the queue and the prefetch list appended in the same
	// order; the pop index maps 1:1 onto the buffer index.
	enqMu sync.Mutex

	mu          sync.Mutex
	state       State
	current     *queue.Entry
	tracker     *lyricsTracker
	handle      PlayHandle
	startTime   time.Time
	pauseStart  time.Time
	pausedAccum time.Duration
	skipped     bool
	index       int
	running     bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(deps Deps, opts Options) *Session {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Session{
		deps:  deps,
		opts:  opts.withDefaults(),
		state: StateIdle,
		index: -1,
	}
}

// Enqueue adds a descriptor to the queue and the prefetch list, starting
// the engine if it is idle. Returns the queue position.
func (s *Session) Enqueue(desc bot.TrackDescriptor) (int, error) {
	s.enqMu.Lock()
	pos, err := s.deps.Queue.Append(&queue.Entry{Descriptor: desc})
	if err != nil {
		s.enqMu.Unlock()
		return 0, err
	}
	s.deps.Buffer.Append(desc)
	s.enqMu.Unlock()
	if startErr := s.Start(); startErr != nil && startErr != ErrAlreadyRunning {
		return pos, startErr
	}
	return pos, nil
}

// Start launches the engine goroutine. Safe to call repeatedly; a running
// session returns ErrAlreadyRunning.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.state = StateIdle
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop terminates the session: cancels the engine, stops the sink, and
// waits for the engine goroutine to exit. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	handle := s.handle
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if handle != nil {
		_ = handle.Stop()
	}
	if done != nil {
		<-done
	}
}

// Pause suspends playback. The pause start is recorded for the
// accumulator adjustment on resume.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	s.state = StatePaused
	s.pauseStart = s.deps.Clock()
	handle := s.handle
	s.mu.Unlock()

	if handle != nil {
		return handle.Pause()
	}
	return nil
}

// Resume continues playback, folding the pause interval into the
// accumulator so elapsed time stays continuous.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return ErrNotPaused
	}
	s.pausedAccum += s.deps.Clock().Sub(s.pauseStart)
	s.state = StatePlaying
	handle := s.handle
	s.mu.Unlock()

	if handle != nil {
		return handle.Resume()
	}
	return nil
}

// Skip ends the current track. Completion is delivered through the same
// end-of-stream path as a natural finish, so the engine observes it
// exactly once.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.state != StatePlaying && s.state != StatePaused {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	s.skipped = true
	handle := s.handle
	s.mu.Unlock()

	if handle != nil {
		return handle.Stop()
	}
	return nil
}

// Elapsed returns the playback position of the current track.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	var elapsed time.Duration
	switch s.state {
	case StatePlaying:
		elapsed = s.deps.Clock().Sub(s.startTime) - s.pausedAccum
	case StatePaused:
		elapsed = s.pauseStart.Sub(s.startTime) - s.pausedAccum
	default:
		return 0
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NowPlaying returns the active entry, nil when idle.
func (s *Session) NowPlaying() *queue.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Shuffle reorders the queue and rebuilds the prefetch window around the
// new order.
func (s *Session) Shuffle() {
	s.deps.Queue.Shuffle()
	s.rebuildBuffer()
}

// Remove drops the entry at position and rebuilds the prefetch window.
func (s *Session) Remove(position int) (*queue.Entry, error) {
	entry, err := s.deps.Queue.Remove(position)
	if err != nil {
		return nil, err
	}
	s.rebuildBuffer()
	return entry, nil
}

// Move relocates a queue entry and rebuilds the prefetch window.
func (s *Session) Move(from, to int) error {
	if err := s.deps.Queue.Move(from, to); err != nil {
		return err
	}
	s.rebuildBuffer()
	return nil
}

// Clear empties the queue. The current track keeps playing.
func (s *Session) Clear() int {
	removed := s.deps.Queue.Clear()
	s.rebuildBuffer()
	return removed
}

// rebuildBuffer restarts prefetching over the queue's current order. The
// playhead resets to -1 because played indices no longer map to the new
// list. enqMu is held so an in-flight Enqueue cannot land its queue
// append in the snapshot but its buffer append in the replaced list.
func (s *Session) rebuildBuffer() {
	s.enqMu.Lock()
	defer s.enqMu.Unlock()

	entries := s.deps.Queue.PeekAll()
	list := make([]bot.TrackDescriptor, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.Descriptor)
	}
	s.mu.Lock()
	s.index = -1
	s.mu.Unlock()
	s.deps.Buffer.Start(list, -1)
}

// run is the engine goroutine: pop, policy checks, load, play, advance.
func (s *Session) run(ctx context.Context) {
	defer func() {
		s.deps.Buffer.Stop()
		s.mu.Lock()
		s.running = false
		s.state = StateStopped
		s.current = nil
		s.handle = nil
		done := s.done
		s.mu.Unlock()
		close(done)
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		entry, err := s.deps.Queue.PopFront()
		if err != nil {
			// Empty queue is the normal terminal signal.
			s.deps.Logger.Info("queue drained, session ending", "guild", s.deps.GuildID)
			return
		}

		s.mu.Lock()
		s.index++
		index := s.index
		s.mu.Unlock()

		desc := entry.Descriptor

		// Empty-channel skip: do not play to a room with no humans.
		if desc.VoiceChannelID != "" && s.deps.Members != nil {
			n, merr := s.deps.Members.ListHumanMembers(desc.VoiceChannelID)
			if merr == nil && n == 0 {
				s.deps.Logger.Info("skipping track for empty channel",
					"guild", s.deps.GuildID, "channel", desc.VoiceChannelID, "track", desc.DisplayName())
				s.record(desc, bot.OutcomeSkipped, "empty voice channel")
				continue
			}
		}

		// Channel affinity: move the connection when the entry was
		// requested for a different channel.
		if desc.VoiceChannelID != "" && desc.VoiceChannelID != s.deps.Sink.CurrentChannel() {
			if cerr := s.deps.Sink.Connect(ctx, desc.VoiceChannelID); cerr != nil {
				s.deps.Logger.Error("voice connect failed, skipping track",
					"guild", s.deps.GuildID, "channel", desc.VoiceChannelID, "error", cerr)
				s.record(desc, bot.OutcomeFailed, "voice connect: "+cerr.Error())
				continue
			}
		}

		s.setState(StateLoading)

		artifact := entry.Artifact
		if artifact == nil {
			// Buffer fast path: a prefetched artifact returns
			// immediately; otherwise this blocks on a synchronous
			// resolution.
			artifact, err = s.deps.Buffer.Get(ctx, index)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// Resolution failure skips the track, never the session.
				s.deps.Logger.Warn("resolution failed, advancing",
					"guild", s.deps.GuildID, "track", desc.DisplayName(), "error", err)
				s.record(desc, bot.OutcomeFailed, err.Error())
				continue
			}
			entry.Artifact = artifact
		}

		tracker := s.enrich(ctx, entry)
		s.playTrack(ctx, entry, tracker)

		// Re-read the playhead: a mid-track rebuild resets it, and
		// advancing from the pop-time copy would misposition the new
		// window.
		s.mu.Lock()
		next := s.index + 1
		s.mu.Unlock()
		s.deps.Buffer.Advance(next)
	}
}

// enrich fetches lyrics/artwork with a short timeout. Failures return a
// nil tracker and playback proceeds.
func (s *Session) enrich(ctx context.Context, entry *queue.Entry) *lyricsTracker {
	if s.deps.Enrich == nil {
		return nil
	}
	ectx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	meta := s.deps.Enrich.Enrich(ectx, entry.Descriptor)
	if meta == nil {
		return nil
	}
	if entry.Artifact != nil {
		if err := s.deps.Enrich.EmbedTags(entry.Artifact.Path, entry.Descriptor, meta.Lyrics); err != nil {
			s.deps.Logger.Debug("tag embed failed",
				"guild", s.deps.GuildID, "track", entry.Descriptor.DisplayName(), "error", err)
		}
	}
	if meta.Lyrics == nil {
		return nil
	}
	if entry.Enriched == nil {
		entry.Enriched = &queue.EnrichedRef{}
	}
	entry.Enriched.LyricsSource = meta.Lyrics.Source
	return newLyricsTracker(meta.Lyrics, entry.Descriptor.Duration, s.opts.LyricsGap)
}

// playTrack hands the artifact to the sink and runs the update loop until
// completion. The engine goroutine is the only consumer of the sink's
// end-of-stream notification, so the Completed transition happens exactly
// once per track regardless of how it ends.
func (s *Session) playTrack(ctx context.Context, entry *queue.Entry, tracker *lyricsTracker) {
	handle, err := s.deps.Sink.Play(ctx, entry.Artifact.Path, s.opts.Volume)
	if err != nil {
		s.deps.Logger.Error("sink rejected track",
			"guild", s.deps.GuildID, "path", entry.Artifact.Path, "error", err)
		s.record(entry.Descriptor, bot.OutcomeFailed, "sink: "+err.Error())
		return
	}

	s.mu.Lock()
	s.current = entry
	s.tracker = tracker
	s.handle = handle
	s.state = StatePlaying
	s.startTime = s.deps.Clock()
	s.pausedAccum = 0
	s.skipped = false
	s.mu.Unlock()

	s.deps.Logger.Info("playing",
		"guild", s.deps.GuildID, "track", entry.Descriptor.DisplayName(),
		"provider", entry.Artifact.Provider)

	limiter := rate.NewLimiter(rate.Every(s.opts.EmitInterval), 1)
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = handle.Stop()
			// Await the sink before releasing the track so a cancelled
			// stream cannot write to a closed connection.
			<-handle.Done()
			s.finishTrack(entry, bot.OutcomeSkipped, "session stopped")
			return

		case playErr := <-handle.Done():
			outcome := bot.OutcomePlayed
			detail := ""
			s.mu.Lock()
			if s.skipped {
				outcome = bot.OutcomeSkipped
				detail = "skipped"
			}
			s.mu.Unlock()
			if playErr != nil {
				outcome = bot.OutcomeFailed
				detail = playErr.Error()
			}
			s.finishTrack(entry, outcome, detail)
			return

		case <-ticker.C:
			s.tick(entry, limiter)
		}
	}
}

// tick runs every TickInterval but only emits at the coarser cadence.
// While paused nothing is emitted at all.
func (s *Session) tick(entry *queue.Entry, limiter *rate.Limiter) {
	s.mu.Lock()
	state := s.state
	elapsed := s.elapsedLocked()
	tracker := s.tracker
	s.mu.Unlock()

	if state != StatePlaying {
		return
	}
	if s.deps.Emitter == nil || !limiter.Allow() {
		return
	}

	update := ProgressUpdate{
		GuildID:  s.deps.GuildID,
		Track:    entry.Descriptor,
		State:    state,
		Elapsed:  elapsed,
		Duration: entry.Descriptor.Duration,
	}
	if tracker != nil {
		update.Lyrics = tracker.At(elapsed)
	}
	s.deps.Emitter.EmitProgress(update)
}

func (s *Session) finishTrack(entry *queue.Entry, outcome bot.PlayOutcome, detail string) {
	s.mu.Lock()
	s.state = StateCompleted
	s.handle = nil
	s.tracker = nil
	s.current = nil
	s.mu.Unlock()

	s.record(entry.Descriptor, outcome, detail)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// record persists the play outcome fire-and-forget: failures are logged
// and never surface to playback.
func (s *Session) record(desc bot.TrackDescriptor, outcome bot.PlayOutcome, detail string) {
	if s.deps.History == nil {
		return
	}
	rec := &bot.PlayRecord{
		GuildID:     s.deps.GuildID,
		ChannelID:   desc.VoiceChannelID,
		Title:       desc.Title,
		Artist:      desc.Artist,
		Album:       desc.Album,
		Provider:    desc.Provider,
		DurationSec: int(desc.Duration / time.Second),
		Outcome:     outcome,
		Detail:      detail,
		RequestedBy: desc.RequestedBy,
	}
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.History.RecordPlay(ctx, rec); err != nil {
			s.deps.Logger.Warn("history write failed", "guild", s.deps.GuildID, "error", err)
		}
	}
	if s.deps.Pool != nil {
		if err := s.deps.Pool.Submit(task); err != nil {
			s.deps.Logger.Warn("history task rejected", "guild", s.deps.GuildID, "error", err)
		}
		return
	}
	go task()
}
