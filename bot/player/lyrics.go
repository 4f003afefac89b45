package player

import (
	"time"

	"github.com/muhammadzakizn/sonora/bot/platform"
)

// LyricsView is the display state for one instant of playback.
type LyricsView struct {
	// Current is the active line, empty during instrumental passages.
	Current string

	// Prev and Next give the surrounding context lines.
	Prev string
	Next string

	// Instrumental marks a gap longer than the configured threshold.
	Instrumental bool

	// Index is the active line number, -1 before the first line.
	Index int

	// Synced is false when the position is approximated from plain
	// lyrics.
	Synced bool
}

// lyricsTracker selects the display line for an elapsed time. It is
// immutable after construction; the engine tick queries it lock-free.
type lyricsTracker struct {
	lines  []platform.LyricLine
	plain  []string
	total  time.Duration
	gap    time.Duration
	synced bool
}

func newLyricsTracker(lyrics *platform.Lyrics, total, gap time.Duration) *lyricsTracker {
	if lyrics == nil {
		return nil
	}
	t := &lyricsTracker{total: total, gap: gap}
	if lyrics.Synced() {
		t.lines = lyrics.Timestamped
		t.synced = true
	} else {
		t.plain = lyrics.Lines()
	}
	if len(t.lines) == 0 && len(t.plain) == 0 {
		return nil
	}
	return t
}

// At returns the view for elapsed time T.
func (t *lyricsTracker) At(elapsed time.Duration) *LyricsView {
	if t == nil {
		return nil
	}
	if t.synced {
		return t.atSynced(elapsed)
	}
	return t.atPlain(elapsed)
}

// atSynced finds the line whose [start, nextStart) window contains T.
// A window with empty text, or the stretch before the first line, renders
// as instrumental when longer than the gap threshold.
func (t *lyricsTracker) atSynced(elapsed time.Duration) *LyricsView {
	view := &LyricsView{Index: -1, Synced: true}

	if elapsed < t.lines[0].Time {
		if t.lines[0].Time > t.gap {
			view.Instrumental = true
		}
		view.Next = t.lines[0].Text
		return view
	}

	idx := 0
	for i := len(t.lines) - 1; i >= 0; i-- {
		if t.lines[i].Time <= elapsed {
			idx = i
			break
		}
	}

	view.Index = idx
	view.Current = t.lines[idx].Text
	if idx > 0 {
		view.Prev = t.lines[idx-1].Text
	}
	if idx < len(t.lines)-1 {
		view.Next = t.lines[idx+1].Text
	}

	if view.Current == "" {
		windowEnd := t.total
		if idx < len(t.lines)-1 {
			windowEnd = t.lines[idx+1].Time
		}
		if windowEnd-t.lines[idx].Time > t.gap {
			view.Instrumental = true
		}
	}
	return view
}

// atPlain approximates the position as T / total * lineCount.
func (t *lyricsTracker) atPlain(elapsed time.Duration) *LyricsView {
	view := &LyricsView{Index: 0}
	if t.total > 0 {
		view.Index = int(float64(elapsed) / float64(t.total) * float64(len(t.plain)))
	}
	if view.Index < 0 {
		view.Index = 0
	}
	if view.Index >= len(t.plain) {
		view.Index = len(t.plain) - 1
	}
	view.Current = t.plain[view.Index]
	if view.Index > 0 {
		view.Prev = t.plain[view.Index-1]
	}
	if view.Index < len(t.plain)-1 {
		view.Next = t.plain[view.Index+1]
	}
	return view
}
