package player

import (
	"testing"
	"time"

	"github.com/muhammadzakizn/sonora/bot/platform"
)

func syncedLyrics() *platform.Lyrics {
	return &platform.Lyrics{
		Source: "test",
		Timestamped: []platform.LyricLine{
			{Time: 5 * time.Second, Text: "first line"},
			{Time: 10 * time.Second, Text: "second line"},
			{Time: 12 * time.Second, Text: ""},
			{Time: 30 * time.Second, Text: "after the break"},
		},
	}
}

func TestSyncedLyricsWindowSelection(t *testing.T) {
	tracker := newLyricsTracker(syncedLyrics(), time.Minute, 500*time.Millisecond)

	view := tracker.At(7 * time.Second)
	if view.Current != "first line" {
		t.Fatalf("at 7s current = %q, want first line", view.Current)
	}
	if view.Next != "second line" {
		t.Fatalf("at 7s next = %q", view.Next)
	}
	if view.Instrumental {
		t.Fatal("7s is inside a sung line, not instrumental")
	}

	view = tracker.At(10 * time.Second)
	if view.Current != "second line" || view.Prev != "first line" {
		t.Fatalf("window boundary wrong: current %q prev %q", view.Current, view.Prev)
	}
}

func TestSyncedLyricsInstrumentalGap(t *testing.T) {
	tracker := newLyricsTracker(syncedLyrics(), time.Minute, 500*time.Millisecond)

	// 12s-30s is an empty line lasting 18s, well over the gap threshold.
	view := tracker.At(20 * time.Second)
	if !view.Instrumental {
		t.Fatal("expected instrumental marker in the gap")
	}
	if view.Prev != "second line" || view.Next != "after the break" {
		t.Fatalf("instrumental context wrong: prev %q next %q", view.Prev, view.Next)
	}
}

func TestSyncedLyricsIntro(t *testing.T) {
	tracker := newLyricsTracker(syncedLyrics(), time.Minute, 500*time.Millisecond)

	// Before the first line at 5s: a 5s intro is instrumental.
	view := tracker.At(2 * time.Second)
	if !view.Instrumental {
		t.Fatal("expected instrumental intro")
	}
	if view.Index != -1 {
		t.Fatalf("intro index = %d, want -1", view.Index)
	}
	if view.Next != "first line" {
		t.Fatalf("intro next = %q", view.Next)
	}
}

func TestUnsyncedLyricsApproximation(t *testing.T) {
	lyrics := &platform.Lyrics{Plain: "one\ntwo\nthree\nfour"}
	tracker := newLyricsTracker(lyrics, 100*time.Second, 500*time.Millisecond)

	if view := tracker.At(0); view.Current != "one" {
		t.Fatalf("at 0 current = %q", view.Current)
	}
	// 60s of 100s across 4 lines lands on line index 2.
	if view := tracker.At(60 * time.Second); view.Current != "three" {
		t.Fatalf("at 60s current = %q, want three", view.Current)
	}
	// Past the end clamps to the last line.
	if view := tracker.At(200 * time.Second); view.Current != "four" {
		t.Fatalf("past end current = %q, want four", view.Current)
	}
}

func TestNilAndEmptyLyrics(t *testing.T) {
	if tracker := newLyricsTracker(nil, time.Minute, time.Second); tracker != nil {
		t.Fatal("nil lyrics should give nil tracker")
	}
	if tracker := newLyricsTracker(&platform.Lyrics{}, time.Minute, time.Second); tracker != nil {
		t.Fatal("empty lyrics should give nil tracker")
	}

	var tracker *lyricsTracker
	if view := tracker.At(time.Second); view != nil {
		t.Fatal("nil tracker must return nil view")
	}
}
