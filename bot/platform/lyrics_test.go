package platform

import (
	"testing"
	"time"
)

func TestParseLRCBasic(t *testing.T) {
	lrc := "[00:01.50]first line\n[00:05.00]second line\nnot a lyric\n[00:03.25]out of order"

	lines := ParseLRC(lrc)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0].Text != "first line" || lines[0].Time != 1500*time.Millisecond {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Text != "out of order" {
		t.Fatalf("lines not sorted by time: %+v", lines[1])
	}
}

func TestParseLRCKeepsEmptyMarkers(t *testing.T) {
	lines := ParseLRC("[00:01.00]intro\n[00:02.00]   \n[00:30.00]after the break")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %+v", len(lines), lines)
	}
	if lines[1].Text != "" || lines[1].Time != 2*time.Second {
		t.Fatalf("instrumental marker not preserved: %+v", lines[1])
	}
}

func TestNormalizeLRCTimestamps(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"[1:2.5]x", "[01:02.50]x"},
		{"[00:10.123]x", "[00:10.12]x"},
		{"[03:04:56]x", "[03:04.56]x"},
		{"no timestamps", "no timestamps"},
	}
	for _, tc := range cases {
		if got := NormalizeLRCTimestamps(tc.in); got != tc.want {
			t.Fatalf("NormalizeLRCTimestamps(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLyricsSyncedAndLines(t *testing.T) {
	var nilLyrics *Lyrics
	if nilLyrics.Synced() {
		t.Fatal("nil lyrics must not report synced")
	}

	l := &Lyrics{Plain: "one\n\n  two  \n"}
	if l.Synced() {
		t.Fatal("plain lyrics must not report synced")
	}
	lines := l.Lines()
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("unexpected plain lines: %v", lines)
	}

	l.Timestamped = []LyricLine{{Time: time.Second, Text: "one"}}
	if !l.Synced() {
		t.Fatal("timestamped lyrics must report synced")
	}
}
