package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/muhammadzakizn/sonora/bot"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFindCachedExactMatch(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "Artist - Title.opus")

	got, ok := FindCached(bot.TrackDescriptor{Artist: "Artist", Title: "Title"}, dir)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != want {
		t.Fatalf("unexpected path: got %s want %s", got, want)
	}
}

func TestFindCachedFuzzyMatch(t *testing.T) {
	dir := t.TempDir()
	want := writeFile(t, dir, "Artist - Title (Official Audio).opus")

	got, ok := FindCached(bot.TrackDescriptor{Artist: "Artist", Title: "Title"}, dir)
	if !ok {
		t.Fatal("expected fuzzy cache hit")
	}
	if got != want {
		t.Fatalf("unexpected path: got %s want %s", got, want)
	}
}

func TestFindCachedFuzzyIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ARTIST - TITLE live rip.m4a")

	_, ok := FindCached(bot.TrackDescriptor{Artist: "artist", Title: "title"}, dir)
	if !ok {
		t.Fatal("expected case-insensitive hit")
	}
}

func TestFindCachedRequiresBothArtistAndTitle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Somebody Else - Title.mp3")

	_, ok := FindCached(bot.TrackDescriptor{Artist: "Artist", Title: "Title"}, dir)
	if ok {
		t.Fatal("expected miss when artist does not appear in filename")
	}
}

func TestFindCachedIgnoresNonAudioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Artist - Title.txt")

	_, ok := FindCached(bot.TrackDescriptor{Artist: "Artist", Title: "Title"}, dir)
	if ok {
		t.Fatal("expected miss for non-audio extension")
	}
}

func TestFindCachedIgnoresEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Artist - Title.opus")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, ok := FindCached(bot.TrackDescriptor{Artist: "Artist", Title: "Title"}, dir)
	if ok {
		t.Fatal("expected miss for zero-byte file")
	}
}

func TestFindCachedMissingDir(t *testing.T) {
	_, ok := FindCached(bot.TrackDescriptor{Artist: "a", Title: "b"}, filepath.Join(t.TempDir(), "nosuch"))
	if ok {
		t.Fatal("expected miss for missing directory")
	}
}
