package buffer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muhammadzakizn/sonora/bot"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)     {}
func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (l nopLogger) With(...any) bot.Logger { return l }

type fakeResolver struct {
	dir      string
	resolved int32
	failIdx  map[string]bool
	size     int64
}

func (r *fakeResolver) Resolve(ctx context.Context, desc bot.TrackDescriptor) (*bot.ResolvedArtifact, error) {
	if r.failIdx[desc.Title] {
		return nil, errors.New("provider down")
	}
	atomic.AddInt32(&r.resolved, 1)
	path := filepath.Join(r.dir, bot.CacheKey(desc.Artist, desc.Title)+".opus")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		return nil, err
	}
	return &bot.ResolvedArtifact{Path: path, Provider: "fake", Size: r.size}, nil
}

func makeList(n int) []bot.TrackDescriptor {
	list := make([]bot.TrackDescriptor, n)
	for i := range list {
		list[i] = bot.TrackDescriptor{Title: fmt.Sprintf("Track %02d", i), Artist: "A"}
	}
	return list
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestWalkerRespectsWindowBound(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	m := New(resolver, Options{Size: 10, PollInterval: 5 * time.Millisecond}, nopLogger{})
	defer m.Stop()

	m.Start(makeList(50), 0)

	waitFor(t, func() bool { return m.Resolved() == 10 }, "walker never filled the window")

	// Saturated: give the walker time to overshoot if it were going to.
	time.Sleep(50 * time.Millisecond)
	if got := m.Resolved(); got > 10 {
		t.Fatalf("window bound exceeded: %d resolved ahead", got)
	}
	if got := atomic.LoadInt32(&resolver.resolved); got > 10 {
		t.Fatalf("resolved %d entries while saturated, want at most 10", got)
	}
}

func TestAdvanceRefillsWindow(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	m := New(resolver, Options{Size: 5, PollInterval: 5 * time.Millisecond}, nopLogger{})
	defer m.Stop()

	m.Start(makeList(20), 0)
	waitFor(t, func() bool { return m.Resolved() == 5 }, "initial fill")

	m.Advance(5)
	waitFor(t, func() bool { return m.Resolved() == 5 }, "refill after advance")
}

func TestEvictionThreshold(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	m := New(resolver, Options{Size: 3, EvictionThreshold: 100, PollInterval: 5 * time.Millisecond}, nopLogger{})
	defer m.Stop()

	list := makeList(4)
	m.Start(list, 0)

	big, err := m.Get(context.Background(), 0)
	if err != nil {
		t.Fatalf("get big: %v", err)
	}
	big.Size = 200 // over threshold

	small, err := m.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("get small: %v", err)
	}
	small.Size = 50 // under threshold

	m.Advance(2)

	if _, err := os.Stat(big.Path); !os.IsNotExist(err) {
		t.Fatal("artifact over threshold should be deleted after advance")
	}
	if _, err := os.Stat(small.Path); err != nil {
		t.Fatalf("artifact under threshold should be kept: %v", err)
	}
}

func TestGetSlowPathResolvesSynchronously(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	m := New(resolver, Options{Size: 2, PollInterval: time.Hour}, nopLogger{})
	defer m.Stop()

	list := makeList(30)
	m.Start(list, 0)

	// Index 25 is far outside the window; Get must resolve it on demand.
	artifact, err := m.Get(context.Background(), 25)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if artifact == nil || artifact.Path == "" {
		t.Fatal("expected artifact from slow path")
	}

	// Second call is a window hit, no extra resolution.
	before := atomic.LoadInt32(&resolver.resolved)
	if _, err := m.Get(context.Background(), 25); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if atomic.LoadInt32(&resolver.resolved) != before {
		t.Fatal("window hit should not resolve again")
	}
}

func TestGetOutOfRange(t *testing.T) {
	m := New(&fakeResolver{dir: t.TempDir()}, Options{}, nopLogger{})
	m.Start(makeList(3), 0)
	defer m.Stop()

	if _, err := m.Get(context.Background(), 10); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if _, err := m.Get(context.Background(), -1); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestWalkerSkipsFailingIndex(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir(), failIdx: map[string]bool{"Track 01": true}}
	m := New(resolver, Options{Size: 3, PollInterval: 5 * time.Millisecond}, nopLogger{})
	defer m.Stop()

	m.Start(makeList(5), 0)

	// Indices 2 and 3 resolve even though 1 keeps failing.
	waitFor(t, func() bool { return m.Resolved() >= 2 }, "walker stuck on failing index")
}

func TestStopIsIdempotentAndAwaited(t *testing.T) {
	resolver := &fakeResolver{dir: t.TempDir()}
	m := New(resolver, Options{Size: 5, PollInterval: 5 * time.Millisecond}, nopLogger{})

	m.Start(makeList(50), 0)
	m.Stop()
	m.Stop() // no-op

	// Advance after Stop must not revive the walker.
	m.Advance(10)
	before := atomic.LoadInt32(&resolver.resolved)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&resolver.resolved) != before {
		t.Fatal("walker resumed after stop")
	}
}
