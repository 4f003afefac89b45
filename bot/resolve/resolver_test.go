package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
	"github.com/muhammadzakizn/sonora/bot/verify"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)     {}
func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (l nopLogger) With(...any) bot.Logger { return l }

type mockProvider struct {
	name      string
	caps      platform.Capabilities
	downloads int32

	downloadFn func(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error)
}

func (p *mockProvider) Name() string                        { return p.name }
func (p *mockProvider) Capabilities() platform.Capabilities { return p.caps }

func (p *mockProvider) Search(ctx context.Context, query string, limit int) ([]bot.TrackDescriptor, error) {
	return nil, platform.ErrUnsupported
}

func (p *mockProvider) Download(ctx context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
	atomic.AddInt32(&p.downloads, 1)
	if p.downloadFn != nil {
		return p.downloadFn(ctx, desc, destDir)
	}
	return nil, platform.ErrUnavailable
}

func (p *mockProvider) CheckCache(desc bot.TrackDescriptor, cacheDir string) (string, bool) {
	return "", false
}

type mockVerifier struct {
	mu      sync.Mutex
	verdict func(artifact *bot.ResolvedArtifact) error
	calls   int
}

func (v *mockVerifier) Verify(artifact *bot.ResolvedArtifact, desc bot.TrackDescriptor) (verify.Result, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.verdict != nil {
		if err := v.verdict(artifact); err != nil {
			return verify.Result{Reason: err.Error()}, err
		}
	}
	return verify.Result{Accepted: true, Confidence: 1}, nil
}

func writeFakeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write fake audio: %v", err)
	}
	return path
}

func downloadOK(t *testing.T, provider string) func(context.Context, bot.TrackDescriptor, string) (*bot.ResolvedArtifact, error) {
	return func(_ context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
		path := writeFakeAudio(t, destDir, bot.CacheKey(desc.Artist, desc.Title)+".opus")
		return &bot.ResolvedArtifact{Path: path, Provider: provider}, nil
	}
}

func newResolver(t *testing.T, verifier Verifier, providers ...platform.Provider) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	mgr := platform.NewManager()
	for _, p := range providers {
		mgr.Register(p)
	}
	r := New(mgr, verifier, Options{
		MaxRetries:      3,
		DownloadTimeout: 5 * time.Second,
		CacheDir:        dir,
	}, nopLogger{})
	return r, dir
}

func TestResolveCacheHitSkipsDownload(t *testing.T) {
	p := &mockProvider{name: "ytmusic", caps: platform.Capabilities{Download: true}}
	r, dir := newResolver(t, &mockVerifier{}, p)

	writeFakeAudio(t, dir, "Artist - Title.opus")

	artifact, err := r.Resolve(context.Background(), bot.TrackDescriptor{Title: "Title", Artist: "Artist"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if artifact.Provider != "cache" {
		t.Fatalf("expected cache provenance, got %s", artifact.Provider)
	}
	if atomic.LoadInt32(&p.downloads) != 0 {
		t.Fatal("cache hit must not download")
	}
}

func TestResolveProviderFallback(t *testing.T) {
	failing := &mockProvider{name: "ytmusic", caps: platform.Capabilities{Download: true}}
	working := &mockProvider{
		name:       "backup",
		caps:       platform.Capabilities{Download: true},
		downloadFn: downloadOK(t, "backup"),
	}
	r, _ := newResolver(t, &mockVerifier{}, failing, working)

	artifact, err := r.Resolve(context.Background(), bot.TrackDescriptor{Title: "Song", Artist: "Someone"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if artifact.Provider != "backup" {
		t.Fatalf("expected fallback provider, got %s", artifact.Provider)
	}
	if atomic.LoadInt32(&failing.downloads) != 1 {
		t.Fatalf("first provider tried %d times, want 1", failing.downloads)
	}
}

func TestResolveVerificationRetryExhaustion(t *testing.T) {
	p1 := &mockProvider{name: "ytmusic", caps: platform.Capabilities{Download: true}, downloadFn: downloadOK(t, "ytmusic")}
	p2 := &mockProvider{name: "backup", caps: platform.Capabilities{Download: true}}

	rejectAll := &mockVerifier{verdict: func(*bot.ResolvedArtifact) error {
		return errors.New("unwanted version")
	}}
	r, _ := newResolver(t, rejectAll, p1, p2)

	_, err := r.Resolve(context.Background(), bot.TrackDescriptor{Title: "Song", Artist: "Someone", URL: "https://example.com/v"})
	if err == nil {
		t.Fatal("expected exhaustion")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}

	providers := map[string]bool{}
	for _, a := range exhausted.Attempts {
		providers[a.Provider] = true
	}
	if len(providers) < 2 {
		t.Fatalf("expected attempts from at least 2 distinct providers, got %v", providers)
	}

	// Three verification retries consume the budget.
	if got := atomic.LoadInt32(&p1.downloads); got != 3 {
		t.Fatalf("downloading provider tried %d times, want 3", got)
	}
}

func TestResolveClearsURLAfterVerificationFailure(t *testing.T) {
	var urls []string
	var mu sync.Mutex
	p := &mockProvider{name: "ytmusic", caps: platform.Capabilities{Download: true}}
	p.downloadFn = func(_ context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
		mu.Lock()
		urls = append(urls, desc.URL)
		mu.Unlock()
		path := writeFakeAudio(t, destDir, "x.opus")
		return &bot.ResolvedArtifact{Path: path, Provider: "ytmusic"}, nil
	}

	verifier := &mockVerifier{}
	verifier.verdict = func(*bot.ResolvedArtifact) error {
		verifier.mu.Lock()
		first := verifier.calls == 1
		verifier.mu.Unlock()
		if first {
			return errors.New("mismatch")
		}
		return nil
	}

	r, _ := newResolver(t, verifier, p)
	if _, err := r.Resolve(context.Background(), bot.TrackDescriptor{Title: "Song", Artist: "A", URL: "https://bad.example/v"}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(urls) != 2 {
		t.Fatalf("expected 2 download attempts, got %d", len(urls))
	}
	if urls[0] == "" || urls[1] != "" {
		t.Fatalf("expected URL cleared on retry, got %q then %q", urls[0], urls[1])
	}
}

func TestResolveDeduplicatesConcurrent(t *testing.T) {
	gate := make(chan struct{})
	p := &mockProvider{name: "ytmusic", caps: platform.Capabilities{Download: true}}
	p.downloadFn = func(_ context.Context, desc bot.TrackDescriptor, destDir string) (*bot.ResolvedArtifact, error) {
		<-gate
		path := writeFakeAudio(t, destDir, bot.CacheKey(desc.Artist, desc.Title)+".opus")
		return &bot.ResolvedArtifact{Path: path, Provider: "ytmusic"}, nil
	}
	r, _ := newResolver(t, &mockVerifier{}, p)

	desc := bot.TrackDescriptor{Title: "Song", Artist: "A"}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve(context.Background(), desc); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&p.downloads); got != 1 {
		t.Fatalf("concurrent resolves triggered %d downloads, want 1", got)
	}
}
