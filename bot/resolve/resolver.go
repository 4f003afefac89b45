// Package resolve turns a track descriptor into a verified local audio
// artifact: cache lookup, provider-fallback download, metadata
// verification, bounded retry.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/platform"
	"github.com/muhammadzakizn/sonora/bot/verify"
)

// AttemptError is one failed provider attempt inside an ExhaustedError.
type AttemptError struct {
	Provider string
	Err      error
}

func (a AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", a.Provider, a.Err)
}

// ExhaustedError is returned when every retry and provider failed. It is
// terminal for the track, never for the session.
type ExhaustedError struct {
	Track    string
	Attempts []AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("resolution exhausted for %q: %s", e.Track, strings.Join(parts, "; "))
}

// Options configures the pipeline.
type Options struct {
	// MaxRetries bounds verification-failure retries (default 3).
	// Provider fallback within one attempt does not consume a retry.
	MaxRetries int

	// DownloadTimeout wraps each provider download call.
	DownloadTimeout time.Duration

	// CacheDir is where artifacts live.
	CacheDir string
}

// Verifier is the verification dependency, satisfied by *verify.Verifier.
type Verifier interface {
	Verify(artifact *bot.ResolvedArtifact, desc bot.TrackDescriptor) (verify.Result, error)
}

// Resolver composes the provider manager and the verifier.
type Resolver struct {
	providers *platform.Manager
	verifier  Verifier
	opts      Options
	logger    bot.Logger

	// group deduplicates concurrent resolutions of the same track, e.g.
	// the prefetch walker racing a synchronous Get on the same index.
	group singleflight.Group
}

func New(providers *platform.Manager, verifier Verifier, opts Options, logger bot.Logger) *Resolver {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 90 * time.Second
	}
	return &Resolver{
		providers: providers,
		verifier:  verifier,
		opts:      opts,
		logger:    logger,
	}
}

// Resolve returns a verified artifact for the descriptor. Concurrent calls
// for the same track share one resolution.
func (r *Resolver) Resolve(ctx context.Context, desc bot.TrackDescriptor) (*bot.ResolvedArtifact, error) {
	key := bot.CacheKey(desc.Artist, desc.Title)
	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, desc)
	})
	if err != nil {
		return nil, err
	}
	return result.(*bot.ResolvedArtifact), nil
}

func (r *Resolver) resolve(ctx context.Context, desc bot.TrackDescriptor) (*bot.ResolvedArtifact, error) {
	var attempts []AttemptError

	// Cache first. A hit still goes through verification; a cached file
	// that fails it is deleted and the pipeline falls through to download.
	if path, ok := r.providers.FindCached(desc, r.opts.CacheDir); ok {
		artifact := &bot.ResolvedArtifact{Path: path, Provider: "cache"}
		if res, err := r.verifier.Verify(artifact, desc); err == nil {
			r.logger.Debug("cache hit", "track", desc.DisplayName(), "path", path, "confidence", res.Confidence)
			return artifact, nil
		} else {
			r.logger.Warn("cached file failed verification, discarding",
				"track", desc.DisplayName(), "path", path, "error", err)
			_ = os.Remove(path)
			attempts = append(attempts, AttemptError{Provider: "cache", Err: err})
		}
	}

	for attempt := 0; attempt < r.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		artifact, attemptErrs := r.downloadAny(ctx, desc, attempt)
		attempts = append(attempts, attemptErrs...)
		if artifact == nil {
			// Every provider failed outright; more attempts will not help.
			break
		}

		res, err := r.verifier.Verify(artifact, desc)
		if err == nil {
			r.logger.Info("track resolved",
				"track", desc.DisplayName(), "provider", artifact.Provider,
				"confidence", res.Confidence, "attempt", attempt+1)
			return artifact, nil
		}

		r.logger.Warn("verification rejected download",
			"track", desc.DisplayName(), "provider", artifact.Provider,
			"attempt", attempt+1, "error", err)
		_ = os.Remove(artifact.Path)
		attempts = append(attempts, AttemptError{Provider: artifact.Provider, Err: err})

		// A known-bad source URL would just re-download the same file.
		desc = desc.ClearURL()
	}

	return nil, &ExhaustedError{Track: desc.DisplayName(), Attempts: attempts}
}

// downloadAny walks the provider chain until one produces a file.
// Provider failures advance the chain without consuming a verification
// retry. The chain is rotated by the attempt number so a provider that
// keeps serving a verification-failing file does not starve the others.
func (r *Resolver) downloadAny(ctx context.Context, desc bot.TrackDescriptor, attempt int) (*bot.ResolvedArtifact, []AttemptError) {
	var errs []AttemptError

	providers := r.providers.Downloaders()
	if len(providers) == 0 {
		return nil, []AttemptError{{Provider: "none", Err: errors.New("no download-capable providers registered")}}
	}
	offset := attempt % len(providers)
	ordered := append(append([]platform.Provider(nil), providers[offset:]...), providers[:offset]...)

	for _, provider := range ordered {
		dctx, cancel := context.WithTimeout(ctx, r.opts.DownloadTimeout)
		artifact, err := provider.Download(dctx, desc, r.opts.CacheDir)
		cancel()

		if err == nil && artifact != nil {
			return artifact, errs
		}
		if err == nil {
			err = errors.New("provider returned no artifact")
		}
		errs = append(errs, AttemptError{Provider: provider.Name(), Err: err})
		r.logger.Debug("provider download failed, trying next",
			"track", desc.DisplayName(), "provider", provider.Name(), "error", err)

		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}
