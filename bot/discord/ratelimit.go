package discord

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// RateLimiter throttles outgoing message traffic per text channel so the
// 1s progress cadence across many guilds never trips Discord's REST
// limits. discordgo handles the global bucket; this keeps a polite
// per-channel pace on top.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(msgPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(msgPerSec),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(channelID string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[channelID]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[channelID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[channelID] = limiter
	return limiter
}

// Wait blocks until the channel's limiter admits one event.
func (rl *RateLimiter) Wait(ctx context.Context, channelID string) error {
	return rl.getLimiter(channelID).Wait(ctx)
}

// Allow reports whether one event may proceed right now without waiting.
func (rl *RateLimiter) Allow(channelID string) bool {
	return rl.getLimiter(channelID).Allow()
}

// WithRetry runs fn under the channel limiter, honoring Discord 429
// retry-after hints for up to three attempts.
func WithRetry(ctx context.Context, rl *RateLimiter, channelID string, fn func() error) error {
	if fn == nil {
		return nil
	}
	if rl == nil {
		return fn()
	}

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := rl.Wait(ctx, channelID); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		retryAfter, shouldRetry := parseRetryAfter(lastErr)
		if !shouldRetry {
			return lastErr
		}

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfter):
			}
		}
	}
	return lastErr
}

func parseRetryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.RetryAfter > 0 {
			return rateErr.RetryAfter, true
		}
		return time.Second, true
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == 429 {
		return time.Second, true
	}

	return 0, false
}
