package platform

import (
	"errors"
	"fmt"
)

// Common provider errors that can be checked with errors.Is. All of them
// are recoverable by falling back to the next provider in priority order.
var (
	// ErrNotFound is returned when no matching track exists at a provider.
	ErrNotFound = errors.New("platform: track not found")

	// ErrRateLimited is returned when the provider API rate limit is hit.
	ErrRateLimited = errors.New("platform: rate limit exceeded")

	// ErrUnavailable is returned when content exists but cannot be served
	// in the current region or context.
	ErrUnavailable = errors.New("platform: content unavailable")

	// ErrUnsupported is returned when an operation is not supported by the
	// provider (e.g. Download on a catalog-only source).
	ErrUnsupported = errors.New("platform: operation not supported")

	// ErrTimeout is returned when a provider call exceeded its deadline.
	ErrTimeout = errors.New("platform: operation timed out")
)

// ProviderError wraps an error with the provider and operation that caused
// it. The underlying sentinel stays checkable with errors.Is / errors.As,
// and the resolution pipeline aggregates ProviderErrors into its terminal
// exhausted failure.
type ProviderError struct {
	// Provider is the name of the provider that returned the error.
	Provider string

	// Op is the operation that failed ("search", "download", "lyrics").
	Op string

	// Track describes the track being operated on, if applicable.
	Track string

	// Err is the underlying error.
	Err error
}

func (e *ProviderError) Error() string {
	if e.Track != "" {
		return fmt.Sprintf("%s: %s %q: %v", e.Provider, e.Op, e.Track, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err with provider context.
func NewProviderError(provider, op, track string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Track: track, Err: err}
}

// Fallback reports whether the error should advance the provider fallback
// chain instead of aborting the attempt.
func Fallback(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrTimeout)
}
