package source

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors classifying fetch failures.
var (
	// ErrNotFound means the library or topic does not exist upstream.
	// Fatal for that key; never retried.
	ErrNotFound = errors.New("source: documentation not found")

	// ErrRateLimited means the upstream throttled the request. Transient.
	ErrRateLimited = errors.New("source: rate limited")

	// ErrNetwork covers transport failures, timeouts, and unexpected
	// upstream responses. Transient.
	ErrNetwork = errors.New("source: network error")

	// ErrAuth means credentials were rejected or expired. Fatal and
	// global; callers should stop fetching until credentials change.
	ErrAuth = errors.New("source: authentication failed")
)

// Transient reports whether err is worth retrying with backoff.
// Only rate-limit and network failures qualify.
func Transient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork)
}

// Classify returns the taxonomy label for a fetch error, for logs and
// metrics. A nil error classifies as "ok"; anything outside the
// taxonomy as "unknown".
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrAuth):
		return "auth"
	default:
		return "unknown"
	}
}

// Document is the content returned by a successful fetch.
type Document struct {
	// Library is the library the content documents.
	Library string

	// Topic is the requested topic, empty for library-wide docs.
	Topic string

	// Content is the raw documentation text.
	Content string

	// RetrievedAt is when the upstream responded.
	RetrievedAt time.Time
}

// Source fetches documentation from an upstream provider.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Fetch must honor cancellation and deadlines.
// - Errors: failures wrap exactly one of the sentinel errors above so
//   callers can classify them with errors.Is.
type Source interface {
	// Fetch retrieves documentation for library, optionally narrowed to
	// topic (empty topic means library-wide documentation).
	Fetch(ctx context.Context, library, topic string) (*Document, error)
}
