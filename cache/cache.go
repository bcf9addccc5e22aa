package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxLibraryLength is the maximum allowed length for a library name.
const MaxLibraryLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilStore   = errors.New("cache: store is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: library exceeds max length")
	ErrClosed     = errors.New("cache: store is closed")
)

// Confidence describes how an entry's content was obtained.
type Confidence string

const (
	// ConfidenceFresh marks content written directly after a successful fetch.
	ConfidenceFresh Confidence = "fresh"

	// ConfidenceStaleFallback marks content that was served past its TTL
	// while a background refresh was pending.
	ConfidenceStaleFallback Confidence = "stale-fallback"
)

// Key addresses a documentation entry. An empty Topic is a distinct,
// valid key covering the library as a whole, not a wildcard.
type Key struct {
	Library string
	Topic   string
}

// String returns the canonical form used for storage addressing and
// request coalescing: "library" or "library/topic".
func (k Key) String() string {
	if k.Topic == "" {
		return k.Library
	}
	return k.Library + "/" + k.Topic
}

// ParseKey parses the canonical "library" or "library/topic" form back
// into a Key. Only the first slash separates library from topic.
func ParseKey(s string) (Key, error) {
	library, topic, _ := strings.Cut(s, "/")
	key := Key{Library: library, Topic: topic}
	if err := key.Validate(); err != nil {
		return Key{}, err
	}
	return key, nil
}

// Validate checks if a key is valid for caching.
func (k Key) Validate() error {
	if k.Library == "" || strings.TrimSpace(k.Library) == "" {
		return ErrInvalidKey
	}
	if len(k.Library) > MaxLibraryLength {
		return ErrKeyTooLong
	}
	// "/" separates library from topic in the canonical form; a library
	// containing one would alias a different key.
	if strings.Contains(k.Library, "/") {
		return ErrInvalidKey
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(k.Library, "\n\r") || strings.ContainsAny(k.Topic, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// Entry is one cached documentation record. Entries are immutable once
// stored: a refresh replaces the whole entry, it never mutates fields
// in place.
type Entry struct {
	// Key addresses this entry.
	Key Key

	// Content is the raw documentation text.
	Content string

	// FetchedAt is when Content was retrieved from the upstream source.
	FetchedAt time.Time

	// TTL is how long after FetchedAt the entry is considered fresh.
	TTL time.Duration

	// Confidence records whether the content was fresh at write time.
	Confidence Confidence
}

// Age returns how long ago the entry was fetched.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store is the interface for durable documentation storage.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent readers and
//   a concurrent writer per key; readers never observe a partial entry.
// - Atomicity: Put replaces the whole entry for the key (last writer wins).
// - Errors: Get returns (Entry{}, false, nil) on miss; Invalidate is
//   idempotent and does not error on absent keys.
type Store interface {
	// Get retrieves the entry for key. Returns ok=false on miss.
	Get(ctx context.Context, key Key) (Entry, bool, error)

	// Put stores entry, replacing any existing entry for the same key.
	Put(ctx context.Context, entry Entry) error

	// Invalidate removes the entry for key. Idempotent.
	Invalidate(ctx context.Context, key Key) error

	// Keys enumerates all stored keys, for validation and coverage reports.
	Keys(ctx context.Context) ([]Key, error)

	// Close releases underlying resources.
	Close() error
}
