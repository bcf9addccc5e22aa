// Package cache provides durable storage for fetched library documentation.
//
// It provides a Store interface with memory and SQLite implementations,
// whole-entry atomic replacement semantics, and a TTL-based staleness
// policy driven by an injectable clock.
package cache
