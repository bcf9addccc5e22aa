// Package refresh performs non-blocking background replacement of stale
// documentation cache entries.
//
// It provides a deduplicating priority Queue of refresh tasks and a
// bounded worker Pool that drains the queue through the upstream source
// with bounded exponential backoff, leaving the last-known-good entry in
// place when a refresh ultimately fails.
package refresh
