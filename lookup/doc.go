// Package lookup implements the read path of the documentation cache.
//
// Every lookup resolves to one of three states: a fresh cache hit
// served directly, a stale hit served immediately with a background
// refresh queued, or a miss fetched synchronously from the upstream
// source. Lookup never surfaces upstream failures to the caller; a
// miss that cannot be fetched yields a placeholder and caches nothing.
package lookup
