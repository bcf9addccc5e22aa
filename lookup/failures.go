package lookup

import (
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/toolcontext/cache"
)

// Failure records the most recent fetch failure for a key.
type Failure struct {
	// Key is the documentation key that failed.
	Key cache.Key

	// Kind is the taxonomy label of the last error.
	Kind string

	// Count is the number of consecutive failures since the last
	// success.
	Count int

	// Last is when the most recent failure occurred.
	Last time.Time
}

// failureRegistry tracks consecutive fetch failures per key so the
// coverage report can list keys that are unavailable rather than
// merely missing.
type failureRegistry struct {
	mu    sync.Mutex
	byKey map[cache.Key]Failure
}

func newFailureRegistry() *failureRegistry {
	return &failureRegistry{byKey: make(map[cache.Key]Failure)}
}

// Record notes a failure of the given kind for key at now.
func (r *failureRegistry) Record(key cache.Key, kind string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.byKey[key]
	f.Key = key
	f.Kind = kind
	f.Count++
	f.Last = now
	r.byKey[key] = f
}

// Clear forgets the failure history for key, typically after a
// successful fetch.
func (r *failureRegistry) Clear(key cache.Key) {
	r.mu.Lock()
	delete(r.byKey, key)
	r.mu.Unlock()
}

// Snapshot returns all current failures ordered by key.
func (r *failureRegistry) Snapshot() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Failure, 0, len(r.byKey))
	for _, f := range r.byKey {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}
