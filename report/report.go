package report

import (
	"context"
	"time"

	"github.com/jonwraymond/toolcontext/cache"
	"github.com/jonwraymond/toolcontext/lookup"
)

// StaleKey describes a required key whose cached entry has outlived
// its TTL.
type StaleKey struct {
	// Key is the stale documentation key.
	Key string `json:"key"`

	// Age is how long ago the entry was fetched.
	Age time.Duration `json:"age_ns"`

	// AgeHuman is Age formatted for operators.
	AgeHuman string `json:"age"`
}

// UnavailableKey describes a required key that is uncached and whose
// fetches have been failing.
type UnavailableKey struct {
	// Key is the failing documentation key.
	Key string `json:"key"`

	// Kind is the taxonomy label of the last failure.
	Kind string `json:"kind"`

	// Count is the number of consecutive failures.
	Count int `json:"count"`

	// Last is when the most recent failure occurred.
	Last time.Time `json:"last"`
}

// Report is one coverage pass over the required manifest.
type Report struct {
	// GeneratedAt is when the pass ran.
	GeneratedAt time.Time `json:"generated_at"`

	// Required is the number of keys in the manifest.
	Required int `json:"required"`

	// Covered is the number of required keys with a cached entry,
	// fresh or stale.
	Covered int `json:"covered"`

	// CoveragePercent is Covered over Required as a percentage. A
	// manifest with no keys reports 100.
	CoveragePercent float64 `json:"coverage_percent"`

	// Missing lists required keys with no cached entry and no
	// recorded fetch failure.
	Missing []string `json:"missing,omitempty"`

	// Stale lists required keys whose entries have outlived their TTL.
	Stale []StaleKey `json:"stale,omitempty"`

	// Unavailable lists required keys that are uncached because
	// fetches keep failing.
	Unavailable []UnavailableKey `json:"unavailable,omitempty"`
}

// FailureSource supplies current per-key fetch failures. The lookup
// service implements it.
type FailureSource interface {
	Failures() []lookup.Failure
}

// Reporter computes coverage reports against a cache store.
type Reporter struct {
	store    cache.Store
	clock    cache.Clock
	failures FailureSource
}

// NewReporter creates a reporter. A nil failures source means no key
// is ever classified as unavailable.
func NewReporter(store cache.Store, clock cache.Clock, failures FailureSource) *Reporter {
	if clock == nil {
		clock = cache.SystemClock()
	}
	return &Reporter{store: store, clock: clock, failures: failures}
}

// Coverage classifies every required key against the cache. Keys are
// reported in manifest order; duplicates in the manifest are counted
// once.
func (r *Reporter) Coverage(ctx context.Context, required []cache.Key) (Report, error) {
	now := r.clock.Now()
	report := Report{GeneratedAt: now}

	failing := make(map[cache.Key]lookup.Failure)
	if r.failures != nil {
		for _, f := range r.failures.Failures() {
			failing[f.Key] = f
		}
	}

	seen := make(map[cache.Key]bool, len(required))
	for _, key := range required {
		if seen[key] {
			continue
		}
		seen[key] = true
		report.Required++

		entry, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return Report{}, err
		}

		if !ok {
			if f, failed := failing[key]; failed {
				report.Unavailable = append(report.Unavailable, UnavailableKey{
					Key:   key.String(),
					Kind:  f.Kind,
					Count: f.Count,
					Last:  f.Last,
				})
			} else {
				report.Missing = append(report.Missing, key.String())
			}
			continue
		}

		report.Covered++
		if cache.IsStale(entry, now) {
			age := now.Sub(entry.FetchedAt)
			report.Stale = append(report.Stale, StaleKey{
				Key:      key.String(),
				Age:      age,
				AgeHuman: age.String(),
			})
		}
	}

	if report.Required == 0 {
		report.CoveragePercent = 100
	} else {
		report.CoveragePercent = float64(report.Covered) / float64(report.Required) * 100
	}
	return report, nil
}
