package cache

import "time"

// Policy decides which TTL a new entry gets. TTL is a property of each
// entry, not a global constant, so staleness itself is answered by the
// package-level IsStale.
type Policy struct {
	// DefaultTTL is the TTL assigned when no per-library override applies.
	// If zero, DefaultPolicy's value should be used instead.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// Overrides maps library names to per-library TTLs.
	Overrides map[string]time.Duration
}

// DefaultPolicy returns the default staleness policy.
// DefaultTTL: 7 days, MaxTTL: 30 days.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 7 * 24 * time.Hour,
		MaxTTL:     30 * 24 * time.Hour,
	}
}

// EffectiveTTL returns the TTL for a new entry for library, applying
// per-library overrides, defaults, and clamping.
func (p Policy) EffectiveTTL(library string) time.Duration {
	ttl := p.DefaultTTL
	if override, ok := p.Overrides[library]; ok && override > 0 {
		ttl = override
	}

	// Clamp to MaxTTL if set
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}

// IsStale reports whether entry's age meets or exceeds its TTL at now.
// The entry carries its own TTL, so staleness needs no policy.
// Pure: no side effects, no I/O.
func IsStale(entry Entry, now time.Time) bool {
	return now.Sub(entry.FetchedAt) >= entry.TTL
}
