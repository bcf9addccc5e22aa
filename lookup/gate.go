package lookup

import (
	"sync"
	"time"
)

// authGate blocks upstream fetches after an authentication failure.
// Auth errors are global, not per-key: once credentials are rejected,
// every fetch would fail the same way, so the gate short-circuits them
// all until the reset timeout elapses and one probe is allowed through.
type authGate struct {
	mu           sync.Mutex
	resetTimeout time.Duration
	openUntil    time.Time
}

func newAuthGate(resetTimeout time.Duration) *authGate {
	if resetTimeout <= 0 {
		resetTimeout = 5 * time.Minute
	}
	return &authGate{resetTimeout: resetTimeout}
}

// Allow reports whether a fetch may proceed at now.
func (g *authGate) Allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !now.Before(g.openUntil)
}

// Trip opens the gate after an auth failure at now.
func (g *authGate) Trip(now time.Time) {
	g.mu.Lock()
	g.openUntil = now.Add(g.resetTimeout)
	g.mu.Unlock()
}

// Reset closes the gate, typically after a successful fetch or a
// credential change.
func (g *authGate) Reset() {
	g.mu.Lock()
	g.openUntil = time.Time{}
	g.mu.Unlock()
}

// Open reports whether the gate is blocking fetches at now.
func (g *authGate) Open(now time.Time) bool {
	return !g.Allow(now)
}
