package cache

import "time"

// Clock is an injectable time source. Staleness decisions must go through
// a Clock rather than reading wall-clock time directly, so they stay
// deterministic under test.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// systemClock reads the wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}

// Ensure systemClock implements Clock
var _ Clock = systemClock{}
