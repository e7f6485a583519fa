package harvest

import "time"

// RateGate is a minimum-interval throttle on one named activity. It is
// advisory: TryFire never blocks or queues, a caller that is told "not
// ready" simply skips the firing.
type RateGate struct {
	minInterval time.Duration
	lastFired   time.Time
	now         func() time.Time
}

func NewRateGate(minInterval time.Duration) *RateGate {
	return &RateGate{minInterval: minInterval, now: time.Now}
}

// NewRateGateWithClock injects a clock, for tests.
func NewRateGateWithClock(minInterval time.Duration, now func() time.Time) *RateGate {
	return &RateGate{minInterval: minInterval, now: now}
}

// TryFire reports whether the activity may run now, and records the
// firing if so. Two true results are never closer than minInterval.
func (g *RateGate) TryFire() bool {
	now := g.now()
	if !g.lastFired.IsZero() && now.Sub(g.lastFired) < g.minInterval {
		return false
	}
	g.lastFired = now
	return true
}

// Reset clears the gate so the next TryFire succeeds immediately.
func (g *RateGate) Reset() {
	g.lastFired = time.Time{}
}

// Interval returns the configured minimum spacing.
func (g *RateGate) Interval() time.Duration {
	return g.minInterval
}
