package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateGateFirstFireSucceeds(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1000, 0)}
	g := NewRateGateWithClock(time.Second, clock.now)

	assert.True(t, g.TryFire())
}

func TestRateGateMonotonicSpacing(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1000, 0)}
	g := NewRateGateWithClock(time.Second, clock.now)

	var fired []time.Time
	for i := 0; i < 50; i++ {
		if g.TryFire() {
			fired = append(fired, clock.t)
		}
		clock.advance(130 * time.Millisecond)
	}

	assert.GreaterOrEqual(t, len(fired), 2)
	for i := 1; i < len(fired); i++ {
		assert.GreaterOrEqual(t, fired[i].Sub(fired[i-1]), time.Second)
	}
}

func TestRateGateSkippedFiringLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1000, 0)}
	g := NewRateGateWithClock(time.Second, clock.now)

	assert.True(t, g.TryFire())
	clock.advance(500 * time.Millisecond)
	assert.False(t, g.TryFire())

	// a denied attempt must not push the window forward
	clock.advance(500 * time.Millisecond)
	assert.True(t, g.TryFire())
}

func TestRateGateReset(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1000, 0)}
	g := NewRateGateWithClock(time.Minute, clock.now)

	assert.True(t, g.TryFire())
	assert.False(t, g.TryFire())
	g.Reset()
	assert.True(t, g.TryFire())
}
