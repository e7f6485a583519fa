package harvest

import "time"

// Gates is the throttle set of one session: scroll cadence, extraction
// cycle cadence and outbound message cadence are independent, so a
// burst on one activity cannot starve another. The set is owned by
// exactly one session; the message gate is lent to its bridge.
type Gates struct {
	Scroll     *RateGate
	Extraction *RateGate
	Message    *RateGate
}

func NewGates(iv Intervals) *Gates {
	return &Gates{
		Scroll:     NewRateGate(iv.Scroll),
		Extraction: NewRateGate(iv.Extraction),
		Message:    NewRateGate(iv.Message),
	}
}

// NewGatesWithClock injects a clock into every gate, for tests.
func NewGatesWithClock(iv Intervals, now func() time.Time) *Gates {
	return &Gates{
		Scroll:     NewRateGateWithClock(iv.Scroll, now),
		Extraction: NewRateGateWithClock(iv.Extraction, now),
		Message:    NewRateGateWithClock(iv.Message, now),
	}
}

// Reset reopens every gate, done on session start.
func (g *Gates) Reset() {
	g.Scroll.Reset()
	g.Extraction.Reset()
	g.Message.Reset()
}
