package trading

import (
	"sync/atomic"
	"time"

	"github.com/tradelog/tradelog/adapter"
)

var _ adapter.Clock = (*SimulationClock)(nil)

// SimulationClock holds the current bar time of a backtest. The host
// advances it; the pipeline reads it on every event.
type SimulationClock struct {
	nanos atomic.Int64
	set   atomic.Bool
}

func NewSimulationClock(start time.Time) *SimulationClock {
	clock := &SimulationClock{}
	if !start.IsZero() {
		clock.Set(start)
	}
	return clock
}

// CurrentTime returns the zero time until the clock is first set.
func (c *SimulationClock) CurrentTime() time.Time {
	if !c.set.Load() {
		return time.Time{}
	}
	return time.Unix(0, c.nanos.Load()).UTC()
}

func (c *SimulationClock) Set(t time.Time) {
	c.nanos.Store(t.UnixNano())
	c.set.Store(true)
}
