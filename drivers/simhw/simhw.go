// Package simhw is the hosted, deterministic simulation backend for the
// driver contracts in package drivers. It is the backend every test in
// this module and every cmd/ example runs against; drivers/tamagohw is the
// real-hardware counterpart for bare-metal ARM targets.
//
// All simulated devices share a single manually-advanced Clock rather than
// wall-clock time, so simulated time only moves when a test or program
// ticks it. The reactor still runs in its own goroutine, so tests do wait
// in real time for it to handle what a tick made pending.
package simhw

import (
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
)

// Clock is the shared simulated tick source. Tick drives every device
// registered against it; call it in place of the periodic hardware ISR.
type Clock struct {
	wheel *timer.Wheel
	r     *reactor.Reactor
}

// NewClock constructs a Clock bound to the given reactor and timer wheel.
func NewClock(r *reactor.Reactor, w *timer.Wheel) *Clock {
	return &Clock{wheel: w, r: r}
}

// Tick advances the wheel by one tick and notifies its dispatch handle,
// exactly as a real periodic tick ISR would.
func (c *Clock) Tick() {
	c.wheel.Advance()
	c.r.NotifyFromISR(c.wheel.DispatchHandle())
}

// TickN advances n ticks.
func (c *Clock) TickN(n int) {
	for i := 0; i < n; i++ {
		c.Tick()
	}
}

// Now returns the current simulated tick.
func (c *Clock) Now() timer.Tick { return c.wheel.Now() }
