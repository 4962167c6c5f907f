//go:build tamago

package tamagohw

import (
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
	"github.com/usbarmory/tamago/arm"
)

// HardwareClock drives a timer.Wheel from TamaGo's ARM generic timer
// interrupt, the bare-metal equivalent of the periodic tick ISR spec.md §6
// assumes. There is exactly one HardwareClock per Runtime; every
// CompareTimer shares it the same way every simhw.CompareTimer shares one
// simhw.Clock.
type HardwareClock struct {
	wheel *timer.Wheel
	r     *reactor.Reactor
	gt    *arm.GenericTimer
}

// NewHardwareClock arms gt to fire once per period ticks and wires each
// firing to advance wheel and notify its dispatch handle from interrupt
// context, exactly as simhw.Clock.Tick does from hosted test code.
func NewHardwareClock(r *reactor.Reactor, wheel *timer.Wheel, gt *arm.GenericTimer, period uint32) *HardwareClock {
	c := &HardwareClock{wheel: wheel, r: r, gt: gt}

	gt.Init()
	gt.SetEventTimer(uint64(period))
	gt.EnableInterrupt(func() {
		c.wheel.Advance()
		c.r.NotifyFromISR(c.wheel.DispatchHandle())
		gt.SetEventTimer(uint64(period))
	})

	return c
}

// Now returns the current tick count, read through the wheel it drives.
func (c *HardwareClock) Now() timer.Tick { return c.wheel.Now() }
