//go:build tamago

package tamagohw

import (
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
)

// CompareTimer satisfies drivers.CompareTimer the same way
// simhw.CompareTimer does: three compare channels and one overflow channel
// are just four entries armed against the shared HardwareClock's wheel.
// TamaGo exposes no free-standing three-channel compare peripheral, so this
// is the hardware-backend equivalent built on the one periodic interrupt
// HardwareClock already provides, rather than a second register-level
// driver.
type CompareTimer struct {
	r     *reactor.Reactor
	w     *timer.Wheel
	clock *HardwareClock

	c0, c1, c2 timer.Tick
	overflow   timer.Tick
	h0, h1, h2 reactor.Handle
	hOverflow  reactor.Handle

	instances [4]timer.Instance
	armed     [4]bool
	running   bool
}

// NewCompareTimer constructs a stopped CompareTimer driven by clock.
func NewCompareTimer(r *reactor.Reactor, w *timer.Wheel, clock *HardwareClock) *CompareTimer {
	return &CompareTimer{r: r, w: w, clock: clock,
		h0: reactor.NullHandle, h1: reactor.NullHandle, h2: reactor.NullHandle,
		hOverflow: reactor.NullHandle}
}

func (t *CompareTimer) SetCompare(c0, c1, c2 timer.Tick) { t.c0, t.c1, t.c2 = c0, c1, c2 }
func (t *CompareTimer) SetOverflow(period timer.Tick)    { t.overflow = period }
func (t *CompareTimer) ReactOnCompare(h0, h1, h2 reactor.Handle) {
	t.h0, t.h1, t.h2 = h0, h1, h2
}
func (t *CompareTimer) ReactOnOverflow(h reactor.Handle) { t.hOverflow = h }

func (t *CompareTimer) registeredMask() reactor.Mask {
	var m reactor.Mask
	m.Append(t.h0)
	m.Append(t.h1)
	m.Append(t.h2)
	m.Append(t.hOverflow)
	return m
}

// Start stops the timer, clears stale pending reactor bits for its
// registered channels, resets to zero, then re-arms. See
// drivers.CompareTimer's doc comment for why this exact ordering matters.
func (t *CompareTimer) Start() {
	t.Stop()
	t.r.Clear(t.registeredMask())

	now := t.clock.Now()
	t.arm(0, t.h0, now+t.c0)
	t.arm(1, t.h1, now+t.c1)
	t.arm(2, t.h2, now+t.c2)
	t.armOverflow(now)
	t.running = true
}

func (t *CompareTimer) arm(slot int, h reactor.Handle, deadline timer.Tick) {
	if h == reactor.NullHandle {
		return
	}
	t.instances[slot] = t.w.Arm(h, deadline, 0, 0)
	t.armed[slot] = true
}

func (t *CompareTimer) armOverflow(now timer.Tick) {
	if t.hOverflow == reactor.NullHandle {
		return
	}
	t.instances[3] = t.w.Arm(t.hOverflow, now+t.overflow, 0, 0)
	t.armed[3] = true
}

// Stop cancels every armed channel.
func (t *CompareTimer) Stop() {
	for i := range t.armed {
		if t.armed[i] {
			t.w.Cancel(t.instances[i])
			t.armed[i] = false
		}
	}
	t.running = false
}

// Running reports whether the timer is currently started.
func (t *CompareTimer) Running() bool { return t.running }
