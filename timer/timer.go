// Package timer implements the software timer wheel: a sorted,
// fixed-capacity ring of deferred and periodic reactor notifications driven
// by a periodic hardware tick. Entries are kept sorted by deadline so the
// head is always the next to fire; dispatch happens through the reactor,
// never inside the tick ISR itself.
package timer

import (
	"github.com/adarwoo/asx-go/alert"
	"github.com/adarwoo/asx-go/reactor"
)

// Tick is the free-running 32-bit counter incremented by the periodic
// hardware ISR. Wraparound is handled by always comparing deadlines with
// signed difference arithmetic, never by absolute comparison.
type Tick uint32

// Capacity is M from spec.md §3: the fixed-size ring capacity.
const Capacity = 16

// Instance is a monotonically increasing identifier for a single arming of
// a timer entry, distinct from a reactor.Handle. Never reused while a timer
// is pending; a repeating timer keeps its Instance stable across firings.
type Instance uint32

// entry is a TimerEntry from the data model. target == reactor.NullHandle
// marks an unused slot.
type entry struct {
	target   reactor.Handle
	instance Instance
	deadline Tick
	repeat   Tick // 0 means one-shot
	arg      uint32
}

// before implements the sequence-number comparison from spec.md §4.C:
// a < b iff (a.deadline - now) < (b.deadline - now), using signed
// arithmetic on the subtraction result. This is correct across counter
// wraparound provided no deadline is more than half the counter range in
// the future.
func before(a, b, now Tick) bool {
	da := int32(a - now)
	db := int32(b - now)
	return da < db
}

// due reports whether deadline's relative-to-now offset is <= 0.
func due(deadline, now Tick) bool {
	return int32(deadline-now) <= 0
}

// Wheel is the timer wheel. The zero value is not usable; construct with
// New. All arm/cancel operations run from the reactor's main context, never
// concurrently with onTick, because the reactor is single-threaded.
type Wheel struct {
	r *reactor.Reactor

	ring      [Capacity]entry
	head      int // index of the earliest-deadline active entry
	count     int // number of active entries
	nextInst  Instance
	tickCount Tick // atomic-ish free-running counter, advanced by Advance
	dispatch  reactor.Handle
}

// New constructs a Wheel bound to r and registers its own tick-dispatch
// handler at High priority (time is the most priority-sensitive collaborator
// in the system: a late timer dispatch delays every downstream handler that
// depends on it, such as Modbus's t15/t35/t40 windows).
func New(r *reactor.Reactor) *Wheel {
	w := &Wheel{r: r}
	for i := range w.ring {
		w.ring[i].target = reactor.NullHandle
	}
	w.dispatch = r.Register(func(uint32) { w.onTick() }, reactor.High)
	return w
}

// DispatchHandle returns the reactor handle that must be notified (from the
// hardware tick ISR, via NotifyFromISR) each time the tick counter advances.
func (w *Wheel) DispatchHandle() reactor.Handle { return w.dispatch }

// Advance increments the free-running tick counter. It is the Go-hosted
// substitute for the periodic hardware ISR: call it once per simulated
// tick, then notify DispatchHandle() to drive the wheel the same way a real
// ISR would.
func (w *Wheel) Advance() Tick {
	w.tickCount++
	return w.tickCount
}

// Now returns the current tick count.
func (w *Wheel) Now() Tick { return w.tickCount }

// slot returns the ring index of the n-th active entry starting from head,
// wrapping modulo Capacity.
func (w *Wheel) slot(n int) int {
	return (w.head + n) % Capacity
}

// Arm schedules target to be notified with arg at deadline (absolute tick
// value). repeat == 0 arms a one-shot; repeat > 0 re-arms the same Instance
// at deadline+repeat each time it fires. Arm is fatal if the ring is full.
func (w *Wheel) Arm(target reactor.Handle, deadline Tick, repeat Tick, arg uint32) Instance {
	if w.count == Capacity {
		alert.Fatal("timer: ring full (capacity %d)", Capacity)
	}

	inst := w.nextInst
	w.nextInst++

	// Find insertion position: first active entry whose deadline is
	// strictly greater than the new entry's, walking from head.
	now := w.tickCount
	pos := w.count
	for i := 0; i < w.count; i++ {
		if before(deadline, w.ring[w.slot(i)].deadline, now) {
			pos = i
			break
		}
	}

	w.insertAt(pos, entry{target: target, instance: inst, deadline: deadline, repeat: repeat, arg: arg})
	return inst
}

// insertAt shifts entries at and after pos right by one slot and writes e
// into the freed slot.
func (w *Wheel) insertAt(pos int, e entry) {
	for i := w.count; i > pos; i-- {
		w.ring[w.slot(i)] = w.ring[w.slot(i-1)]
	}
	w.ring[w.slot(pos)] = e
	w.count++
}

// removeAt shifts entries after pos left by one slot, shrinking the active
// segment.
func (w *Wheel) removeAt(pos int) {
	for i := pos; i < w.count-1; i++ {
		w.ring[w.slot(i)] = w.ring[w.slot(i+1)]
	}
	w.ring[w.slot(w.count-1)] = entry{target: reactor.NullHandle}
	w.count--
}

// Cancel removes the armed entry identified by inst, if it is still
// pending. It returns true iff the instance was found and removed. A
// cancelled one-shot never fires; a cancelled repeating timer never fires
// again. Cancelling an expired or unknown instance is safe and returns
// false.
func (w *Wheel) Cancel(inst Instance) bool {
	for i := 0; i < w.count; i++ {
		idx := w.slot(i)
		if w.ring[idx].target != reactor.NullHandle && w.ring[idx].instance == inst {
			w.removeAt(i)
			return true
		}
	}
	return false
}

// onTick drains every entry whose deadline has passed, notifying its
// target handle through the reactor (never invoking it directly: timers
// only ever fire in main context, through a dispatch pass). Repeating
// entries are re-armed in place with the same Instance, retaining their
// stable identity across firings; if the recomputed deadline is already in
// the past (heavy load), it is snapped to now.
func (w *Wheel) onTick() {
	now := w.tickCount
	for w.count > 0 {
		head := w.ring[w.slot(0)]
		if !due(head.deadline, now) {
			break
		}
		w.removeAt(0)

		w.r.Notify(head.target, head.arg)

		if head.repeat > 0 {
			next := head.deadline + head.repeat
			if due(next, now) {
				next = now
			}
			pos := w.count
			for i := 0; i < w.count; i++ {
				if before(next, w.ring[w.slot(i)].deadline, now) {
					pos = i
					break
				}
			}
			w.insertAt(pos, entry{target: head.target, instance: head.instance, deadline: next, repeat: head.repeat, arg: head.arg})
		}
	}
}
