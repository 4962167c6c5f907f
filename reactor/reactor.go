package reactor

import (
	"context"
	"sync"

	"github.com/adarwoo/asx-go/alert"
)

// handlerRecord is the (callback, last_argument) pair from the data model.
// Exactly one exists per handle, owned by the Reactor's fixed table for the
// process lifetime.
type handlerRecord struct {
	callback     func(arg uint32)
	lastArgument uint32
	inUse        bool
}

// Reactor is the priority-ordered, bit-pending dispatcher. The zero value
// is not usable; construct with New.
//
// The mutex below stands in for "disable interrupts for the duration of the
// store-and-set" from spec.md §4.B: it is held only across a bit test,
// set/clear, or argument write, never across a handler invocation. A
// wrapper installed with SetCriticalSection runs around it, for a backend
// that must also disable real interrupts, since a Go mutex alone cannot
// exclude a hardware ISR; neither drivers/simhw nor drivers/tamagohw
// installs one.
type Reactor struct {
	mu      sync.Mutex
	pending Mask
	records [MaxHandles]handlerRecord

	nextHigh Handle // next high-priority handle to allocate, grows upward
	nextLow  Handle // next low-priority handle to allocate, grows downward

	started bool
	current Handle // handle of the callback presently executing, for Yield

	wake chan struct{} // signaled whenever pending transitions empty->non-empty

	idleHook     func()
	watchdogKick func()
	critSection  func(func())
}

// New constructs an empty Reactor.
func New() *Reactor {
	return &Reactor{
		nextHigh: 0,
		nextLow:  MaxHandles - 1,
		current:  NullHandle,
		wake:     make(chan struct{}, 1),
	}
}

// SetIdleHook installs the callback invoked immediately before the reactor
// sleeps on an empty PendingSet. Per spec.md §4.B it must be non-blocking
// and idempotent; the tracing facility's Flush is the canonical user.
func (r *Reactor) SetIdleHook(f func()) { r.idleHook = f }

// SetWatchdogKick installs the callback invoked after every dispatched
// handler returns, modeling "kick the hardware watchdog" in the dispatch
// loop algorithm.
func (r *Reactor) SetWatchdogKick(f func()) { r.watchdogKick = f }

// SetCriticalSection installs a wrapper run around the reactor's internal
// bit-test-and-set critical sections, for a backend that disables and
// re-enables interrupts there. Left unset, the reactor relies solely on its
// internal mutex.
func (r *Reactor) SetCriticalSection(f func(func())) { r.critSection = f }

func (r *Reactor) withLock(f func()) {
	if r.critSection != nil {
		r.critSection(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			f()
		})
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f()
}

// Register allocates a Handle bound to callback at the given priority.
// High-priority handles are allocated from the low end of the handle space
// and low-priority handles from the high end, so registration order within
// a priority class is preserved and "highest priority pending" reduces to
// smallest bit index. Register is fatal if called after Run has started,
// or if the handle table is exhausted (the two allocation ends meeting).
func (r *Reactor) Register(callback func(arg uint32), priority Priority) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		alert.Fatal("reactor: Register called after Run has started")
	}
	if r.nextHigh > r.nextLow {
		alert.Fatal("reactor: handle table exhausted")
	}

	var h Handle
	switch priority {
	case High:
		h = r.nextHigh
		r.nextHigh++
	case Low:
		h = r.nextLow
		r.nextLow--
	}

	r.records[h] = handlerRecord{callback: callback, inUse: true}
	return h
}

// Notify atomically sets h's pending bit and stores arg as its most recent
// argument. A second notification before dispatch overwrites the stored
// argument; no queue of arguments is kept. Safe to call from any context,
// including an ISR.
func (r *Reactor) Notify(h Handle, arg uint32) {
	if h == NullHandle {
		return
	}
	r.withLock(func() {
		r.records[h].lastArgument = arg
		r.pending.Append(h)
	})
	r.signalWake()
}

// NotifyFromISR is the payload-free form of Notify: it sets the bit and
// resets the stored argument to zero, so the handler observes a null (zero)
// argument. Use this from an ISR path that has no payload to deliver.
func (r *Reactor) NotifyFromISR(h Handle) {
	if h == NullHandle {
		return
	}
	r.withLock(func() {
		r.records[h].lastArgument = 0
		r.pending.Append(h)
	})
	r.signalWake()
}

func (r *Reactor) signalWake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Invoke synchronously calls h's handler from the current context,
// bypassing the reactor's pending-bit bookkeeping entirely. Forbidden from
// ISR context. Its caller in this module is modbus.MasterSM, which runs the
// popped requestor's fill callback right away through it.
func (r *Reactor) Invoke(h Handle, arg uint32) {
	if h == NullHandle {
		return
	}
	r.mu.Lock()
	cb := r.records[h].callback
	r.mu.Unlock()
	if cb != nil {
		cb(arg)
	}
}

// Clear removes the given bits from the PendingSet under the same critical
// section Notify uses. Used by hardware-timer-like collaborators to purge
// stale pending invocations across a stop/start cycle.
func (r *Reactor) Clear(mask Mask) {
	r.withLock(func() {
		r.pending &^= mask
	})
}

// Yield voluntarily returns control to the dispatch loop from inside a
// handler, re-enqueuing the calling handle with a (possibly updated)
// argument. It is the only mechanism a handler has to slice long-running
// work: the next dispatch pass may service higher-priority handles first.
func (r *Reactor) Yield(arg uint32) {
	r.mu.Lock()
	h := r.current
	r.mu.Unlock()
	r.Notify(h, arg)
}

// Run is the reactor's main loop. It never returns except when ctx is
// canceled, which on a hosted target models pulling power on the device.
// Each pass: if the PendingSet is empty, invoke the idle hook and sleep
// until woken by a notification or ctx cancellation; otherwise pop the
// lowest-index pending bit, invoke its handler with its last argument, kick
// the watchdog, and repeat.
func (r *Reactor) Run(ctx context.Context) {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	for {
		r.mu.Lock()
		if r.pending.IsEmpty() {
			r.mu.Unlock()
			if r.idleHook != nil {
				r.idleHook()
			}
			select {
			case <-ctx.Done():
				return
			case <-r.wake:
			}
			continue
		}

		h := r.pending.Pop()
		rec := r.records[h]
		r.current = h
		r.mu.Unlock()

		if rec.callback != nil {
			rec.callback(rec.lastArgument)
		}

		if r.watchdogKick != nil {
			r.watchdogKick()
		}
	}
}
