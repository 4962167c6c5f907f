// Package pending implements the pending-request arbiter: the two-operation
// idiom a shared peripheral that cannot satisfy concurrent requesters uses
// to queue requestors and serve them strictly in priority order once the
// resource becomes idle.
package pending

import "github.com/adarwoo/asx-go/reactor"

// Status is the completion status a driver reports through OnComplete.
type Status int

const (
	// OK means the operation completed successfully.
	OK Status = iota
	// ErrArbitrationLost means a multi-master bus lost arbitration.
	ErrArbitrationLost
	// ErrBusError means the underlying bus reported a protocol error.
	ErrBusError
	// ErrNACK means the addressed peer did not acknowledge.
	ErrNACK
	// ErrTimeout means the operation did not complete in time.
	ErrTimeout
)

// Arbiter serializes access to a single shared resource across any number
// of requestor handles. At most one operation is in flight at a time;
// requestors are served in priority order (lowest handle index first),
// because Pop always extracts the smallest index. Within a class this means
// High requestors in registration order and Low requestors most recently
// registered first, as Low handles are allocated downward.
type Arbiter struct {
	r       *reactor.Reactor
	mask    reactor.Mask
	busy    bool
	current reactor.Handle

	onComplete map[reactor.Handle]func(Status)
}

// New constructs an Arbiter guarding a single shared resource reachable
// through r.
func New(r *reactor.Reactor) *Arbiter {
	return &Arbiter{
		r:          r,
		current:    reactor.NullHandle,
		onComplete: make(map[reactor.Handle]func(Status)),
	}
}

// SetCompletionCallback registers the optional callback OnComplete invokes
// for h once its operation finishes. Passing a nil callback clears it.
func (a *Arbiter) SetCompletionCallback(h reactor.Handle, cb func(Status)) {
	if cb == nil {
		delete(a.onComplete, h)
		return
	}
	a.onComplete[h] = cb
}

// Request appends h's bit to the pending mask and runs checkPending.
// Re-requesting while h is already pending is idempotent, since Mask
// membership is union semantics.
func (a *Arbiter) Request(h reactor.Handle) {
	a.mask.Append(h)
	a.checkPending()
}

// checkPending notifies the next highest-priority requestor if and only if
// the resource is currently idle. The notified handle is expected to
// populate the shared buffers and initiate the operation, then call
// OnComplete when it finishes.
func (a *Arbiter) checkPending() {
	if a.busy {
		return
	}
	h := a.mask.Pop()
	if h == reactor.NullHandle {
		return
	}
	a.busy = true
	a.current = h
	a.r.Notify(h, 0)
}

// OnComplete is called by the driver when the in-flight operation finishes.
// It delivers status to the completed requestor's completion callback, if
// any, then re-runs checkPending so the next queued requestor (if any) is
// served.
func (a *Arbiter) OnComplete(status Status) {
	h := a.current
	a.busy = false
	a.current = reactor.NullHandle

	if cb := a.onComplete[h]; cb != nil {
		cb(status)
	}
	a.checkPending()
}

// Busy reports whether an operation is currently in flight.
func (a *Arbiter) Busy() bool { return a.busy }
