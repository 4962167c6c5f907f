package simhw

import (
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/reactor"
)

// EEPROMQueue is a simulated EEPROM operation FIFO satisfying
// drivers.EEPROMQueue. Every enqueued Operation completes "instantly" (in
// the next dispatch pass) rather than modeling real EEPROM write latency;
// the ordering and pop-one-per-ready-notification contract is what the
// core depends on, not the latency.
type EEPROMQueue struct {
	r     *reactor.Reactor
	ready reactor.Handle
	ops   []drivers.Operation
}

// NewEEPROMQueue constructs an empty queue with no ready handle; bind one
// with ReactOnReady, already registered on r.
func NewEEPROMQueue(r *reactor.Reactor) *EEPROMQueue {
	q := &EEPROMQueue{r: r, ready: reactor.NullHandle}
	return q
}

func (q *EEPROMQueue) ReactOnReady(h reactor.Handle) { q.ready = h }

// Enqueue appends op and, if it is the only op in the queue, immediately
// notifies the ready handle to pop and run it on the next dispatch pass.
func (q *EEPROMQueue) Enqueue(op drivers.Operation) {
	q.ops = append(q.ops, op)
	if len(q.ops) == 1 && q.ready != reactor.NullHandle {
		q.r.Notify(q.ready, 0)
	}
}

// Pop removes and returns the next queued operation, or nil if empty. The
// reactor handler bound to ready calls this.
func (q *EEPROMQueue) Pop() drivers.Operation {
	if len(q.ops) == 0 {
		return nil
	}
	op := q.ops[0]
	q.ops = q.ops[1:]
	return op
}

// Len reports the number of operations still queued.
func (q *EEPROMQueue) Len() int { return len(q.ops) }

// Drain runs every queued operation to completion, popping and invoking
// them one at a time exactly as the ready-handle handler would, looping
// until the queue is empty. Test and cmd/ helper for driving
// the queue without wiring a full reactor handler.
func (q *EEPROMQueue) Drain() {
	for {
		op := q.Pop()
		if op == nil {
			return
		}
		op.Do()
	}
}
