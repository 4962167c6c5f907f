// Package reactor implements a priority-ordered, bit-pending dispatcher with
// sleep-on-idle semantics: the cooperative scheduling core of the asx-go
// runtime. Interrupt-driven events are posted into the reactor via Notify
// and NotifyFromISR, then drained by Run on the main execution context, so
// handler bodies never race with the ISRs that woke them.
package reactor

import "math/bits"

// MaxHandles is N from the data model: the handle space is a fixed-width
// bitset, so it can never exceed the width of a machine word used as a
// bitset (32 here, matching the smallest practical hardware target).
const MaxHandles = 32

// Handle is an opaque, small integer identifying a registered callback.
// Handles are stable from registration until process end; they are never
// recycled.
type Handle uint8

// NullHandle denotes "no handle".
const NullHandle Handle = 0xFF

// Priority classes. High-priority handles are packed from the low end of
// the handle space, low-priority handles from the high end, so that
// "highest priority pending" reduces to "lowest set bit index" across the
// whole table.
type Priority int

const (
	High Priority = iota
	Low
)

// Mask is a value-typed bitset of handles, one bit per handle index. It is
// used both as the reactor's process-wide PendingSet and, copied by value,
// as the pending-request arbiter's multi-requestor queue.
type Mask uint32

// MaskOf returns a mask with only h's bit set, or the empty mask if h is
// NullHandle.
func MaskOf(h Handle) Mask {
	if h == NullHandle {
		return 0
	}
	return Mask(1) << uint(h)
}

// Append unions h's bit into m.
func (m *Mask) Append(h Handle) {
	*m |= MaskOf(h)
}

// Union returns the bitwise union of a and b.
func Union(a, b Mask) Mask {
	return a | b
}

// IsEmpty reports whether no bit is set.
func (m Mask) IsEmpty() bool {
	return m == 0
}

// Pop returns the handle with the smallest bit index set in m (the
// highest-priority pending handle) and clears that bit. It returns
// NullHandle when m is empty.
//
// Packing high-priority handles at low bit indices makes "highest priority
// first" equivalent to counting trailing zeros, a single instruction on
// most targets; bits.TrailingZeros32 is the Go stdlib's portable expression
// of that instruction.
func (m *Mask) Pop() Handle {
	if *m == 0 {
		return NullHandle
	}
	i := bits.TrailingZeros32(uint32(*m))
	*m &^= Mask(1) << uint(i)
	return Handle(i)
}
