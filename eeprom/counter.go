package eeprom

import (
	"encoding/binary"
	"math/bits"

	"github.com/adarwoo/asx-go/alert"
	"github.com/adarwoo/asx-go/drivers"
)

const (
	bankSize = 16
	numBanks = 4
)

// opFunc adapts a plain closure to drivers.Operation.
type opFunc func()

func (f opFunc) Do() { f() }

// Counter is the wear-leveled counter from spec.md §6: four 16-byte banks
// of {u32 counter, 8 bytes bit-unary, u32 ^counter}, laid out contiguously
// starting at a page offset. Each Increment clears one bit of the active
// bank's bit-unary field; once all 64 bits are cleared, the next bank
// (wrapping modulo four) is written with counter+1 and a bit-unary field
// that has only its lowest bit cleared, so the rotating Increment counts
// for one. LoadFromPage picks, at boot, the bank with the largest
// valid counter (valid meaning counter == ^storedNotCounter).
type Counter struct {
	q      drivers.EEPROMQueue
	page   Page
	base   int
	active int
	counter uint32
	bits    uint64
}

// NewCounter constructs a Counter writing through q and persisting to page
// starting at baseOffset (4*bankSize contiguous bytes). Call LoadFromPage
// once at boot before the first Increment.
func NewCounter(q drivers.EEPROMQueue, page Page, baseOffset int) *Counter {
	return &Counter{q: q, page: page, base: baseOffset}
}

func (c *Counter) bankOffset(i int) int { return c.base + i*bankSize }

func (c *Counter) readBank(i int) (counter uint32, bitUnary uint64, valid bool) {
	buf := make([]byte, bankSize)
	c.page.ReadAt(c.bankOffset(i), buf)
	counter = binary.BigEndian.Uint32(buf[0:4])
	bitUnary = binary.BigEndian.Uint64(buf[4:12])
	notCounter := binary.BigEndian.Uint32(buf[12:16])
	valid = counter == ^notCounter
	return
}

func (c *Counter) writeBank(i int, counter uint32, bitUnary uint64) {
	buf := make([]byte, bankSize)
	binary.BigEndian.PutUint32(buf[0:4], counter)
	binary.BigEndian.PutUint64(buf[4:12], bitUnary)
	binary.BigEndian.PutUint32(buf[12:16], ^counter)
	c.page.WriteAt(c.bankOffset(i), buf)
}

// LoadFromPage scans all four banks and selects the one with the largest
// valid counter, setting Count accordingly. If no bank is valid (blank or
// corrupted EEPROM), it reports a recoverable alert and reinitializes bank
// zero to counter 0 with every bit-unary bit set.
func (c *Counter) LoadFromPage() {
	bestBank := -1
	var bestCounter uint32
	var bestBits uint64

	for i := 0; i < numBanks; i++ {
		counter, bitUnary, valid := c.readBank(i)
		if !valid {
			continue
		}
		if bestBank == -1 || counter > bestCounter {
			bestBank, bestCounter, bestBits = i, counter, bitUnary
		}
	}

	if bestBank == -1 {
		alert.Recoverable(false, "eeprom: no valid counter bank found, reinitializing")
		c.active, c.counter, c.bits = 0, 0, ^uint64(0)
		c.q.Enqueue(opFunc(func() { c.writeBank(0, 0, ^uint64(0)) }))
		return
	}

	c.active, c.counter, c.bits = bestBank, bestCounter, bestBits
}

// Count returns the counter's current logical value: the active bank's
// counter times 64 (the bits per bank) plus the number of cleared bits in
// its bit-unary field so far.
func (c *Counter) Count() uint64 {
	cleared := 64 - bits.OnesCount64(c.bits)
	return uint64(c.counter)*64 + uint64(cleared)
}

// Increment enqueues the wear-leveled write for the next count: clearing
// one more bit-unary bit in the active bank, or rotating to the next bank
// with counter+1 once the active bank's 64 bits are exhausted. The write
// itself runs as a queued EEPROMQueue Operation, never synchronously here.
func (c *Counter) Increment() {
	c.q.Enqueue(opFunc(func() {
		if c.bits != 0 {
			lowest := c.bits & (-c.bits)
			c.bits &^= lowest
			c.writeBank(c.active, c.counter, c.bits)
			return
		}
		// Rotating banks is itself the increment that crosses the 64-count
		// boundary: the fresh bank starts all-set, then immediately has
		// its first bit cleared so this call counts for one, not zero.
		c.active = (c.active + 1) % numBanks
		c.counter++
		fresh := ^uint64(0)
		c.bits = fresh &^ (fresh & (-fresh))
		c.writeBank(c.active, c.counter, c.bits)
	}))
}
