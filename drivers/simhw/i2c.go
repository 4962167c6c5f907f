package simhw

import (
	"fmt"

	"periph.io/x/periph/conn/physic"
)

// I2C is a simulated bus satisfying drivers.I2C (periph.io's i2c.Bus). It
// is scripted: tests register a canned response (or error) per address, and
// Tx plays it back, recording every transaction for assertions.
type I2C struct {
	speed physic.Frequency
	resp  map[uint16][]byte
	errs  map[uint16]error
	log   []I2CTransaction
}

// I2CTransaction records one Tx call for test assertions.
type I2CTransaction struct {
	Addr uint16
	W    []byte
	R    []byte
}

// NewI2C constructs an empty simulated I2C bus.
func NewI2C() *I2C {
	return &I2C{resp: make(map[uint16][]byte), errs: make(map[uint16]error)}
}

func (b *I2C) String() string { return "simhw.I2C" }
func (b *I2C) Halt() error    { return nil }

func (b *I2C) SetSpeed(f physic.Frequency) error {
	b.speed = f
	return nil
}

// ScriptResponse arranges for the next Tx addressed to addr to copy data
// into the caller's read buffer.
func (b *I2C) ScriptResponse(addr uint16, data []byte) {
	b.resp[addr] = data
}

// ScriptError arranges for the next Tx addressed to addr to fail with err.
func (b *I2C) ScriptError(addr uint16, err error) {
	b.errs[addr] = err
}

// Tx performs a simulated I2C transaction: it copies the scripted response
// (if any) for addr into r and records the transaction.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if err, ok := b.errs[addr]; ok {
		delete(b.errs, addr)
		return err
	}
	resp, ok := b.resp[addr]
	if ok {
		n := copy(r, resp)
		if n < len(r) {
			return fmt.Errorf("simhw: I2C scripted response for %#x shorter than read buffer", addr)
		}
		delete(b.resp, addr)
	}
	b.log = append(b.log, I2CTransaction{Addr: addr, W: append([]byte(nil), w...), R: append([]byte(nil), r...)})
	return nil
}

// Log returns every transaction performed so far.
func (b *I2C) Log() []I2CTransaction { return b.log }
