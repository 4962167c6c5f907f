// Package drivers defines the narrow contracts the reactor core requires
// from its external collaborators: UART, hardware compare/overflow timer,
// EEPROM operation queue, GPIO, and I2C. The core never reaches past these
// interfaces into register-level detail; spec.md §6 fixes their shape, not
// their implementation.
//
// GPIO and I2C are expressed directly in terms of periph.io's connection
// types (periph.io/x/periph/conn/gpio, .../i2c) rather than asx-go-specific
// interfaces, so any periph.io-compatible board support package can back
// this runtime without an adapter shim.
package drivers

import (
	"fmt"

	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/i2c"
)

// UART is the byte-level transmit/receive surface the Modbus arbiter and
// the tracing facility depend on. Half-duplex/RS-485 echo suppression is
// realized by the caller disabling RX before Send and re-enabling it after
// the driver notifies the OnSendComplete handle.
type UART interface {
	// Send transmits data without blocking; the driver notifies the
	// OnSendComplete handle once the last byte has left the shift
	// register.
	Send(data []byte)
	EnableRX()
	DisableRX()
	// OnCharacterReceived registers h to be notified (argument: the
	// received byte) for every received character.
	OnCharacterReceived(h reactor.Handle)
	// OnSendComplete registers h to be notified once a Send finishes.
	OnSendComplete(h reactor.Handle)
	// ByteDuration returns multiplier byte-times as a tick count, at the
	// UART's configured baud rate.
	ByteDuration(multiplier float64) timer.Tick
}

// CompareTimer is a three-channel hardware compare/overflow timer (a
// TCA-like peripheral). Start must, in this exact order: stop the timer,
// clear its pending compare/overflow interrupt flags, clear the reactor's
// pending bits for every handle registered via ReactOnCompare/
// ReactOnOverflow (purging stale pending invocations left over from before
// the restart), reset the counter to zero, then re-enable. This ordering is
// a non-trivial correctness requirement: omitting the reactor-side Clear
// lets a stale compare/overflow notification from the previous run fire
// immediately after the restart.
type CompareTimer interface {
	SetCompare(c0, c1, c2 timer.Tick)
	// SetOverflow sets the counter's period (TOP): the point at which it
	// wraps and fires the overflow channel, independent of the three
	// compare channels. The Modbus arbiter sets this to t40.
	SetOverflow(period timer.Tick)
	Start()
	Stop()
	ReactOnCompare(h0, h1, h2 reactor.Handle)
	ReactOnOverflow(h reactor.Handle)
}

// Operation is a polymorphic EEPROM operation queued by EEPROMQueue. Do is
// the "do_operation" virtual hook from spec.md §6.
type Operation interface {
	Do()
}

// EEPROMQueue is a minimal FIFO of Operations. The eeprom-ready ISR
// notifies the reactor handle registered via ReactOnReady, which pops the
// next operation and invokes it.
type EEPROMQueue interface {
	Enqueue(op Operation)
	ReactOnReady(h reactor.Handle)
}

// GPIO is the pin-level contract used for output-only lines such as the
// blinky scenario's LED pin, expressed directly as periph.io's
// gpio.PinOut so any periph.io board support package satisfies it.
type GPIO = gpio.PinOut

// I2C is the bus-level contract, expressed directly as periph.io's
// i2c.Bus.
type I2C = i2c.Bus

// Watchdog models the hardware watchdog the reactor's dispatch loop kicks
// after every handler invocation (spec.md §4.B), and that alert.Fatal
// relies on to eventually reset the device once it halts.
type Watchdog interface {
	Kick()
	// DisableForDebug disables the watchdog so a debug session can halt
	// at a Fatal alert without the watchdog resetting the device
	// mid-inspection. asx.Runtime.SetWatchdog installs it as alert.Fatal's
	// hook, so every Fatal alert calls it, in every build.
	DisableForDebug()
}

// Parity is one of the UARTConfig-recognized parity modes.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// UARTConfig enumerates the reactor-backed UART configuration options from
// spec.md §6.
type UARTConfig struct {
	Baud uint32
	// Width is the data width in bits, 5 through 8.
	Width int
	Parity Parity
	// Stop is the stop-bit count, 1 or 2.
	Stop int
	// RS485 drives the RS-485 direction line automatically around Send.
	RS485 bool
	// OneWire mutes the local echo on a shared TX/RX line.
	OneWire bool
	// MapToAltPosition selects the alternate pinmux position.
	MapToAltPosition bool
	// DisableRXInitially leaves RX disabled until EnableRX is called.
	DisableRXInitially bool
	// DisableTXInitially leaves TX disabled until the driver is
	// explicitly asked to transmit.
	DisableTXInitially bool
}

// Validate reports a construction-time configuration error. Unlike the
// core's own operations (which never return errors; see spec.md §7), this
// is a caller-context check performed once before a UART driver is built,
// so a Go error return is the idiomatic boundary here.
func (c UARTConfig) Validate() error {
	if c.Baud == 0 {
		return fmt.Errorf("drivers: baud must be non-zero")
	}
	if c.Width < 5 || c.Width > 8 {
		return fmt.Errorf("drivers: width must be 5-8 data bits, got %d", c.Width)
	}
	if c.Stop != 1 && c.Stop != 2 {
		return fmt.Errorf("drivers: stop must be 1 or 2, got %d", c.Stop)
	}
	if c.Parity != ParityNone && c.Parity != ParityOdd && c.Parity != ParityEven {
		return fmt.Errorf("drivers: invalid parity %d", c.Parity)
	}
	if c.RS485 && c.OneWire {
		return fmt.Errorf("drivers: rs485 and onewire are mutually exclusive")
	}
	return nil
}
