//go:build tamago

package tamagohw

import (
	"sync"

	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
	"github.com/usbarmory/tamago/soc/nxp/uart"
)

// UART adapts a TamaGo NXP UART controller to drivers.UART. TamaGo exposes
// received characters as a polled FIFO rather than a per-character
// interrupt callback, so Poll must be wired as the program's periodic
// HardwareTick handler (or the reactor's idle hook) for RX to make
// progress; Send and the resulting OnSendComplete notification need no
// polling, since TamaGo's Write is itself synchronous.
type UART struct {
	ctrl *uart.UART
	r    *reactor.Reactor

	mu        sync.Mutex
	onChar    reactor.Handle
	onSent    reactor.Handle
	rxEnabled bool
}

// New wires ctrl (e.g. uart.UART2) to r at the given baud rate.
func New(r *reactor.Reactor, ctrl *uart.UART, baud uint32) *UART {
	ctrl.Init()
	ctrl.SetSpeed(baud)

	return &UART{
		ctrl:      ctrl,
		r:         r,
		onChar:    reactor.NullHandle,
		onSent:    reactor.NullHandle,
		rxEnabled: true,
	}
}

func (u *UART) Send(data []byte) {
	u.ctrl.Write(data)
	if u.onSent != reactor.NullHandle {
		u.r.NotifyFromISR(u.onSent)
	}
}

func (u *UART) EnableRX() {
	u.mu.Lock()
	u.rxEnabled = true
	u.mu.Unlock()
}

func (u *UART) DisableRX() {
	u.mu.Lock()
	u.rxEnabled = false
	u.mu.Unlock()
}

func (u *UART) OnCharacterReceived(h reactor.Handle) { u.onChar = h }
func (u *UART) OnSendComplete(h reactor.Handle)      { u.onSent = h }

// ByteDuration converts multiplier byte-times into ticks, assuming one
// hardware tick per bit time and the common 8-N-1 RTU framing (start bit,
// 8 data bits, stop bit). drivers/simhw differs: it derives byte times in
// 1 ms ticks from the configured baud rate and framing, so Modbus timing
// tick counts differ between the two backends.
func (u *UART) ByteDuration(multiplier float64) timer.Tick {
	const bitsPerByte = 10.0
	return timer.Tick(multiplier * bitsPerByte)
}

// Poll drains the controller's receive FIFO one byte at a time, notifying
// OnCharacterReceived's handle with each byte as the Notify argument.
func (u *UART) Poll() {
	u.mu.Lock()
	enabled := u.rxEnabled
	u.mu.Unlock()
	if !enabled || u.onChar == reactor.NullHandle {
		return
	}

	for {
		b, ok := u.ctrl.Read()
		if !ok {
			return
		}
		u.r.Notify(u.onChar, uint32(b))
	}
}
