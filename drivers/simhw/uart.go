package simhw

import (
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
)

// UART is a simulated byte-level serial port satisfying drivers.UART.
// Received bytes are injected by the test or by a peer UART wired via
// Loopback; there is no real shift register, so Send's "transmission" is
// modeled purely as a scheduled OnSendComplete after the configured number
// of byte-times.
type UART struct {
	r      *reactor.Reactor
	w      *timer.Wheel
	cfg    drivers.UARTConfig
	clock  *Clock
	peer   *UART // the other end of a simulated point-to-point link, if wired

	rxEnabled bool
	rxHandle  reactor.Handle
	txDone    reactor.Handle

	// byteArrival is registered once at construction time (registration
	// is fatal once the reactor loop has started) and is the target every
	// peer arms when scheduling a simulated byte's arrival; the byte
	// itself travels as the timer argument, so no handle is ever
	// allocated per Send call.
	byteArrival reactor.Handle

	lastSent []byte
}

// NewUART constructs a simulated UART. cfg must already have passed
// Validate. Construct every simulated UART before calling Reactor.Run.
func NewUART(r *reactor.Reactor, w *timer.Wheel, clock *Clock, cfg drivers.UARTConfig) *UART {
	u := &UART{
		r:         r,
		w:         w,
		cfg:       cfg,
		clock:     clock,
		rxEnabled: !cfg.DisableRXInitially,
		rxHandle:  reactor.NullHandle,
		txDone:    reactor.NullHandle,
	}
	u.byteArrival = r.Register(func(arg uint32) { u.deliver(byte(arg)) }, reactor.High)
	return u
}

// Loopback wires two simulated UARTs so that each one's Send deposits bytes
// into the other's receive path, one at a time, spaced by the sender's
// configured byte duration. This is how cmd/modbussim plays back a
// simulated slave reply.
func (u *UART) Loopback(peer *UART) {
	u.peer = peer
	peer.peer = u
}

func (u *UART) EnableRX()  { u.rxEnabled = true }
func (u *UART) DisableRX() { u.rxEnabled = false }

func (u *UART) OnCharacterReceived(h reactor.Handle) { u.rxHandle = h }
func (u *UART) OnSendComplete(h reactor.Handle)      { u.txDone = h }

// ByteDuration returns multiplier byte-times in ticks, at the UART's
// configured data format and baud rate.
func (u *UART) ByteDuration(multiplier float64) timer.Tick {
	bitsPerByte := 1 + float64(u.cfg.Width) + float64(u.cfg.Stop)
	if u.cfg.Parity != drivers.ParityNone {
		bitsPerByte++
	}
	// One tick is assumed to be 1ms; baud is bits/second.
	ticksPerByte := bitsPerByte / float64(u.cfg.Baud) * 1000.0
	ticks := ticksPerByte * multiplier
	if ticks < 1 {
		ticks = 1
	}
	return timer.Tick(ticks)
}

// Send "transmits" data: if a peer is wired via Loopback, each byte is
// delivered to the peer's receive path one byte-duration apart; either
// way, OnSendComplete fires after the last byte would have left the shift
// register.
func (u *UART) Send(data []byte) {
	u.lastSent = append([]byte(nil), data...)
	perByte := u.ByteDuration(1)

	if u.peer != nil {
		for i, b := range data {
			delay := perByte * timer.Tick(i+1)
			u.w.Arm(u.peer.byteArrival, u.clock.Now()+delay, 0, uint32(b))
		}
	}

	if u.txDone != reactor.NullHandle {
		total := perByte * timer.Tick(len(data))
		if total == 0 {
			total = 1
		}
		u.w.Arm(u.txDone, u.clock.Now()+total, 0, 0)
	}
}

// deliver is called (on the peer's side) when a simulated byte arrives.
func (u *UART) deliver(b byte) {
	if u.rxEnabled && u.rxHandle != reactor.NullHandle {
		u.r.Notify(u.rxHandle, uint32(b))
	}
}

// InjectByte delivers a byte directly to this UART's receive path,
// bypassing any wired peer; the usual way a test drives a frame byte by
// byte.
func (u *UART) InjectByte(b byte) {
	u.deliver(b)
}

// LastSent returns the payload of the most recent Send call, for test
// assertions (e.g. P9's "count transmitted bytes after a broadcast").
func (u *UART) LastSent() []byte { return u.lastSent }
