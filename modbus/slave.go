package modbus

import (
	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
)

type slaveState int

const (
	ssCold slaveState = iota
	ssInitial
	ssIdle
	ssReception
	ssControlAndWaiting
	ssReply
	ssEmission
)

func (s slaveState) String() string {
	switch s {
	case ssCold:
		return "cold"
	case ssInitial:
		return "initial"
	case ssIdle:
		return "idle"
	case ssReception:
		return "reception"
	case ssControlAndWaiting:
		return "control-and-waiting"
	case ssReply:
		return "reply"
	case ssEmission:
		return "emission"
	default:
		return "unknown"
	}
}

// SlaveSM is the Modbus RTU slave frame arbiter: it accumulates a request
// off the wire, validates it once T1.5/T3.5 close the frame, serves it
// against a RegisterBank, and (unless the request was a broadcast) emits
// the reply.
//
// This is the "sequenced" reading of the slave table (an Open Question the
// distilled spec left unresolved): request validation (control_and_waiting)
// and reply preparation (reply) are two distinct states with a reactor hop
// between reply preparation and the actual emission, rather than the reply
// bytes being anticipated speculatively while still validating the
// request. It costs one extra reactor dispatch pass per transaction in
// exchange for never building a reply for a frame that turns out not to be
// addressed to this device. reply only advances to emission once hT40
// fires, the same t40_timeout gate MasterSM's prevent_race state uses.
// T40 is measured from the same last-character restart as T35, so this
// guarantees t40 of silence before the first reply byte leaves.
type SlaveSM struct {
	r        *reactor.Reactor
	w        *timer.Wheel
	uart     drivers.UART
	ct       drivers.CompareTimer
	datagram Datagram
	timing   Timing
	bank     RegisterBank
	address  byte

	state   slaveState
	onError func(reason string)

	hCanStart     reactor.Handle
	hCharReceived reactor.Handle
	hT15          reactor.Handle
	hT35          reactor.Handle
	hT40          reactor.Handle
	hFrameSent    reactor.Handle
	hEmit         reactor.Handle
}

// NewSlaveSM constructs a SlaveSM listening on address (1-247; 0 is the
// broadcast address every slave also answers to, but never replies on).
// Construct before the reactor's Run loop starts.
func NewSlaveSM(r *reactor.Reactor, w *timer.Wheel, uart drivers.UART, ct drivers.CompareTimer, dg Datagram, timing Timing, bank RegisterBank, address byte) *SlaveSM {
	s := &SlaveSM{
		r:        r,
		w:        w,
		uart:     uart,
		ct:       ct,
		datagram: dg,
		timing:   timing,
		bank:     bank,
		address:  address,
	}

	s.hCanStart = r.Register(s.onCanStart, reactor.High)
	s.hCharReceived = r.Register(s.onCharReceived, reactor.High)
	s.hT15 = r.Register(s.onT15Timeout, reactor.High)
	s.hT35 = r.Register(s.onT35Timeout, reactor.High)
	s.hT40 = r.Register(s.onT40Timeout, reactor.High)
	s.hFrameSent = r.Register(s.onFrameSent, reactor.High)
	s.hEmit = r.Register(s.onEmit, reactor.High)

	uart.OnCharacterReceived(s.hCharReceived)
	uart.OnSendComplete(s.hFrameSent)

	ct.SetCompare(timing.T15, timing.T35, 0)
	ct.SetOverflow(timing.T40)
	ct.ReactOnCompare(s.hT15, s.hT35, reactor.NullHandle)
	ct.ReactOnOverflow(s.hT40)

	dg.SetAddressFilter(address)

	return s
}

// SetErrorSink installs the callback invoked for a bad-CRC request or a
// framing error (a character received during the inter-frame gap).
func (s *SlaveSM) SetErrorSink(f func(reason string)) { s.onError = f }

// Start transitions the slave out of cold start.
func (s *SlaveSM) Start() {
	s.r.Notify(s.hCanStart, 0)
}

// State returns the slave's current state, for tests and diagnostics.
func (s *SlaveSM) State() string { return s.state.String() }

func (s *SlaveSM) goInitial() {
	s.state = ssInitial
	s.ct.Start()
}

func (s *SlaveSM) goIdle() {
	s.state = ssIdle
}

func (s *SlaveSM) onCanStart(uint32) {
	if s.state == ssCold {
		s.goInitial()
	}
}

func (s *SlaveSM) onCharReceived(arg uint32) {
	b := byte(arg)
	switch s.state {
	case ssInitial:
		s.goInitial()
	case ssIdle:
		s.datagram.Reset()
		s.datagram.ProcessChar(b)
		s.ct.Start()
		s.state = ssReception
	case ssReception:
		s.datagram.ProcessChar(b)
		s.ct.Start()
	case ssControlAndWaiting:
		s.raiseError("frame error: character received during inter-frame gap")
		s.goIdle()
	}
}

func (s *SlaveSM) onT15Timeout(uint32) {
	if s.state == ssReception {
		s.state = ssControlAndWaiting
	}
}

func (s *SlaveSM) onT35Timeout(uint32) {
	switch s.state {
	case ssInitial:
		s.goIdle()
	case ssControlAndWaiting:
		s.state = ssReply
		s.prepareReplyOrSkip()
	}
}

func (s *SlaveSM) onT40Timeout(uint32) {
	if s.state == ssReply {
		s.state = ssEmission
		s.r.Notify(s.hEmit, 0)
	}
}

func (s *SlaveSM) onFrameSent(uint32) {
	if s.state == ssEmission {
		s.uart.EnableRX()
		s.goIdle()
	}
}

func (s *SlaveSM) onEmit(uint32) {
	if s.state == ssEmission {
		s.uart.DisableRX()
		s.uart.Send(s.datagram.ReadyReply())
	}
}

// prepareReplyOrSkip is the "reply" state's entry action: validate the
// accumulated request and serve it against the register bank. A frame this
// device must answer stays in ssReply, built and waiting, until hT40 fires
// (guaranteeing t40 of silence since the last received character before
// a single byte is transmitted); anything that will never get a reply (not
// addressed to this device, a bad CRC, or a broadcast request) returns
// directly to idle instead of waiting on a timeout nothing depends on.
func (s *SlaveSM) prepareReplyOrSkip() {
	status := s.datagram.ProcessReply()
	switch status {
	case NotForMe:
		s.goIdle()
		return
	case BadCRC:
		s.raiseError("bad CRC in request")
		s.goIdle()
		return
	case GoodFrame:
	default:
		s.goIdle()
		return
	}

	broadcast := s.datagram.Address() == 0
	buf := s.datagram.Buffer()
	function := s.datagram.Function()

	switch function {
	case FuncReadHoldingRegisters:
		startAddr, quantity, ok := parseRequestReadHoldingRegisters(buf)
		if !ok {
			s.raiseError("malformed read-holding-registers request")
			s.goIdle()
			return
		}
		if broadcast {
			// Reads are meaningless as a broadcast; silently ignore
			// rather than reply to nobody.
			s.goIdle()
			return
		}
		values, ok := s.bank.ReadHoldingRegisters(startAddr, quantity)
		if !ok {
			buildExceptionReply(s.datagram, s.address, function, ExcIllegalDataAddress)
		} else {
			buildReadHoldingRegistersReply(s.datagram, s.address, values)
		}
	case FuncWriteSingleRegister:
		addr, value, ok := parseRequestWriteSingleRegister(buf)
		if !ok {
			s.raiseError("malformed write-single-register request")
			s.goIdle()
			return
		}
		wrote := s.bank.WriteSingleRegister(addr, value)
		if broadcast {
			// The write still happens; no reply is ever sent to a
			// broadcast request.
			s.goIdle()
			return
		}
		if !wrote {
			buildExceptionReply(s.datagram, s.address, function, ExcIllegalDataAddress)
		} else {
			buildWriteSingleRegisterReply(s.datagram, s.address, addr, value)
		}
	default:
		if broadcast {
			s.goIdle()
			return
		}
		buildExceptionReply(s.datagram, s.address, function, ExcIllegalFunction)
	}

	// A reply is built and waiting; onT40Timeout advances ssReply ->
	// ssEmission once the inter-frame silence requirement is met.
}

func (s *SlaveSM) raiseError(reason string) {
	if s.onError != nil {
		s.onError(reason)
	}
}
