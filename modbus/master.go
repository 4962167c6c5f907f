package modbus

import (
	"fmt"

	"github.com/adarwoo/asx-go/drivers"
	"github.com/adarwoo/asx-go/reactor"
	"github.com/adarwoo/asx-go/timer"
)

type masterState int

const (
	msCold masterState = iota
	msInitial
	msIdle
	msSending
	msWaitingForReply
	msReception
	msControlAndWaiting
	msPreventRace
)

func (s masterState) String() string {
	switch s {
	case msCold:
		return "cold"
	case msInitial:
		return "initial"
	case msIdle:
		return "idle"
	case msSending:
		return "sending"
	case msWaitingForReply:
		return "waiting-for-reply"
	case msReception:
		return "reception"
	case msControlAndWaiting:
		return "control-and-waiting"
	case msPreventRace:
		return "prevent-race"
	default:
		return "unknown"
	}
}

// MasterSM is the Modbus RTU master frame arbiter. Any number of
// requestors register via RegisterRequestor and submit work with
// SubmitRequest; requests are served strictly in priority order (lowest
// handle index first), one at a time, over a shared UART.
//
// State machine per spec.md §5's master table: cold -> initial (bus-idle
// measurement) -> idle (pop next request) -> sending -> waiting_for_reply
// -> reception -> control_and_waiting -> prevent_race -> idle. T1.5
// separates reception from control_and_waiting, T3.5 validates the
// received frame, T4.0 (the overflow channel) enforces the minimum
// inter-frame silence before the next request may be sent.
type MasterSM struct {
	r        *reactor.Reactor
	w        *timer.Wheel
	uart     drivers.UART
	ct       drivers.CompareTimer
	datagram Datagram
	timing   Timing

	state            masterState
	pendingRequests  reactor.Mask
	currentRequestor reactor.Handle
	onReply          map[reactor.Handle]func(Status, Datagram)
	onError          func(requestor reactor.Handle, reason string)

	replyTimeout timer.Instance

	hCanStart      reactor.Handle
	hCharReceived  reactor.Handle
	hT15           reactor.Handle
	hT35           reactor.Handle
	hT40           reactor.Handle
	hFrameSent     reactor.Handle
	hCheckPendings reactor.Handle
	hRTS           reactor.Handle
	hReplyTimeout  reactor.Handle
}

// NewMasterSM constructs a MasterSM bound to the given collaborators. The
// UART's byte duration and the given Timing fix T1.5/T3.5/T4.0 and the
// reply timeout; construct this before the reactor's Run loop starts, since
// every handle it needs is registered here.
func NewMasterSM(r *reactor.Reactor, w *timer.Wheel, uart drivers.UART, ct drivers.CompareTimer, dg Datagram, timing Timing) *MasterSM {
	m := &MasterSM{
		r:                r,
		w:                w,
		uart:             uart,
		ct:               ct,
		datagram:         dg,
		timing:           timing,
		currentRequestor: reactor.NullHandle,
		onReply:          make(map[reactor.Handle]func(Status, Datagram)),
	}

	m.hCanStart = r.Register(m.onCanStart, reactor.High)
	m.hCharReceived = r.Register(m.onCharReceived, reactor.High)
	m.hT15 = r.Register(m.onT15Timeout, reactor.High)
	m.hT35 = r.Register(m.onT35Timeout, reactor.High)
	m.hT40 = r.Register(m.onT40Timeout, reactor.High)
	m.hFrameSent = r.Register(m.onFrameSent, reactor.High)
	m.hReplyTimeout = r.Register(m.onReplyTimeout, reactor.High)
	m.hRTS = r.Register(m.onRTS, reactor.High)
	m.hCheckPendings = r.Register(m.onCheckPendings, reactor.Low)

	uart.OnCharacterReceived(m.hCharReceived)
	uart.OnSendComplete(m.hFrameSent)

	ct.SetCompare(timing.T15, timing.T35, 0)
	ct.SetOverflow(timing.T40)
	ct.ReactOnCompare(m.hT15, m.hT35, reactor.NullHandle)
	ct.ReactOnOverflow(m.hT40)

	return m
}

// SetErrorSink installs the callback invoked when a request fails: a bad
// CRC, a reply from the wrong slave, or a reply timeout. reason is a
// human-readable diagnostic suitable for the tracing facility; requestor
// identifies which registered request this pertains to.
func (m *MasterSM) SetErrorSink(f func(requestor reactor.Handle, reason string)) {
	m.onError = f
}

// RegisterRequestor allocates a handle identifying one request source.
// fill is invoked synchronously (never from ISR context) to populate
// datagram with the outgoing request once this handle is popped as the
// next to run; onDone delivers the validated reply's Status (GoodFrame,
// BadCRC, or NotForMe) together with the datagram to parse it from. A
// reply timeout never reaches onDone at all, since there is no frame to
// report on; it is reported only through SetErrorSink, keyed by this
// handle.
func (m *MasterSM) RegisterRequestor(priority reactor.Priority, fill func(Datagram), onDone func(Status, Datagram)) reactor.Handle {
	h := m.r.Register(func(uint32) { fill(m.datagram) }, priority)
	m.onReply[h] = onDone
	return h
}

// SubmitRequest queues h (previously returned by RegisterRequestor) to be
// served. Queuing an already-pending handle is idempotent.
func (m *MasterSM) SubmitRequest(h reactor.Handle) {
	m.pendingRequests.Append(h)
	m.r.Notify(m.hCheckPendings, 0)
}

// Start transitions the master out of cold start, beginning the initial
// bus-idle measurement. Call once, any time before or after Run begins.
func (m *MasterSM) Start() {
	m.r.Notify(m.hCanStart, 0)
}

// State returns the master's current state, for tests and diagnostics.
func (m *MasterSM) State() string { return m.state.String() }

func (m *MasterSM) goInitial() {
	m.state = msInitial
	m.ct.Start()
}

func (m *MasterSM) goIdle() {
	m.state = msIdle
	m.popNextRequestAndPrepare()
}

func (m *MasterSM) goReception() {
	m.cancelReplyTimeout()
	m.ct.Start()
	m.state = msReception
}

// popNextRequestAndPrepare pops the highest-priority pending requestor and
// invokes it synchronously so it fills datagram on this call stack, then
// posts the internal "ready to send" event. The rts hop through the
// reactor (rather than sending inline here) keeps the heavier Send
// operation off the synchronous Invoke call stack, matching spec.md §5's
// explicit split between preparing a request and transmitting it.
func (m *MasterSM) popNextRequestAndPrepare() {
	h := m.pendingRequests.Pop()
	if h == reactor.NullHandle {
		return
	}
	m.currentRequestor = h
	m.datagram.Reset()
	m.r.Invoke(h, 0)
	m.datagram.SetAddressFilter(m.datagram.Address())
	m.r.Notify(m.hRTS, 0)
}

func (m *MasterSM) onCanStart(uint32) {
	if m.state == msCold {
		m.goInitial()
	}
}

func (m *MasterSM) onCharReceived(arg uint32) {
	b := byte(arg)
	switch m.state {
	case msInitial:
		m.goInitial()
	case msIdle:
		m.goInitial()
	case msWaitingForReply:
		m.datagram.ProcessChar(b)
		m.goReception()
	case msReception:
		m.datagram.ProcessChar(b)
		m.goReception()
	case msControlAndWaiting:
		m.raiseError("frame error: character received during inter-frame gap")
		m.goIdle()
	}
}

func (m *MasterSM) onT15Timeout(uint32) {
	if m.state == msReception {
		m.state = msControlAndWaiting
	}
}

func (m *MasterSM) onT35Timeout(uint32) {
	switch m.state {
	case msInitial:
		m.goIdle()
	case msControlAndWaiting:
		m.processReplyOrRaise()
		m.state = msPreventRace
	}
}

func (m *MasterSM) onT40Timeout(uint32) {
	if m.state == msPreventRace {
		m.goIdle()
	}
}

func (m *MasterSM) onCheckPendings(uint32) {
	if m.state == msIdle {
		m.popNextRequestAndPrepare()
	}
}

func (m *MasterSM) onRTS(uint32) {
	if m.state == msIdle {
		m.uart.DisableRX()
		m.uart.Send(m.datagram.ReadyRequest())
		m.state = msSending
	}
}

func (m *MasterSM) onFrameSent(uint32) {
	if m.state == msSending {
		m.armReplyTimeout()
		m.datagram.Reset()
		m.uart.EnableRX()
		m.state = msWaitingForReply
	}
}

func (m *MasterSM) onReplyTimeout(uint32) {
	if m.state == msWaitingForReply {
		m.raiseError("reply timeout")
		m.goIdle()
	}
}

func (m *MasterSM) armReplyTimeout() {
	m.replyTimeout = m.w.Arm(m.hReplyTimeout, m.w.Now()+m.timing.ReplyTimeout, 0, 0)
}

func (m *MasterSM) cancelReplyTimeout() {
	m.w.Cancel(m.replyTimeout)
}

func (m *MasterSM) processReplyOrRaise() {
	status := m.datagram.ProcessReply()
	switch status {
	case GoodFrame:
		m.deliverReply(GoodFrame)
	case BadCRC:
		m.raiseError("bad CRC in reply")
		m.deliverReply(BadCRC)
	case NotForMe:
		m.raiseError("reply from unexpected slave address")
		m.deliverReply(NotForMe)
	default:
		m.raiseError(fmt.Sprintf("unexpected reply status %v", status))
	}
}

func (m *MasterSM) deliverReply(status Status) {
	h := m.currentRequestor
	if cb := m.onReply[h]; cb != nil {
		cb(status, m.datagram)
	}
}

func (m *MasterSM) raiseError(reason string) {
	if m.onError != nil {
		m.onError(m.currentRequestor, reason)
	}
}
