// Package modbus implements the Modbus RTU frame arbiter from spec.md §5: a
// master and a slave state machine sharing the same T1.5/T3.5/T4.0 timing
// rules, built on a drivers.UART, a drivers.CompareTimer, the reactor and
// timer wheel, and a Datagram that accumulates and validates the wire frame.
package modbus

import "github.com/adarwoo/asx-go/crc16"

// Status is the result of validating an accumulated frame, the
// "get_status" outcome from spec.md §5.
type Status int

const (
	// InProgress means no complete, CRC-checked frame is available yet.
	InProgress Status = iota
	// GoodFrame means the frame passed its CRC and, where filtering
	// applies, was addressed to this device (or was a broadcast).
	GoodFrame
	// NotForMe means the frame passed its CRC but is addressed to a
	// different slave.
	NotForMe
	// BadCRC means the accumulated bytes failed the CRC-16 check.
	BadCRC
)

// String names a Status for logging.
func (s Status) String() string {
	switch s {
	case InProgress:
		return "in-progress"
	case GoodFrame:
		return "good-frame"
	case NotForMe:
		return "not-for-me"
	case BadCRC:
		return "bad-crc"
	default:
		return "unknown"
	}
}

// MaxFrameSize bounds a single Modbus RTU frame (address + function + up to
// 252 bytes of PDU + 2-byte CRC), which is exactly the size of the buffer
// below.
const MaxFrameSize = 256

// Datagram is the capability a Modbus state machine needs from its frame
// buffer: accumulate bytes received off the wire, validate them once a
// silence has closed the frame, and prepare an outgoing buffer for
// transmission. Both MasterSM and SlaveSM depend on this interface rather
// than on *Frame directly, so a test can substitute a scripted stub.
type Datagram interface {
	// Reset discards any accumulated bytes and begins a fresh frame.
	Reset()
	// ProcessChar appends one byte received off the wire.
	ProcessChar(b byte)
	// ProcessReply validates the accumulated bytes against their trailing
	// CRC-16 and, if an address filter is set, the leading address byte.
	ProcessReply() Status
	// GetStatus reports InProgress while the buffer is empty, and otherwise
	// ProcessReply's result.
	GetStatus() Status
	// Buffer returns the bytes accumulated or prepared so far.
	Buffer() []byte
	// ReadyRequest finalizes an outgoing request by appending its CRC-16
	// and returns the wire-ready frame.
	ReadyRequest() []byte
	// ReadyReply is ReadyRequest's counterpart for a slave's response;
	// both finalize identically, the distinction is purely which side is
	// about to transmit.
	ReadyReply() []byte

	// BuildHeader resets the frame and writes its leading address and
	// function code byte.
	BuildHeader(address, function byte)
	// AppendByte appends one payload byte.
	AppendByte(b byte)
	// AppendUint16BE appends v big-endian, Modbus's register wire order.
	AppendUint16BE(v uint16)
	// Address returns the accumulated frame's leading address byte.
	Address() byte
	// Function returns the accumulated frame's function code byte.
	Function() byte
	// SetAddressFilter enables address filtering: ProcessReply reports
	// NotForMe for any frame whose leading byte is neither addr nor the
	// broadcast address 0.
	SetAddressFilter(addr byte)
	// ClearAddressFilter disables filtering.
	ClearAddressFilter()
}

// Frame is the concrete Datagram: a flat byte buffer whose trailing CRC is
// checked in one pass by ProcessReply, with an optional address filter,
// reused by both
// MasterSM (to build requests and validate replies) and SlaveSM (to
// validate requests and build replies).
type Frame struct {
	buf [MaxFrameSize]byte
	n   int

	filtering     bool
	filterAddress byte
}

// NewFrame constructs an empty Frame with no address filtering.
func NewFrame() *Frame {
	return &Frame{}
}

// SetAddressFilter enables address filtering: ProcessReply reports
// NotForMe for any accumulated frame whose leading address byte is neither
// addr nor the broadcast address 0.
func (f *Frame) SetAddressFilter(addr byte) {
	f.filtering = true
	f.filterAddress = addr
}

// ClearAddressFilter disables filtering, so ProcessReply accepts a frame
// whatever its leading address byte. MasterSM does not use it: it sets the
// filter to each request's slave address instead.
func (f *Frame) ClearAddressFilter() {
	f.filtering = false
}

func (f *Frame) Reset() {
	f.n = 0
}

func (f *Frame) ProcessChar(b byte) {
	if f.n >= MaxFrameSize {
		// Oversize frame: drop further bytes, the eventual CRC check
		// will fail and the state machine will discard it.
		return
	}
	f.buf[f.n] = b
	f.n++
}

func (f *Frame) ProcessReply() Status {
	if f.n < 4 {
		return BadCRC
	}
	if !crc16.ValidLE(f.buf[:f.n]) {
		return BadCRC
	}
	if f.filtering && f.buf[0] != 0 && f.buf[0] != f.filterAddress {
		return NotForMe
	}
	return GoodFrame
}

func (f *Frame) GetStatus() Status {
	if f.n == 0 {
		return InProgress
	}
	return f.ProcessReply()
}

func (f *Frame) Buffer() []byte {
	return f.buf[:f.n]
}

func (f *Frame) ReadyRequest() []byte {
	full := crc16.AppendLE(f.buf[:f.n])
	f.n = len(full)
	return f.buf[:f.n]
}

func (f *Frame) ReadyReply() []byte {
	return f.ReadyRequest()
}

// BuildHeader resets the frame and writes its leading address and function
// code, the common prefix of every request or reply this package builds.
func (f *Frame) BuildHeader(address, function byte) {
	f.Reset()
	f.buf[0] = address
	f.buf[1] = function
	f.n = 2
}

// AppendByte appends a single payload byte.
func (f *Frame) AppendByte(b byte) {
	f.buf[f.n] = b
	f.n++
}

// AppendUint16BE appends v in the big-endian byte order Modbus uses for
// register values and counts.
func (f *Frame) AppendUint16BE(v uint16) {
	f.buf[f.n] = byte(v >> 8)
	f.buf[f.n+1] = byte(v)
	f.n += 2
}

// Address returns the accumulated frame's leading address byte.
func (f *Frame) Address() byte {
	if f.n == 0 {
		return 0
	}
	return f.buf[0]
}

// Function returns the accumulated frame's function code byte.
func (f *Frame) Function() byte {
	if f.n < 2 {
		return 0
	}
	return f.buf[1]
}
