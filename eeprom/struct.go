package eeprom

import (
	"bytes"
	"encoding/binary"

	"github.com/adarwoo/asx-go/alert"
	"github.com/adarwoo/asx-go/drivers"
)

// Struct persists a fixed-size value of type T to a page offset, trailed
// by a Fletcher-16 checksum. T must be fixed-size under encoding/binary
// (no slices, strings, or maps); NewStruct halts via alert.Fatal if it
// isn't, since that is a programmer error caught at construction, not a
// runtime condition.
type Struct[T any] struct {
	q      drivers.EEPROMQueue
	page   Page
	offset int
	size   int
	value  T
}

// NewStruct constructs a Struct[T] writing through q and persisting to
// page at offset. Call Load once at boot before reading Value.
func NewStruct[T any](q drivers.EEPROMQueue, page Page, offset int) *Struct[T] {
	var zero T
	size := binary.Size(zero)
	if size < 0 {
		alert.Fatal("eeprom: %T is not a fixed-size type for binary encoding", zero)
	}
	return &Struct[T]{q: q, page: page, offset: offset, size: size}
}

// Load reads the persisted value and validates its checksum, resetting to
// T's zero value and reporting a recoverable alert on mismatch (per
// spec.md §7.4: checksum mismatch on persisted state is handled by
// reformatting with defaults, not by halting).
func (s *Struct[T]) Load() {
	buf := make([]byte, s.size+2)
	s.page.ReadAt(s.offset, buf)

	body := buf[:s.size]
	stored := binary.BigEndian.Uint16(buf[s.size:])
	want := fletcher16(body)

	if stored != want {
		alert.Recoverable(false, "eeprom: struct checksum mismatch at offset %d, resetting to defaults", s.offset)
		var zero T
		s.value = zero
		return
	}

	var v T
	if err := binary.Read(bytes.NewReader(body), binary.BigEndian, &v); err != nil {
		alert.Recoverable(false, "eeprom: struct decode failed at offset %d: %v", s.offset, err)
		var zero T
		s.value = zero
		return
	}
	s.value = v
}

// Value returns the in-memory value as of the last Load or Set.
func (s *Struct[T]) Value() T { return s.value }

// Set updates the in-memory value and enqueues its persistence as an
// EEPROMQueue Operation.
func (s *Struct[T]) Set(v T) {
	s.value = v
	s.q.Enqueue(opFunc(func() {
		var body bytes.Buffer
		// Errors here would mean v is not fixed-size, already ruled out
		// by NewStruct's binary.Size check.
		_ = binary.Write(&body, binary.BigEndian, v)
		sum := fletcher16(body.Bytes())

		out := make([]byte, s.size+2)
		copy(out, body.Bytes())
		binary.BigEndian.PutUint16(out[s.size:], sum)
		s.page.WriteAt(s.offset, out)
	}))
}
