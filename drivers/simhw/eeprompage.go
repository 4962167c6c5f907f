package simhw

// EEPROMPage is a simulated byte-addressable EEPROM page satisfying
// eeprom.Page: a flat in-memory buffer standing in for persisted storage.
// Constructing a fresh Counter or Struct against the same *EEPROMPage
// instance models surviving a power cycle; replacing it with a zeroed one
// models a blank device.
type EEPROMPage struct {
	data []byte
}

// NewEEPROMPage constructs a zeroed page of the given size.
func NewEEPROMPage(size int) *EEPROMPage {
	return &EEPROMPage{data: make([]byte, size)}
}

func (p *EEPROMPage) ReadAt(offset int, buf []byte) {
	copy(buf, p.data[offset:offset+len(buf)])
}

func (p *EEPROMPage) WriteAt(offset int, data []byte) {
	copy(p.data[offset:offset+len(data)], data)
}
