// Package eeprom implements the two persisted-state facilities from
// spec.md §6: a wear-leveled counter rotating across four banks, and a
// generic checksummed structured-state wrapper. Both are built on
// drivers.EEPROMQueue, so every write is itself a queued, reactor-
// dispatched Operation rather than a direct blocking write.
package eeprom

// Page is the raw byte-addressable backing store eeprom operates on.
// spec.md's EEPROM operation queue only fixes how operations are queued
// and dispatched (drivers.EEPROMQueue), not how bytes are physically
// persisted underneath that queue, so this is eeprom's own narrow
// contract for the storage itself.
type Page interface {
	ReadAt(offset int, buf []byte)
	WriteAt(offset int, data []byte)
}
