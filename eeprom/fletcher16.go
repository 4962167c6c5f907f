package eeprom

// fletcher16 computes the Fletcher-16 checksum of data: small enough an
// inline helper here rather than its own package, unlike CRC-16 which is
// shared between this package's future users and the Modbus arbiter.
func fletcher16(data []byte) uint16 {
	var sum1, sum2 uint32
	for _, b := range data {
		sum1 = (sum1 + uint32(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return uint16(sum2<<8 | sum1)
}
