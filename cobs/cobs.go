// Package cobs implements Consistent-Overhead Byte-Stuffing, used by the
// tracing facility to frame log records over a byte-oriented UART with a
// single reserved delimiter (0x00) and no escaping.
package cobs

// Encode returns the COBS encoding of data with a trailing zero-byte frame
// delimiter. The encoded form never contains a zero byte except that final
// delimiter.
func Encode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/254+2)
	codeIdx := 0
	out = append(out, 0) // placeholder for first code byte
	code := byte(1)

	for _, b := range data {
		if b == 0 {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0) // placeholder
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == 0xFF {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
		}
	}
	out[codeIdx] = code
	out = append(out, 0) // frame delimiter
	return out
}

// Decode reverses Encode, stopping at (and not including) the trailing zero
// delimiter. It returns false if frame is malformed.
func Decode(frame []byte) ([]byte, bool) {
	if len(frame) == 0 || frame[len(frame)-1] != 0 {
		return nil, false
	}
	frame = frame[:len(frame)-1]
	out := make([]byte, 0, len(frame))

	i := 0
	for i < len(frame) {
		code := frame[i]
		if code == 0 {
			return nil, false
		}
		i++
		end := i + int(code) - 1
		if end > len(frame) {
			return nil, false
		}
		out = append(out, frame[i:end]...)
		i = end
		if code != 0xFF && i < len(frame) {
			out = append(out, 0)
		}
	}
	return out, true
}
