package wsock

import "encoding/binary"

// RFC 6455 Section 5.2 fixes the wire byte order for extended payload
// lengths at big-endian ("network byte order"); these helpers name that
// choice once instead of repeating binary.BigEndian calls at each frame
// field.

func putUint16BE(b []byte, v uint16) {
	binary.BigEndian.PutUint16(b, v)
}

func uint16BE(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func putUint64BE(b []byte, v uint64) {
	binary.BigEndian.PutUint64(b, v)
}

func uint64BE(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
