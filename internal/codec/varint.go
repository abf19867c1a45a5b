package codec

import (
	"encoding/binary"
	"fmt"
)

// PutVarInt encodes n as a Bitcoin CompactSize varint.
func PutVarInt(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		return buf
	case n <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		return buf
	default:
		buf := make([]byte, 9)
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:], n)
		return buf
	}
}

// ReadVarInt decodes a CompactSize varint starting at b[i] and returns the
// value plus the index immediately following it.
func ReadVarInt(b []byte, i int) (uint64, int, error) {
	if i >= len(b) {
		return 0, i, fmt.Errorf("varint: index %d out of range (len %d)", i, len(b))
	}
	prefix := b[i]
	i++
	switch {
	case prefix < 0xfd:
		return uint64(prefix), i, nil
	case prefix == 0xfd:
		if i+2 > len(b) {
			return 0, i, fmt.Errorf("varint: truncated 2-byte value")
		}
		v := binary.LittleEndian.Uint16(b[i : i+2])
		return uint64(v), i + 2, nil
	case prefix == 0xfe:
		if i+4 > len(b) {
			return 0, i, fmt.Errorf("varint: truncated 4-byte value")
		}
		v := binary.LittleEndian.Uint32(b[i : i+4])
		return uint64(v), i + 4, nil
	default:
		if i+8 > len(b) {
			return 0, i, fmt.Errorf("varint: truncated 8-byte value")
		}
		v := binary.LittleEndian.Uint64(b[i : i+8])
		return v, i + 8, nil
	}
}
