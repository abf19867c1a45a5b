package helpers

import (
	"encoding/hex"
	"strings"
)

// HexToBytes decodes a hex string, tolerating an optional leading 0x as
// some CLI flags and RPC payloads carry it.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// BytesToHex encodes b as a bare (unprefixed) hex string, the form txids,
// scripts, and keys take throughout this engine.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// PadLeft pads b with zero bytes on the left to reach length, the shape a
// private key scalar or sighash digest must take as a fixed-width field.
func PadLeft(b []byte, length int) []byte {
	if len(b) >= length {
		return b
	}
	result := make([]byte, length)
	copy(result[length-len(b):], b)
	return result
}
