package codec

import (
	"strings"

	"github.com/btctx/engine/internal/bterr"
)

// Bech32Variant distinguishes the two checksum constants defined by BIP-173
// (original Bech32) and BIP-350 (Bech32m, used from witness version 1 on).
type Bech32Variant int

const (
	VariantBech32 Bech32Variant = iota
	VariantBech32m
)

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

const bech32Const = 1
const bech32mConst = 0x2bc830a3

func bech32Polymod(values []byte) uint32 {
	gen := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

func bech32HRPExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func bech32VerifyChecksum(hrp string, data []byte) (Bech32Variant, bool) {
	values := append(bech32HRPExpand(hrp), data...)
	pm := bech32Polymod(values)
	if pm == bech32Const {
		return VariantBech32, true
	}
	if pm == bech32mConst {
		return VariantBech32m, true
	}
	return 0, false
}

func bech32CreateChecksum(hrp string, data []byte, variant Bech32Variant) []byte {
	constVal := uint32(bech32Const)
	if variant == VariantBech32m {
		constVal = bech32mConst
	}
	values := append(bech32HRPExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	pm := bech32Polymod(values) ^ constVal

	out := make([]byte, 6)
	for i := 0; i < 6; i++ {
		out[i] = byte((pm >> uint(5*(5-i))) & 31)
	}
	return out
}

// Bech32Encode encodes hrp + 5-bit groups into a Bech32 (or Bech32m) string.
func Bech32Encode(hrp string, data []byte, variant Bech32Variant) (string, error) {
	checksum := bech32CreateChecksum(hrp, data, variant)
	combined := append(append([]byte{}, data...), checksum...)

	var sb strings.Builder
	sb.WriteString(hrp)
	sb.WriteByte('1')
	for _, b := range combined {
		if int(b) >= len(bech32Charset) {
			return "", bterr.New(bterr.InvalidAddress, "bech32: value out of range")
		}
		sb.WriteByte(bech32Charset[b])
	}
	return sb.String(), nil
}

// Bech32Decode decodes a Bech32/Bech32m string into (hrp, 5-bit data,
// variant), rejecting mixed case and out-of-alphabet characters as BIP-173
// requires.
func Bech32Decode(s string) (hrp string, data []byte, variant Bech32Variant, err error) {
	for _, r := range s {
		if r < 33 || r > 126 {
			return "", nil, 0, bterr.New(bterr.InvalidAddress, "bech32: invalid character")
		}
	}
	lower := strings.ToLower(s)
	upper := strings.ToUpper(s)
	if s != lower && s != upper {
		return "", nil, 0, bterr.New(bterr.InvalidAddress, "bech32: mixed case")
	}
	s = lower

	pos := strings.LastIndexByte(s, '1')
	if pos < 1 || pos+7 > len(s) {
		return "", nil, 0, bterr.New(bterr.InvalidAddress, "bech32: separator misplaced")
	}

	hrp = s[:pos]
	dataChars := s[pos+1:]

	data = make([]byte, len(dataChars))
	for i := 0; i < len(dataChars); i++ {
		idx := strings.IndexByte(bech32Charset, dataChars[i])
		if idx < 0 {
			return "", nil, 0, bterr.New(bterr.InvalidAddress, "bech32: invalid data character")
		}
		data[i] = byte(idx)
	}

	v, ok := bech32VerifyChecksum(hrp, data)
	if !ok {
		return "", nil, 0, bterr.New(bterr.InvalidAddress, "bech32: checksum mismatch")
	}

	return hrp, data[:len(data)-6], v, nil
}

// ConvertBits repacks a slice of values expressed with fromBits-wide groups
// into toBits-wide groups (used for the 8<->5 bit repacking Bech32 needs).
// When pad is false, decode must not produce leftover non-zero bits.
func ConvertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	var acc uint32
	var bits uint
	var ret []byte
	maxv := uint32(1)<<toBits - 1
	maxAcc := uint32(1)<<(fromBits+toBits-1) - 1

	for _, value := range data {
		if uint32(value)>>fromBits != 0 {
			return nil, bterr.New(bterr.InvalidAddress, "convertbits: value out of range")
		}
		acc = ((acc << fromBits) | uint32(value)) & maxAcc
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			ret = append(ret, byte((acc>>bits)&maxv))
		}
	}

	if pad {
		if bits > 0 {
			ret = append(ret, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, bterr.New(bterr.InvalidAddress, "convertbits: non-zero padding")
	}

	return ret, nil
}
