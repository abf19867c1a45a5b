package codec

import "math/big"

// Secp256k1N is the order of the secp256k1 group, needed for BIP-62 low-s
// normalisation independent of any particular curve library's type.
var Secp256k1N, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)

var secp256k1HalfN = new(big.Int).Rsh(Secp256k1N, 1)

// DERLowS produces a BIP-62 low-s DER-encoded ECDSA signature from (r, s).
// If s is above half the curve order it is replaced by n-s so every
// signature this engine emits satisfies the low-s policy.
func DERLowS(r, s *big.Int) []byte {
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(Secp256k1N, s)
	}

	rb := asn1UnsignedBytes(r)
	sb := asn1UnsignedBytes(s)

	body := make([]byte, 0, 4+len(rb)+len(sb))
	body = append(body, 0x02, byte(len(rb)))
	body = append(body, rb...)
	body = append(body, 0x02, byte(len(sb)))
	body = append(body, sb...)

	out := make([]byte, 0, len(body)+2)
	out = append(out, 0x30, byte(len(body)))
	out = append(out, body...)
	return out
}

// asn1UnsignedBytes renders n as a minimal big-endian byte string, prefixing
// a 0x00 byte when the high bit is set so the DER INTEGER isn't read as
// negative.
func asn1UnsignedBytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) == 0 {
		return []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		padded := make([]byte, len(b)+1)
		copy(padded[1:], b)
		return padded
	}
	return b
}
