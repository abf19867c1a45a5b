package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/big"

	"github.com/btctx/engine/internal/codec"
)

// rfc6979Nonce deterministically derives the ECDSA nonce k from the private
// key d and message digest, per RFC 6979 with HMAC-SHA256 as the PRF. The
// curve order's bit length equals the hash's output length (256 bits) for
// secp256k1, so bits2octets reduces to a single mod-n reduction.
func rfc6979Nonce(d *big.Int, digest []byte) *big.Int {
	n := codec.Secp256k1N
	qlen := 32

	x := int2octets(d, qlen)
	h1 := bits2octets(digest, n, qlen)

	v := bytesOf(0x01, qlen)
	k := bytesOf(0x00, qlen)

	k = hmacSum(k, concat(v, []byte{0x00}, x, h1))
	v = hmacSum(k, v)
	k = hmacSum(k, concat(v, []byte{0x01}, x, h1))
	v = hmacSum(k, v)

	for {
		v = hmacSum(k, v)
		candidate := new(big.Int).SetBytes(v)
		if candidate.Sign() > 0 && candidate.Cmp(n) < 0 {
			return candidate
		}
		k = hmacSum(k, concat(v, []byte{0x00}))
		v = hmacSum(k, v)
	}
}

func hmacSum(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// int2octets renders n as a fixed-width qlen-byte big-endian string.
func int2octets(n *big.Int, qlen int) []byte {
	b := n.Bytes()
	if len(b) >= qlen {
		return b[len(b)-qlen:]
	}
	out := make([]byte, qlen)
	copy(out[qlen-len(b):], b)
	return out
}

// bits2octets reduces a hash digest mod the curve order, then renders it as
// a fixed-width octet string, per RFC 6979 section 2.3.4.
func bits2octets(digest []byte, order *big.Int, qlen int) []byte {
	z := new(big.Int).SetBytes(digest)
	if z.Cmp(order) >= 0 {
		z = new(big.Int).Sub(z, order)
	}
	return int2octets(z, qlen)
}
