// Package codec implements the byte-exact primitives the transaction engine
// is built on: double-SHA256, HASH160, tagged hashes, varints, Base58Check
// and Bech32/Bech32m, and the BIP-62 low-s DER signature encoder. None of
// these delegate to a higher-level script/address library — they are the
// part of the system worth hand-building and verifying byte-for-byte.
package codec

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // vetted legacy hash, required by BIP-13/141
)

// Sha256d returns SHA-256(SHA-256(x)).
func Sha256d(x []byte) []byte {
	first := sha256.Sum256(x)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Sha256Once returns single SHA-256(x). BIP-341 uses this, not Sha256d,
// for its per-field aggregate hashes — named distinctly so call sites
// can't confuse the two by accident.
func Sha256Once(x []byte) []byte {
	h := sha256.Sum256(x)
	return h[:]
}

// Hash160 returns RIPEMD-160(SHA-256(x)).
func Hash160(x []byte) []byte {
	first := sha256.Sum256(x)
	h := ripemd160.New()
	h.Write(first[:])
	return h.Sum(nil)
}

// TaggedHash computes the BIP-340 tagged hash:
// SHA256(SHA256(tag) || SHA256(tag) || msg).
func TaggedHash(tag string, msg []byte) []byte {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	h.Write(msg)
	return h.Sum(nil)
}
