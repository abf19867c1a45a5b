// Package signer turns a sighash digest into the scriptSig bytes or witness
// stack items a given script family expects, dispatching between RFC-6979
// deterministic ECDSA (legacy and SegWit v0) and BIP-340 Schnorr with the
// BIP-341 Taproot key tweak.
package signer

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/codec"
	"github.com/btctx/engine/pkg/helpers"
)

// emptyMerkleRoot is the BIP-341 tweak input this engine always uses: a
// key-path-only spend carries no script tree.
var emptyMerkleRoot []byte

// pointFromScalar computes k*G and returns it as an affine public key.
func pointFromScalar(k *big.Int) *btcec.PublicKey {
	var scalar btcec.ModNScalar
	scalar.SetByteSlice(scalarBytes(k))
	var p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&scalar, &p)
	p.ToAffine()
	return btcec.NewPublicKey(&p.X, &p.Y)
}

// addPoints computes a + b and returns the affine sum.
func addPoints(a, b *btcec.PublicKey) *btcec.PublicKey {
	var aj, bj, sum btcec.JacobianPoint
	a.AsJacobian(&aj)
	b.AsJacobian(&bj)
	btcec.AddNonConst(&aj, &bj, &sum)
	sum.ToAffine()
	return btcec.NewPublicKey(&sum.X, &sum.Y)
}

func scalarBytes(k *big.Int) []byte {
	return helpers.PadLeft(k.Bytes(), 32)
}

func isEvenY(p *btcec.PublicKey) bool {
	yBytes := p.Y().Bytes()
	return yBytes[len(yBytes)-1]&1 == 0
}

// TaprootTweakPrivateKey applies the BIP-341 key-path tweak to internalPriv,
// negating it first if necessary so the internal public key has an even Y
// coordinate, exactly as BIP-340/341 require before a tweak is meaningful.
// It returns the tweaked scalar ready to feed into SchnorrSign.
func TaprootTweakPrivateKey(internalPriv []byte) (*big.Int, error) {
	if helpers.IsZeroBytes(internalPriv) {
		return nil, bterr.New(bterr.InvalidKeyMaterial, "taproot: private key is zero")
	}
	d := new(big.Int).SetBytes(internalPriv)
	if d.Cmp(codec.Secp256k1N) >= 0 {
		return nil, bterr.New(bterr.InvalidKeyMaterial, "taproot: private key out of range")
	}

	p := pointFromScalar(d)
	if !isEvenY(p) {
		d = new(big.Int).Sub(codec.Secp256k1N, d)
	}

	xOnly := schnorr.SerializePubKey(p)
	t := new(big.Int).SetBytes(codec.TaggedHash("TapTweak", append(append([]byte{}, xOnly...), emptyMerkleRoot...)))
	t.Mod(t, codec.Secp256k1N)

	tweaked := new(big.Int).Add(d, t)
	tweaked.Mod(tweaked, codec.Secp256k1N)
	return tweaked, nil
}

// TaprootOutputKey computes the BIP-341 tweaked output key (x-only, 32
// bytes) for a wallet's internal x-only public key, with an empty merkle
// root for key-path-only spends. internalXOnly must lift to a valid curve
// point (BIP-340's lift_x); failure is InvalidKeyMaterial.
func TaprootOutputKey(internalXOnly []byte) ([]byte, error) {
	p, err := schnorr.ParsePubKey(internalXOnly)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidKeyMaterial, "taproot: lift_x failed for internal pubkey", err)
	}

	t := new(big.Int).SetBytes(codec.TaggedHash("TapTweak", append(append([]byte{}, internalXOnly...), emptyMerkleRoot...)))
	t.Mod(t, codec.Secp256k1N)

	tG := pointFromScalar(t)
	q := addPoints(p, tG)

	return helpers.PadLeft(q.X().Bytes(), 32), nil
}

// SchnorrSign produces a BIP-340 signature over msg using privScalar
// (already tweaked, if a tweak applies). auxRand should be 32 bytes of
// fresh randomness; it is hashed into the nonce derivation as BIP-340
// specifies, not used directly as the nonce.
func SchnorrSign(privScalar *big.Int, msg []byte, auxRand []byte) ([64]byte, error) {
	var sig [64]byte

	d := new(big.Int).Set(privScalar)
	p := pointFromScalar(d)
	if !isEvenY(p) {
		d = new(big.Int).Sub(codec.Secp256k1N, d)
	}
	px := xOnlyBytes(p)

	aux := codec.TaggedHash("BIP0340/aux", auxRand)
	t := xorBytes(scalarBytes(d), aux)

	nonceInput := append(append([]byte{}, t...), px...)
	nonceInput = append(nonceInput, msg...)
	kHash := codec.TaggedHash("BIP0340/nonce", nonceInput)

	k := new(big.Int).SetBytes(kHash)
	k.Mod(k, codec.Secp256k1N)
	if k.Sign() == 0 {
		return sig, bterr.New(bterr.InvalidKeyMaterial, "schnorr: zero nonce derived")
	}

	r := pointFromScalar(k)
	if !isEvenY(r) {
		k = new(big.Int).Sub(codec.Secp256k1N, k)
	}
	rx := xOnlyBytes(r)

	challengeInput := append(append(append([]byte{}, rx...), px...), msg...)
	e := new(big.Int).SetBytes(codec.TaggedHash("BIP0340/challenge", challengeInput))
	e.Mod(e, codec.Secp256k1N)

	s := new(big.Int).Mul(e, d)
	s.Add(s, k)
	s.Mod(s, codec.Secp256k1N)

	copy(sig[:32], rx)
	copy(sig[32:], scalarBytes(s))
	return sig, nil
}

func xOnlyBytes(p *btcec.PublicKey) []byte {
	return helpers.PadLeft(p.X().Bytes(), 32)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// SignTaprootKeyPath signs sighash with internalPriv's taproot-tweaked key
// and returns the witness stack item: a 64-byte signature, or 65 bytes with
// sighashType appended when it isn't SIGHASH_DEFAULT (0).
func SignTaprootKeyPath(internalPriv []byte, sighash []byte, sighashType byte) ([]byte, error) {
	tweaked, err := TaprootTweakPrivateKey(internalPriv)
	if err != nil {
		return nil, err
	}

	auxRand, err := helpers.GenerateSecureRandom(32)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidKeyMaterial, "schnorr: read aux randomness", err)
	}

	sig, err := SchnorrSign(tweaked, sighash, auxRand)
	if err != nil {
		return nil, err
	}

	if sighashType == 0 {
		return sig[:], nil
	}
	return append(sig[:], sighashType), nil
}
