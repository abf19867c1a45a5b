package signer

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/codec"
	"github.com/btctx/engine/pkg/helpers"
)

// SighashAll is the only sighash byte this engine appends to legacy and
// SegWit v0 signatures.
const SighashAll = 0x01

// SignECDSA produces a BIP-62 low-s DER-encoded ECDSA signature over digest
// using privKey, with the nonce derived deterministically per RFC 6979 so
// the same (key, digest) pair always yields the same signature.
func SignECDSA(privKey []byte, digest []byte) ([]byte, error) {
	if helpers.IsZeroBytes(privKey) {
		return nil, bterr.New(bterr.InvalidKeyMaterial, "ecdsa: private key is zero")
	}
	d := new(big.Int).SetBytes(privKey)
	if d.Cmp(codec.Secp256k1N) >= 0 {
		return nil, bterr.New(bterr.InvalidKeyMaterial, "ecdsa: private key out of range")
	}

	k := rfc6979Nonce(d, digest)

	r, err := scalarMultGx(k)
	if err != nil {
		return nil, err
	}
	if r.Sign() == 0 {
		return nil, bterr.New(bterr.InvalidKeyMaterial, "ecdsa: r is zero, nonce collision")
	}

	z := new(big.Int).SetBytes(digest)
	z.Mod(z, codec.Secp256k1N)

	kInv := new(big.Int).ModInverse(k, codec.Secp256k1N)
	s := new(big.Int).Mul(r, d)
	s.Add(s, z)
	s.Mul(s, kInv)
	s.Mod(s, codec.Secp256k1N)
	if s.Sign() == 0 {
		return nil, bterr.New(bterr.InvalidKeyMaterial, "ecdsa: s is zero, nonce collision")
	}

	return codec.DERLowS(r, s), nil
}

// scalarMultGx computes (k*G).x mod n, the r component of an ECDSA
// signature.
func scalarMultGx(k *big.Int) (*big.Int, error) {
	if k.Sign() == 0 || k.Cmp(codec.Secp256k1N) >= 0 {
		return nil, bterr.New(bterr.InvalidKeyMaterial, "ecdsa: nonce out of range")
	}
	p := pointFromScalar(k)
	x := new(big.Int).SetBytes(func() []byte { b := p.X().Bytes(); return b[:] }())
	x.Mod(x, codec.Secp256k1N)
	return x, nil
}

// pubKeyFromPriv recovers the secp256k1 public key (compressed form, unless
// uncompressed is requested) from a 32-byte private key scalar.
func pubKeyFromPriv(privKey []byte, compressed bool) []byte {
	priv, pub := btcec.PrivKeyFromBytes(privKey)
	_ = priv
	if compressed {
		return pub.SerializeCompressed()
	}
	return pub.SerializeUncompressed()
}

// DerivePublicKey recovers the secp256k1 public key (compressed form, unless
// uncompressed is requested) from a 32-byte private key scalar. Exported for
// descriptor-load-time validation that a wallet's stored public key matches
// its private key.
func DerivePublicKey(privKey []byte, compressed bool) []byte {
	return pubKeyFromPriv(privKey, compressed)
}

// DeriveXOnlyPublicKey recovers the BIP-340 x-only public key (the X
// coordinate of privKey's point, with no parity byte) from a 32-byte private
// key scalar.
func DeriveXOnlyPublicKey(privKey []byte) []byte {
	d := new(big.Int).SetBytes(privKey)
	return xOnlyBytes(pointFromScalar(d))
}
