package signer

import (
	"bytes"

	"github.com/btctx/engine/internal/bterr"
)

// pushData prefixes data with the minimal Bitcoin script push opcode for
// its length. Every scriptSig this engine builds pushes signatures,
// pubkeys, and (for multisig) the redeem script this way.
func pushData(data []byte) []byte {
	switch {
	case len(data) < 0x4c:
		return append([]byte{byte(len(data))}, data...)
	case len(data) <= 0xff:
		return append([]byte{0x4c, byte(len(data))}, data...)
	default:
		out := []byte{0x4d, byte(len(data)), byte(len(data) >> 8)}
		return append(out, data...)
	}
}

// SignP2PK builds the scriptSig for a P2PK input: just the pushed
// signature.
func SignP2PK(privKey, digest []byte) ([]byte, error) {
	sig, err := SignECDSA(privKey, digest)
	if err != nil {
		return nil, err
	}
	sig = append(sig, SighashAll)
	return pushData(sig), nil
}

// SignP2PKH builds the scriptSig for a P2PKH input: the pushed signature
// followed by the pushed public key.
func SignP2PKH(privKey, pubKey, digest []byte) ([]byte, error) {
	sig, err := SignECDSA(privKey, digest)
	if err != nil {
		return nil, err
	}
	sig = append(sig, SighashAll)
	out := pushData(sig)
	out = append(out, pushData(pubKey)...)
	return out, nil
}

// SignP2WPKH builds the witness stack for a P2WPKH input: [sig, pubkey].
// scriptSig for this input stays empty; the caller is responsible for that.
func SignP2WPKH(privKey, pubKey, digest []byte) ([][]byte, error) {
	sig, err := SignECDSA(privKey, digest)
	if err != nil {
		return nil, err
	}
	sig = append(sig, SighashAll)
	return [][]byte{sig, pubKey}, nil
}

// SignP2TRKeyPath builds the witness stack for a P2TR key-path input: the
// sole Schnorr signature, with SIGHASH_DEFAULT (sighashType 0) appending
// nothing.
func SignP2TRKeyPath(internalPriv, sighash []byte) ([][]byte, error) {
	sig, err := SignTaprootKeyPath(internalPriv, sighash, 0)
	if err != nil {
		return nil, err
	}
	return [][]byte{sig}, nil
}

// candidateKey is one private key this engine could sign a multisig input
// with, indexed by both its compressed and uncompressed public encodings
// so it matches whichever form the redeem script's pubkey list used.
type candidateKey struct {
	privateKey   []byte
	compressed   []byte
	uncompressed []byte
}

// BuildMultisigKeyIndex derives both pubkey encodings for each available
// private key once, so SignP2SHMultisig can match redeem-script pubkeys
// without recomputing EC point math per signing pass.
func BuildMultisigKeyIndex(privateKeys [][]byte) []candidateKey {
	index := make([]candidateKey, 0, len(privateKeys))
	for _, priv := range privateKeys {
		index = append(index, candidateKey{
			privateKey:   priv,
			compressed:   pubKeyFromPriv(priv, true),
			uncompressed: pubKeyFromPriv(priv, false),
		})
	}
	return index
}

// ParseMultisigRedeemScript extracts the ordered public-key list from a
// `OP_M <pk1> <pk2> ... <pkN> OP_N OP_CHECKMULTISIG` redeem script.
func ParseMultisigRedeemScript(redeemScript []byte) ([][]byte, error) {
	if len(redeemScript) < 4 {
		return nil, bterr.New(bterr.InvalidScript, "multisig: redeem script too short")
	}
	if redeemScript[0] < 0x51 || redeemScript[0] > 0x60 {
		return nil, bterr.New(bterr.InvalidScript, "multisig: redeem script must start with OP_M")
	}

	var pubkeys [][]byte
	pos := 1
	for pos < len(redeemScript)-2 {
		pubkeyLen := int(redeemScript[pos])
		if pubkeyLen != 33 && pubkeyLen != 65 {
			break
		}
		pos++
		if pos+pubkeyLen > len(redeemScript) {
			break
		}
		pubkeys = append(pubkeys, redeemScript[pos:pos+pubkeyLen])
		pos += pubkeyLen
	}
	return pubkeys, nil
}

// SignP2SHMultisig builds the scriptSig for a P2SH-multisig input: the
// historical OP_0 dummy element, m pushed signatures in redeem-script
// pubkey order, and the pushed redeem script. It stops once m signatures
// are produced; fewer available matching keys is NotEnoughKeys.
func SignP2SHMultisig(privateKeys [][]byte, redeemScript []byte, m int, digest []byte) ([]byte, error) {
	pubkeysInScript, err := ParseMultisigRedeemScript(redeemScript)
	if err != nil {
		return nil, err
	}
	index := BuildMultisigKeyIndex(privateKeys)

	var signatures [][]byte
	for _, pk := range pubkeysInScript {
		if len(signatures) >= m {
			break
		}
		for _, cand := range index {
			if bytes.Equal(pk, cand.compressed) || bytes.Equal(pk, cand.uncompressed) {
				sig, err := SignECDSA(cand.privateKey, digest)
				if err != nil {
					return nil, err
				}
				sig = append(sig, SighashAll)
				signatures = append(signatures, sig)
				break
			}
		}
	}

	if len(signatures) < m {
		return nil, bterr.New(bterr.NotEnoughKeys,
			"p2sh multisig: not enough matching private keys to reach threshold m")
	}

	var out []byte
	out = append(out, 0x00) // OP_0: historical CHECKMULTISIG off-by-one dummy
	for _, sig := range signatures {
		out = append(out, pushData(sig)...)
	}
	out = append(out, pushData(redeemScript)...)
	return out, nil
}
