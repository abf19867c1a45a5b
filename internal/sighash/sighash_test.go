package sighash

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func reverseHex(h string) chainhash.Hash {
	b, _ := hex.DecodeString(h)
	var out chainhash.Hash
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// internalHex decodes a txid already written in internal (serialized) byte
// order, as it appears inside a raw transaction.
func internalHex(h string) chainhash.Hash {
	b, _ := hex.DecodeString(h)
	var out chainhash.Hash
	copy(out[:], b)
	return out
}

// TestBIP143P2WPKHVector reproduces BIP-143's native P2WPKH test vector:
// two inputs into two outputs, signing the second (P2WPKH, 6 BTC) input.
func TestBIP143P2WPKHVector(t *testing.T) {
	txid0 := internalHex("fff7f7881a8099afa6940d42d1e7f6362bec38171ea3edf433541db4e4ad969f")
	txid1 := internalHex("ef51e1b804cc89d182d279655c3aa89e815b1b309fe287d9b2b55d57b90ec68a")
	scriptCode, _ := hex.DecodeString("76a9141d0f172a0ecb48aee1be1f2687d2963ae33f71a188ac")

	output1Script, _ := hex.DecodeString("76a9148280b37df378db99f66f85c95a783a76ac7a6d5988ac")
	output2Script, _ := hex.DecodeString("76a9143bde42dbee7e4dbe6a21b2d50ce2f0167faa815988ac")

	inputs := []Input{
		{Outpoint: Outpoint{TxID: txid0, Vout: 0}, Sequence: 0xffffffee},
		{Outpoint: Outpoint{TxID: txid1, Vout: 1}, Sequence: 0xffffffff},
	}
	outputs := []Output{
		{Value: 112340000, ScriptPubKey: output1Script},
		{Value: 223450000, ScriptPubKey: output2Script},
	}

	digest := BIP143Sighash(1, inputs, 1, scriptCode, 600000000, outputs, 0x11, SighashAll)
	want, _ := hex.DecodeString("c37af31116d1b27caf68aae9e3ac82f1477929014d5b917657d0eb49478cb670")
	if !bytes.Equal(digest, want) {
		t.Fatalf("BIP-143 sighash mismatch: got %x want %x", digest, want)
	}
}

func TestLegacySighashDeterministic(t *testing.T) {
	txid := reverseHex("0000000000000000000000000000000000000000000000000000000000aa")
	inputs := []Input{{Outpoint: Outpoint{TxID: txid, Vout: 0}, Sequence: 0xffffffff}}
	outputs := []Output{{Value: 1000, ScriptPubKey: []byte{0x76, 0xa9}}}

	a := LegacySighash(1, inputs, 0, []byte{0x51}, outputs, 0, SighashAll)
	b := LegacySighash(1, inputs, 0, []byte{0x51}, outputs, 0, SighashAll)
	if !bytes.Equal(a, b) {
		t.Fatalf("legacy sighash not deterministic")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32-byte digest, got %d", len(a))
	}
}

func TestTaprootSighashPerInputSensitivity(t *testing.T) {
	txid := reverseHex("0000000000000000000000000000000000000000000000000000000000bb")
	inputs := []Input{
		{Outpoint: Outpoint{TxID: txid, Vout: 0}, Sequence: 0xffffffff},
		{Outpoint: Outpoint{TxID: txid, Vout: 1}, Sequence: 0xffffffff},
	}
	outputs := []Output{{Value: 1000, ScriptPubKey: []byte{0x51, 0x20}}}

	amountsA := []int64{1000, 2000}
	spksA := [][]byte{{0x51}, {0x52}}

	amountsB := []int64{1000, 9999} // second input's amount differs
	spksB := [][]byte{{0x51}, {0x52}}

	digestA := TaprootSighash(2, inputs, amountsA, spksA, outputs, 0, 0, 0)
	digestB := TaprootSighash(2, inputs, amountsB, spksB, outputs, 0, 0, 0)

	if bytes.Equal(digestA, digestB) {
		t.Fatalf("taproot sighash must depend on every input's amount, not just the signed one")
	}
}
