package txn

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func sampleTxID(b byte) chainhash.Hash {
	var id chainhash.Hash
	for i := range id {
		id[i] = b
	}
	return id
}

func TestSerializeDeserializeRoundTripNoWitness(t *testing.T) {
	tx := &Transaction{
		Version: 1,
		Inputs: []Input{
			{Outpoint: Outpoint{TxID: sampleTxID(0xAA), Vout: 0}, ScriptSig: []byte{0x01, 0x02}, Sequence: 0xFFFFFFFF},
		},
		Outputs: []Output{
			{Value: 50000, ScriptPubKey: []byte{0x76, 0xa9, 0x14}},
		},
		Locktime: 0,
	}

	if tx.HasWitness() {
		t.Fatalf("expected no witness")
	}

	raw := tx.Serialize()
	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if got.Version != tx.Version || got.Locktime != tx.Locktime {
		t.Fatalf("version/locktime mismatch: %+v", got)
	}
	if len(got.Inputs) != 1 || got.Inputs[0].Outpoint.TxID != tx.Inputs[0].Outpoint.TxID {
		t.Fatalf("input mismatch: %+v", got.Inputs)
	}
	if !bytes.Equal(got.Inputs[0].ScriptSig, tx.Inputs[0].ScriptSig) {
		t.Fatalf("scriptSig mismatch")
	}
	if len(got.Outputs) != 1 || got.Outputs[0].Value != 50000 {
		t.Fatalf("output mismatch: %+v", got.Outputs)
	}
}

func TestSerializeDeserializeRoundTripWithWitness(t *testing.T) {
	tx := &Transaction{
		Version: 2,
		Inputs: []Input{
			{
				Outpoint: Outpoint{TxID: sampleTxID(0x11), Vout: 1},
				Sequence: 0xFFFFFFFF,
				Witness:  [][]byte{{0xde, 0xad}, {0x03} /* pubkey stub */},
			},
		},
		Outputs: []Output{
			{Value: 12345, ScriptPubKey: []byte{0x00, 0x14}},
		},
		Locktime: 500000,
	}

	if !tx.HasWitness() {
		t.Fatalf("expected witness present")
	}

	raw := tx.Serialize()
	if raw[4] != 0x00 || raw[5] != 0x01 {
		t.Fatalf("expected segwit marker+flag at offset 4, got %x %x", raw[4], raw[5])
	}

	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(got.Inputs) != 1 || len(got.Inputs[0].Witness) != 2 {
		t.Fatalf("witness mismatch: %+v", got.Inputs)
	}
	if !bytes.Equal(got.Inputs[0].Witness[0], tx.Inputs[0].Witness[0]) {
		t.Fatalf("witness item 0 mismatch")
	}

	// The stripped serialization must be unaffected by witness data, since
	// txid strips it entirely.
	strippedFromWitnessTx := tx.SerializeStripped()
	gotStripped := got.SerializeStripped()
	if !bytes.Equal(strippedFromWitnessTx, gotStripped) {
		t.Fatalf("stripped form differs after round trip")
	}
}

func TestVsizeNoWitnessEqualsStrippedLength(t *testing.T) {
	tx := &Transaction{
		Version: 1,
		Inputs: []Input{
			{Outpoint: Outpoint{TxID: sampleTxID(0x01), Vout: 0}, ScriptSig: make([]byte, 107), Sequence: 0xFFFFFFFF},
		},
		Outputs: []Output{
			{Value: 1000, ScriptPubKey: make([]byte, 25)},
			{Value: 2000, ScriptPubKey: make([]byte, 25)},
		},
	}

	stripped := len(tx.SerializeStripped())
	if tx.Weight() != stripped*4 {
		t.Fatalf("expected weight = 4*stripped for non-witness tx, got weight=%d stripped=%d", tx.Weight(), stripped)
	}
	if tx.Vsize() != stripped {
		t.Fatalf("expected vsize == stripped size for non-witness tx, got vsize=%d stripped=%d", tx.Vsize(), stripped)
	}
}

func TestVsizeWitnessDiscountsWitnessBytes(t *testing.T) {
	tx := &Transaction{
		Version: 2,
		Inputs: []Input{
			{
				Outpoint: Outpoint{TxID: sampleTxID(0x02), Vout: 0},
				Sequence: 0xFFFFFFFF,
				Witness:  [][]byte{make([]byte, 72), make([]byte, 33)},
			},
		},
		Outputs: []Output{
			{Value: 1000, ScriptPubKey: make([]byte, 22)},
		},
	}

	stripped := len(tx.SerializeStripped())
	witnessTotal := len(tx.SerializeWitness())
	expectedWeight := stripped*4 + (witnessTotal - stripped)
	if tx.Weight() != expectedWeight {
		t.Fatalf("weight mismatch: got %d want %d", tx.Weight(), expectedWeight)
	}
	expectedVsize := (expectedWeight + 3) / 4
	if tx.Vsize() != expectedVsize {
		t.Fatalf("vsize mismatch: got %d want %d", tx.Vsize(), expectedVsize)
	}
	// A segwit tx's vsize must be strictly less than its full serialized
	// byte length, since witness bytes count a quarter as much.
	if tx.Vsize() >= witnessTotal {
		t.Fatalf("expected vsize (%d) < full witness serialization length (%d)", tx.Vsize(), witnessTotal)
	}
}

func TestTxIDHexRoundTrip(t *testing.T) {
	tx := &Transaction{
		Version: 1,
		Inputs: []Input{
			{Outpoint: Outpoint{TxID: sampleTxID(0xFF), Vout: 0}, Sequence: 0xFFFFFFFF},
		},
		Outputs: []Output{{Value: 1, ScriptPubKey: []byte{0x00}}},
	}

	idHex := tx.TxIDHex()
	parsed, err := TxIDFromHex(idHex)
	if err != nil {
		t.Fatalf("TxIDFromHex: %v", err)
	}
	if parsed != tx.TxID() {
		t.Fatalf("txid round trip mismatch: got %x want %x", parsed, tx.TxID())
	}
}

func TestTxIDFromHexRejectsWrongLength(t *testing.T) {
	if _, err := TxIDFromHex("deadbeef"); err == nil {
		t.Fatalf("expected error for short txid")
	}
}

func TestDeserializeRejectsTruncatedInput(t *testing.T) {
	if _, err := Deserialize([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatalf("expected error for too-short input")
	}
}
