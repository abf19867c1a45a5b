// Package sighash computes the signature digests this engine signs: the
// legacy per-input digest, the BIP-143 witness digest (P2WPKH), and the
// BIP-341 Taproot key-path digest. Each function takes only the plain
// fields it needs rather than a full transaction type, so it has no
// dependency on the transaction assembler that calls it.
package sighash

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btctx/engine/internal/codec"
)

// SighashAll is the only sighash type this engine produces.
const SighashAll = 0x01

// Outpoint identifies a previous output being spent: the txid in internal
// (little-endian, reversed-from-display) byte order and its output index.
// TxID reuses chainhash.Hash for its display-order String()/
// NewHashFromStr conversions rather than hand-rolling byte reversal.
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

// Input is one transaction input's outpoint and sequence number.
type Input struct {
	Outpoint Outpoint
	Sequence uint32
}

// Output is one transaction output's value and scriptPubKey.
type Output struct {
	Value        int64
	ScriptPubKey []byte
}

func serializeOutpoint(o Outpoint) []byte {
	buf := make([]byte, 36)
	copy(buf[:32], o.TxID[:])
	binary.LittleEndian.PutUint32(buf[32:], o.Vout)
	return buf
}

func serializeOutput(o Output) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(o.Value))
	buf = append(buf, codec.PutVarInt(uint64(len(o.ScriptPubKey)))...)
	buf = append(buf, o.ScriptPubKey...)
	return buf
}

func serializeOutputs(outputs []Output) []byte {
	buf := codec.PutVarInt(uint64(len(outputs)))
	for _, o := range outputs {
		buf = append(buf, serializeOutput(o)...)
	}
	return buf
}

// LegacySighash computes the pre-SegWit signature digest for input
// inputIndex. scriptCode is the scriptPubKey (or redeem script, for P2SH)
// substituted into that input's scriptSig slot; every other input's
// scriptSig is empty, matching the classic OP_CHECKSIG preimage rule.
func LegacySighash(version int32, inputs []Input, inputIndex int, scriptCode []byte, outputs []Output, locktime uint32, sighashType uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(version))

	buf = append(buf, codec.PutVarInt(uint64(len(inputs)))...)
	for i, in := range inputs {
		buf = append(buf, serializeOutpoint(in.Outpoint)...)
		if i == inputIndex {
			buf = append(buf, codec.PutVarInt(uint64(len(scriptCode)))...)
			buf = append(buf, scriptCode...)
		} else {
			buf = append(buf, codec.PutVarInt(0)...)
		}
		seq := make([]byte, 4)
		binary.LittleEndian.PutUint32(seq, in.Sequence)
		buf = append(buf, seq...)
	}

	buf = append(buf, serializeOutputs(outputs)...)

	lt := make([]byte, 4)
	binary.LittleEndian.PutUint32(lt, locktime)
	buf = append(buf, lt...)

	st := make([]byte, 4)
	binary.LittleEndian.PutUint32(st, sighashType)
	buf = append(buf, st...)

	return codec.Sha256d(buf)
}

// BIP143Sighash computes the witness v0 (P2WPKH) signature digest for
// input inputIndex. scriptCode is the P2PKH script over the input's
// public-key hash, per BIP-143.
func BIP143Sighash(version int32, inputs []Input, inputIndex int, scriptCode []byte, amount int64, outputs []Output, locktime uint32, sighashType uint32) []byte {
	var prevouts, sequences []byte
	for _, in := range inputs {
		prevouts = append(prevouts, serializeOutpoint(in.Outpoint)...)
		seq := make([]byte, 4)
		binary.LittleEndian.PutUint32(seq, in.Sequence)
		sequences = append(sequences, seq...)
	}
	var outputsBytes []byte
	for _, o := range outputs {
		outputsBytes = append(outputsBytes, serializeOutput(o)...)
	}
	hashPrevouts := codec.Sha256d(prevouts)
	hashSequence := codec.Sha256d(sequences)
	hashOutputs := codec.Sha256d(outputsBytes)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(version))
	buf = append(buf, hashPrevouts...)
	buf = append(buf, hashSequence...)
	buf = append(buf, serializeOutpoint(inputs[inputIndex].Outpoint)...)
	buf = append(buf, codec.PutVarInt(uint64(len(scriptCode)))...)
	buf = append(buf, scriptCode...)

	amt := make([]byte, 8)
	binary.LittleEndian.PutUint64(amt, uint64(amount))
	buf = append(buf, amt...)

	seq := make([]byte, 4)
	binary.LittleEndian.PutUint32(seq, inputs[inputIndex].Sequence)
	buf = append(buf, seq...)

	buf = append(buf, hashOutputs...)

	lt := make([]byte, 4)
	binary.LittleEndian.PutUint32(lt, locktime)
	buf = append(buf, lt...)

	st := make([]byte, 4)
	binary.LittleEndian.PutUint32(st, sighashType)
	buf = append(buf, st...)

	return codec.Sha256d(buf)
}

// TaprootSighash computes the BIP-341 key-path signature digest for input
// inputIndex. amounts and scriptPubKeys must have one entry per input,
// in the same order as inputs, reflecting every distinct input's true
// previous amount and scriptPubKey (not just the input being signed).
// sighashType 0 means SIGHASH_DEFAULT.
func TaprootSighash(version int32, inputs []Input, amounts []int64, scriptPubKeys [][]byte, outputs []Output, locktime uint32, inputIndex int, sighashType byte) []byte {
	var prevouts, amountBytes, spkBytes, sequences []byte
	for i, in := range inputs {
		prevouts = append(prevouts, serializeOutpoint(in.Outpoint)...)

		amt := make([]byte, 8)
		binary.LittleEndian.PutUint64(amt, uint64(amounts[i]))
		amountBytes = append(amountBytes, amt...)

		spkBytes = append(spkBytes, codec.PutVarInt(uint64(len(scriptPubKeys[i])))...)
		spkBytes = append(spkBytes, scriptPubKeys[i]...)

		seq := make([]byte, 4)
		binary.LittleEndian.PutUint32(seq, in.Sequence)
		sequences = append(sequences, seq...)
	}

	shaPrevouts := sha256Single(prevouts)
	shaAmounts := sha256Single(amountBytes)
	shaScriptPubKeys := sha256Single(spkBytes)
	shaSequences := sha256Single(sequences)
	var outputsBytes []byte
	for _, o := range outputs {
		outputsBytes = append(outputsBytes, serializeOutput(o)...)
	}
	shaOutputs := sha256Single(outputsBytes)

	msg := []byte{0x00, sighashType}

	ver := make([]byte, 4)
	binary.LittleEndian.PutUint32(ver, uint32(version))
	msg = append(msg, ver...)

	lt := make([]byte, 4)
	binary.LittleEndian.PutUint32(lt, locktime)
	msg = append(msg, lt...)

	msg = append(msg, shaPrevouts...)
	msg = append(msg, shaAmounts...)
	msg = append(msg, shaScriptPubKeys...)
	msg = append(msg, shaSequences...)
	msg = append(msg, shaOutputs...)

	msg = append(msg, 0x00) // spend type: key-path, no annex

	idx := make([]byte, 4)
	binary.LittleEndian.PutUint32(idx, uint32(inputIndex))
	msg = append(msg, idx...)

	return codec.TaggedHash("TapSighash", msg)
}

func sha256Single(b []byte) []byte {
	return codec.Sha256Once(b)
}
