// Package txn models a Bitcoin transaction, serializes it in both its
// stripped and SegWit witness forms, and assembles + signs spends across
// the five script families this engine supports, converging on a fee via
// repeated vsize recomputation.
package txn

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/codec"
	"github.com/btctx/engine/internal/sighash"
)

// Outpoint and Output are shared verbatim with the sighash package: the
// digest functions and the serializer must agree byte-for-byte on their
// wire shape, so there is exactly one definition of each.
type Outpoint = sighash.Outpoint
type Output = sighash.Output

// Input is one transaction input: its outpoint, scriptSig (empty for a
// witness-spent input in the final serialization), sequence number, and
// witness stack (nil for a non-witness input).
type Input struct {
	Outpoint  Outpoint
	ScriptSig []byte
	Sequence  uint32
	Witness   [][]byte
}

func (in Input) sighashInput() sighash.Input {
	return sighash.Input{Outpoint: in.Outpoint, Sequence: in.Sequence}
}

// Transaction is the unit this engine builds, signs, and serializes.
type Transaction struct {
	Version  int32
	Inputs   []Input
	Outputs  []Output
	Locktime uint32
}

// HasWitness reports whether any input carries a non-empty witness stack,
// the condition under which the serializer emits the SegWit marker+flag.
func (tx *Transaction) HasWitness() bool {
	for _, in := range tx.Inputs {
		if len(in.Witness) > 0 {
			return true
		}
	}
	return false
}

func (tx *Transaction) sighashInputs() []sighash.Input {
	out := make([]sighash.Input, len(tx.Inputs))
	for i, in := range tx.Inputs {
		out[i] = in.sighashInput()
	}
	return out
}

// SerializeStripped renders the transaction without any witness data:
// version || vi(n_in) || inputs || vi(n_out) || outputs || locktime.
func (tx *Transaction) SerializeStripped() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(tx.Version))

	buf = append(buf, codec.PutVarInt(uint64(len(tx.Inputs)))...)
	for _, in := range tx.Inputs {
		buf = append(buf, in.Outpoint.TxID[:]...)
		voutBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(voutBytes, in.Outpoint.Vout)
		buf = append(buf, voutBytes...)
		buf = append(buf, codec.PutVarInt(uint64(len(in.ScriptSig)))...)
		buf = append(buf, in.ScriptSig...)
		seqBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(seqBytes, in.Sequence)
		buf = append(buf, seqBytes...)
	}

	buf = append(buf, codec.PutVarInt(uint64(len(tx.Outputs)))...)
	for _, out := range tx.Outputs {
		valBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(valBytes, uint64(out.Value))
		buf = append(buf, valBytes...)
		buf = append(buf, codec.PutVarInt(uint64(len(out.ScriptPubKey)))...)
		buf = append(buf, out.ScriptPubKey...)
	}

	lt := make([]byte, 4)
	binary.LittleEndian.PutUint32(lt, tx.Locktime)
	buf = append(buf, lt...)
	return buf
}

// SerializeWitness renders the full SegWit form: version || 0x00 0x01 ||
// vi(n_in) || inputs || vi(n_out) || outputs || witnesses || locktime.
func (tx *Transaction) SerializeWitness() []byte {
	stripped := tx.SerializeStripped()

	// Splice the marker+flag in right after the 4-byte version field, then
	// append the per-input witness stacks before the locktime.
	buf := make([]byte, 0, len(stripped)+2)
	buf = append(buf, stripped[:4]...)
	buf = append(buf, 0x00, 0x01)
	buf = append(buf, stripped[4:len(stripped)-4]...)

	for _, in := range tx.Inputs {
		buf = append(buf, codec.PutVarInt(uint64(len(in.Witness)))...)
		for _, item := range in.Witness {
			buf = append(buf, codec.PutVarInt(uint64(len(item)))...)
			buf = append(buf, item...)
		}
	}

	buf = append(buf, stripped[len(stripped)-4:]...)
	return buf
}

// Serialize picks the witness form iff any input carries a witness stack,
// otherwise the stripped form.
func (tx *Transaction) Serialize() []byte {
	if tx.HasWitness() {
		return tx.SerializeWitness()
	}
	return tx.SerializeStripped()
}

// SerializeHex is Serialize, hex-encoded, the form the oracle's broadcast
// call and block explorers expect.
func (tx *Transaction) SerializeHex() string {
	return hex.EncodeToString(tx.Serialize())
}

// Weight is 4*stripped_size + witness_size (0 when no witness is present).
func (tx *Transaction) Weight() int {
	stripped := len(tx.SerializeStripped())
	if !tx.HasWitness() {
		return stripped * 4
	}
	total := len(tx.SerializeWitness())
	return stripped*4 + (total - stripped)
}

// Vsize is ceil(weight/4), the unit fee rates are expressed in.
func (tx *Transaction) Vsize() int {
	w := tx.Weight()
	return (w + 3) / 4
}

// TxID computes the double-SHA256 of the stripped serialization, in
// internal (little-endian) byte order — txid and wtxid are both immune to
// witness data for the former, and this engine never needs the latter.
func (tx *Transaction) TxID() chainhash.Hash {
	digest := codec.Sha256d(tx.SerializeStripped())
	var out chainhash.Hash
	copy(out[:], digest)
	return out
}

// TxIDHex renders TxID in the conventional reversed display order.
func (tx *Transaction) TxIDHex() string {
	id := tx.TxID()
	return id.String()
}

// TxIDFromHex parses a display-order (big-endian) txid string into the
// internal little-endian byte order transactions reference their inputs by.
func TxIDFromHex(s string) (chainhash.Hash, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, bterr.Wrap(bterr.InvalidScript, "txid: invalid hex", err)
	}
	return *h, nil
}

// Deserialize parses a raw transaction, stripped or witness form, as
// returned by the oracle's blockchain.transaction.get. It is used to read
// a previous output's value and scriptPubKey when building a new spend.
func Deserialize(raw []byte) (*Transaction, error) {
	if len(raw) < 10 {
		return nil, bterr.New(bterr.InvalidScript, "transaction: too short to parse")
	}

	tx := &Transaction{}
	i := 0
	tx.Version = int32(binary.LittleEndian.Uint32(raw[i : i+4]))
	i += 4

	witnessFlag := false
	if raw[i] == 0x00 && i+1 < len(raw) && raw[i+1] == 0x01 {
		witnessFlag = true
		i += 2
	}

	nIn, next, err := codec.ReadVarInt(raw, i)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidScript, "transaction: read input count", err)
	}
	i = next

	tx.Inputs = make([]Input, nIn)
	for n := 0; n < int(nIn); n++ {
		if i+36 > len(raw) {
			return nil, bterr.New(bterr.InvalidScript, "transaction: truncated outpoint")
		}
		var in Input
		copy(in.Outpoint.TxID[:], raw[i:i+32])
		in.Outpoint.Vout = binary.LittleEndian.Uint32(raw[i+32 : i+36])
		i += 36

		scriptLen, next, err := codec.ReadVarInt(raw, i)
		if err != nil {
			return nil, bterr.Wrap(bterr.InvalidScript, "transaction: read scriptSig length", err)
		}
		i = next
		if i+int(scriptLen) > len(raw) {
			return nil, bterr.New(bterr.InvalidScript, "transaction: truncated scriptSig")
		}
		in.ScriptSig = append([]byte{}, raw[i:i+int(scriptLen)]...)
		i += int(scriptLen)

		if i+4 > len(raw) {
			return nil, bterr.New(bterr.InvalidScript, "transaction: truncated sequence")
		}
		in.Sequence = binary.LittleEndian.Uint32(raw[i : i+4])
		i += 4

		tx.Inputs[n] = in
	}

	nOut, next, err := codec.ReadVarInt(raw, i)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidScript, "transaction: read output count", err)
	}
	i = next

	tx.Outputs = make([]Output, nOut)
	for n := 0; n < int(nOut); n++ {
		if i+8 > len(raw) {
			return nil, bterr.New(bterr.InvalidScript, "transaction: truncated output value")
		}
		value := int64(binary.LittleEndian.Uint64(raw[i : i+8]))
		i += 8

		spkLen, next, err := codec.ReadVarInt(raw, i)
		if err != nil {
			return nil, bterr.Wrap(bterr.InvalidScript, "transaction: read scriptPubKey length", err)
		}
		i = next
		if i+int(spkLen) > len(raw) {
			return nil, bterr.New(bterr.InvalidScript, "transaction: truncated scriptPubKey")
		}
		spk := append([]byte{}, raw[i:i+int(spkLen)]...)
		i += int(spkLen)

		tx.Outputs[n] = Output{Value: value, ScriptPubKey: spk}
	}

	if witnessFlag {
		for n := 0; n < int(nIn); n++ {
			stackLen, next, err := codec.ReadVarInt(raw, i)
			if err != nil {
				return nil, bterr.Wrap(bterr.InvalidScript, "transaction: read witness stack length", err)
			}
			i = next
			stack := make([][]byte, stackLen)
			for s := 0; s < int(stackLen); s++ {
				itemLen, next, err := codec.ReadVarInt(raw, i)
				if err != nil {
					return nil, bterr.Wrap(bterr.InvalidScript, "transaction: read witness item length", err)
				}
				i = next
				if i+int(itemLen) > len(raw) {
					return nil, bterr.New(bterr.InvalidScript, "transaction: truncated witness item")
				}
				stack[s] = append([]byte{}, raw[i:i+int(itemLen)]...)
				i += int(itemLen)
			}
			tx.Inputs[n].Witness = stack
		}
	}

	if i+4 > len(raw) {
		return nil, bterr.New(bterr.InvalidScript, "transaction: truncated locktime")
	}
	tx.Locktime = binary.LittleEndian.Uint32(raw[i : i+4])

	return tx, nil
}
