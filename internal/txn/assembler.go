package txn

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/oracle"
	"github.com/btctx/engine/internal/script"
	"github.com/btctx/engine/internal/sighash"
	"github.com/btctx/engine/internal/signer"
	"github.com/btctx/engine/internal/utxo"
	"github.com/btctx/engine/internal/wallet"
	"github.com/btctx/engine/pkg/logging"
)

// maxFeeIterations bounds the fee-convergence loop; vsize stabilizes well
// before this in practice since it only depends on input/output counts and
// bounded signature widths.
const maxFeeIterations = 10

// initialFeeStub is the fee-convergence loop's starting guess, in satoshi.
const initialFeeStub = 200

// Result is a finished, signed transaction ready for broadcast.
type Result struct {
	Transaction *Transaction
	Fee         int64
	Change      int64
}

// Build assembles and signs a transaction spending inputs (all assumed to
// belong to w) to destSPK for destAmount, converging the fee against
// feeRate (sat/vB) by repeatedly rebuilding and resigning the skeleton, per
// the engine's fee-convergence loop.
func Build(ctx context.Context, client *oracle.Client, w *wallet.Wallet, inputs []utxo.UTXO, destSPK []byte, destAmount int64, feeRate float64, log *logging.Logger) (*Result, error) {
	if len(inputs) == 0 {
		return nil, bterr.New(bterr.InsufficientFunds, "no inputs provided to build transaction")
	}

	prevOuts, err := fetchPrevOutputs(ctx, client, inputs)
	if err != nil {
		return nil, err
	}

	changeSPK, err := w.ScriptPubKey()
	if err != nil {
		return nil, err
	}

	var totalIn int64
	for _, u := range inputs {
		totalIn += u.Amount
	}

	fee := int64(initialFeeStub)
	var final *Transaction
	var finalChange int64
	var finalFee int64

	for iter := 0; iter < maxFeeIterations; iter++ {
		change := totalIn - destAmount - fee
		if change < 0 {
			return nil, bterr.New(bterr.InsufficientFunds,
				fmt.Sprintf("insufficient funds: inputs total %d sat, need %d sat (amount %d + fee %d)",
					totalIn, destAmount+fee, destAmount, fee))
		}

		// Dust change isn't worth minting a UTXO for; fold it into the fee
		// so inputs still exactly balance outputs+fee.
		includeChange := change >= utxo.DustLimit
		actualFee := fee
		if !includeChange {
			actualFee = totalIn - destAmount
			change = 0
		}

		tx, err := buildSkeleton(inputs, destSPK, destAmount, changeSPK, change, includeChange)
		if err != nil {
			return nil, err
		}

		if err := signAll(tx, prevOuts, w); err != nil {
			return nil, err
		}

		vsize := tx.Vsize()
		newFee := int64(math.Ceil(float64(vsize) * feeRate))

		if log != nil {
			log.Debug("fee convergence iteration", "iter", iter, "fee", fee, "new_fee", newFee, "vsize", vsize)
		}

		if newFee == fee {
			final = tx
			finalChange = change
			finalFee = actualFee
			break
		}
		fee = newFee
		final = tx
		finalChange = change
		finalFee = actualFee
	}

	if final == nil {
		return nil, bterr.New(bterr.InsufficientFunds, "fee convergence loop produced no transaction")
	}
	return &Result{Transaction: final, Fee: finalFee, Change: finalChange}, nil
}

func buildSkeleton(inputs []utxo.UTXO, destSPK []byte, destAmount int64, changeSPK []byte, change int64, includeChange bool) (*Transaction, error) {
	tx := &Transaction{Version: 1, Locktime: 0}
	for _, u := range inputs {
		txid, err := TxIDFromHex(u.TxID)
		if err != nil {
			// Nothing upstream validates u.TxID; a malformed one can only come
			// from the oracle's listunspent data.
			return nil, err
		}
		tx.Inputs = append(tx.Inputs, Input{
			Outpoint: Outpoint{TxID: txid, Vout: u.Vout},
			Sequence: 0xFFFFFFFF,
		})
	}

	tx.Outputs = append(tx.Outputs, Output{Value: destAmount, ScriptPubKey: destSPK})
	if includeChange {
		tx.Outputs = append(tx.Outputs, Output{Value: change, ScriptPubKey: changeSPK})
	}
	return tx, nil
}

// signAll installs scriptSig or witness data into every input of tx,
// dispatching on each input's true previous scriptPubKey family.
func signAll(tx *Transaction, prevOuts []Output, w *wallet.Wallet) error {
	amounts := make([]int64, len(prevOuts))
	spks := make([][]byte, len(prevOuts))
	for i, p := range prevOuts {
		amounts[i] = p.Value
		spks[i] = p.ScriptPubKey
	}

	sighashInputs := tx.sighashInputs()

	for i := range tx.Inputs {
		prevOut := prevOuts[i]
		family := script.FamilyFromSPK(prevOut.ScriptPubKey).Family

		switch family {
		case script.P2PKH:
			sk := w.SingleKey
			if sk == nil {
				return bterr.New(bterr.InvalidWalletDescriptor, "p2pkh input requires a single-key wallet")
			}
			digest := sighash.LegacySighash(tx.Version, sighashInputs, i, prevOut.ScriptPubKey, tx.Outputs, tx.Locktime, sighash.SighashAll)
			scriptSig, err := signer.SignP2PKH(sk.PrivateKey, sk.PublicKey, digest)
			if err != nil {
				return err
			}
			tx.Inputs[i].ScriptSig = scriptSig

		case script.P2PK:
			sk := w.SingleKey
			if sk == nil {
				return bterr.New(bterr.InvalidWalletDescriptor, "p2pk input requires a single-key wallet")
			}
			digest := sighash.LegacySighash(tx.Version, sighashInputs, i, prevOut.ScriptPubKey, tx.Outputs, tx.Locktime, sighash.SighashAll)
			scriptSig, err := signer.SignP2PK(sk.PrivateKey, digest)
			if err != nil {
				return err
			}
			tx.Inputs[i].ScriptSig = scriptSig

		case script.P2WPKH:
			sk := w.SingleKey
			if sk == nil {
				return bterr.New(bterr.InvalidWalletDescriptor, "p2wpkh input requires a single-key wallet")
			}
			scriptCode, err := script.BuildP2PKH(w.Payload)
			if err != nil {
				return err
			}
			digest := sighash.BIP143Sighash(tx.Version, sighashInputs, i, scriptCode, prevOut.Value, tx.Outputs, tx.Locktime, sighash.SighashAll)
			witness, err := signer.SignP2WPKH(sk.PrivateKey, sk.PublicKey, digest)
			if err != nil {
				return err
			}
			tx.Inputs[i].Witness = witness

		case script.P2TR:
			sk := w.SingleKey
			if sk == nil {
				return bterr.New(bterr.InvalidWalletDescriptor, "p2tr input requires a single-key wallet")
			}
			digest := sighash.TaprootSighash(tx.Version, sighashInputs, amounts, spks, tx.Outputs, tx.Locktime, i, 0)
			witness, err := signer.SignP2TRKeyPath(sk.PrivateKey, digest)
			if err != nil {
				return err
			}
			tx.Inputs[i].Witness = witness

		case script.P2SH:
			mw := w.Multisig
			if mw == nil {
				return bterr.New(bterr.InvalidWalletDescriptor, "p2sh input requires a multisig wallet")
			}
			digest := sighash.LegacySighash(tx.Version, sighashInputs, i, mw.RedeemScript, tx.Outputs, tx.Locktime, sighash.SighashAll)
			var privKeys [][]byte
			for _, pk := range mw.ParticipantKeys {
				if pk.PrivateKey != nil {
					privKeys = append(privKeys, pk.PrivateKey)
				}
			}
			scriptSig, err := signer.SignP2SHMultisig(privKeys, mw.RedeemScript, mw.M, digest)
			if err != nil {
				return err
			}
			tx.Inputs[i].ScriptSig = scriptSig

		default:
			return bterr.New(bterr.InvalidScript, "cannot sign input: unrecognised previous scriptPubKey family")
		}
	}

	return nil
}

// fetchPrevOutputs resolves each input's previous output (value and
// scriptPubKey) by fetching and parsing its containing transaction from
// the oracle, caching by txid since a wallet commonly spends several
// outputs of the same previous transaction.
func fetchPrevOutputs(ctx context.Context, client *oracle.Client, inputs []utxo.UTXO) ([]Output, error) {
	cache := make(map[string]*Transaction)
	out := make([]Output, len(inputs))

	for i, u := range inputs {
		prevTx, ok := cache[u.TxID]
		if !ok {
			rawHex, err := client.GetTransaction(ctx, u.TxID)
			if err != nil {
				return nil, err
			}
			raw, err := hex.DecodeString(rawHex)
			if err != nil {
				return nil, bterr.Wrap(bterr.OracleError, "prevout: decode transaction hex", err)
			}
			prevTx, err = Deserialize(raw)
			if err != nil {
				return nil, err
			}
			cache[u.TxID] = prevTx
		}

		if int(u.Vout) >= len(prevTx.Outputs) {
			return nil, bterr.New(bterr.OracleError, fmt.Sprintf("prevout: vout %d out of range for txid %s", u.Vout, u.TxID))
		}
		out[i] = prevTx.Outputs[u.Vout]
	}

	return out, nil
}
