// Package utxo collects spendable outputs for a wallet from the oracle and
// selects a subset to fund a payment.
package utxo

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/oracle"
	"github.com/btctx/engine/internal/script"
	"github.com/btctx/engine/internal/wallet"
)

// DustLimit is the minimum change output value this engine will create; a
// residual below this is folded into the fee instead.
const DustLimit = 546

// DefaultFeeRate is used when no explicit fee rate is configured.
const DefaultFeeRate = 1.0

// InputWeight estimates the selector uses per spending family. These are
// selection-time estimates, not the exact vsize of a signed input.
var InputWeight = map[script.Family]float64{
	script.P2PKH:  148,
	script.P2WPKH: 68,
	script.P2PK:   114,
	script.P2SH:   520, // reference 3-of-5 multisig redeem script
	script.P2TR:   57.25,
}

// OutputSize holds per-destination-family output size estimates. EstimateFee
// does not consult it; it charges a flat 34 vbytes per output.
var OutputSize = map[script.Family]float64{
	script.P2PKH:  34,
	script.P2WPKH: 31,
	script.P2PK:   35,
	script.P2SH:   32,
	script.P2TR:   43,
}

// UTXO is one spendable output, as surfaced by the collector.
type UTXO struct {
	TxID    string
	Vout    uint32
	Amount  int64
	Height  int64
	Address string
}

// IsConfirmed reports whether the UTXO has been mined (height > 0).
func (u UTXO) IsConfirmed() bool {
	return u.Height > 0
}

// Collector queries the oracle for a wallet's unspent outputs.
type Collector struct {
	client *oracle.Client
}

// NewCollector builds a Collector backed by client.
func NewCollector(client *oracle.Client) *Collector {
	return &Collector{client: client}
}

// Collect returns every UTXO that could fund a spend from w, merged and
// sorted by amount descending. A legacy-keyed wallet (p2pkh or p2wpkh)
// shares one pubkey hash between both families, so funds may sit at
// either scripthash; this queries both. P2PK, P2SH-multisig, and P2TR
// wallets have a single unambiguous scriptPubKey and query just that one.
func (c *Collector) Collect(ctx context.Context, w *wallet.Wallet) ([]UTXO, error) {
	scriptHashes, err := c.scriptHashesFor(w)
	if err != nil {
		return nil, err
	}

	var utxos []UTXO
	seen := make(map[string]bool)
	for _, scriptHash := range scriptHashes {
		entries, err := c.client.ListUnspent(ctx, scriptHash)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			key := fmt.Sprintf("%s:%d", e.TxHash, e.TxPos)
			if seen[key] {
				continue
			}
			seen[key] = true
			utxos = append(utxos, UTXO{
				TxID:    e.TxHash,
				Vout:    e.TxPos,
				Amount:  e.Value,
				Height:  e.Height,
				Address: w.Address,
			})
		}
	}
	sort.Slice(utxos, func(i, j int) bool { return utxos[i].Amount > utxos[j].Amount })
	return utxos, nil
}

// scriptHashesFor derives every scripthash that could hold w's funds:
// P2PKH and P2WPKH over the same pubkey hash for a legacy-keyed wallet,
// or the wallet's single declared scriptPubKey for every other family.
func (c *Collector) scriptHashesFor(w *wallet.Wallet) ([]string, error) {
	switch w.Family() {
	case script.P2PKH, script.P2WPKH:
		p2pkh, err := script.BuildP2PKH(w.Payload)
		if err != nil {
			return nil, err
		}
		p2wpkh, err := script.BuildP2WPKH(w.Payload)
		if err != nil {
			return nil, err
		}
		return []string{oracle.ScriptHash(p2pkh), oracle.ScriptHash(p2wpkh)}, nil
	default:
		spk, err := w.ScriptPubKey()
		if err != nil {
			return nil, err
		}
		return []string{oracle.ScriptHash(spk)}, nil
	}
}

// GetBalance sums the confirmed+unconfirmed balance the oracle reports
// across every scripthash w's funds could sit at, in satoshis.
func (c *Collector) GetBalance(ctx context.Context, w *wallet.Wallet) (int64, error) {
	scriptHashes, err := c.scriptHashesFor(w)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, scriptHash := range scriptHashes {
		bal, err := c.client.GetBalance(ctx, scriptHash)
		if err != nil {
			return 0, err
		}
		total += bal.Confirmed + bal.Unconfirmed
	}
	return total, nil
}

// EstimateFee computes the selector's running fee estimate for spending
// nInputs inputs of family inputFamily into nOutputs outputs (including
// change) at feeRate sat/vB.
func EstimateFee(nInputs int, inputFamily script.Family, nOutputs int, feeRate float64) int64 {
	weight := InputWeight[inputFamily]
	if weight == 0 {
		weight = InputWeight[script.P2PKH]
	}
	vsize := 10 + float64(nInputs)*weight + float64(nOutputs)*34
	return int64(math.Ceil(vsize * feeRate))
}

// Selection is the result of a successful selection.
type Selection struct {
	Inputs  []UTXO
	Total   int64
	Fee     int64
	Change  int64 // 0 if the residual was folded into Fee as dust
}

// Select runs the greedy largest-first strategy: add candidates (assumed
// pre-sorted by amount descending) until the running total covers the
// target amount plus the fee estimate for the inputs selected so far,
// assuming a two-output transaction (destination + change). If the
// resulting change would be below DustLimit, it is folded into the fee
// instead of creating a change output.
func Select(candidates []UTXO, targetAmount int64, feeRate float64, inputFamily script.Family) (*Selection, error) {
	var selected []UTXO
	var total int64

	for _, u := range candidates {
		selected = append(selected, u)
		total += u.Amount

		fee := EstimateFee(len(selected), inputFamily, 2, feeRate)
		if total >= targetAmount+fee {
			change := total - targetAmount - fee
			if change > 0 && change < DustLimit {
				fee += change
				change = 0
			}
			return &Selection{Inputs: selected, Total: total, Fee: fee, Change: change}, nil
		}
	}

	fee := EstimateFee(len(selected), inputFamily, 2, feeRate)
	return nil, bterr.New(bterr.InsufficientFunds,
		fmt.Sprintf("insufficient funds: available %d sat, required %d sat (target %d + fee %d)",
			total, targetAmount+fee, targetAmount, fee))
}
