package utxo

import (
	"testing"

	"github.com/btctx/engine/internal/script"
)

func TestSelectExactCoverage(t *testing.T) {
	candidates := []UTXO{
		{TxID: "a", Amount: 100000},
		{TxID: "b", Amount: 50000},
		{TxID: "c", Amount: 10000},
	}
	sel, err := Select(candidates, 90000, 1.0, script.P2WPKH)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(sel.Inputs) != 1 {
		t.Fatalf("expected single input to cover target, got %d", len(sel.Inputs))
	}
	if sel.Total != 100000 {
		t.Fatalf("unexpected total: %d", sel.Total)
	}
}

func TestSelectInsufficientFunds(t *testing.T) {
	candidates := []UTXO{{TxID: "a", Amount: 1000}}
	_, err := Select(candidates, 90000, 1.0, script.P2WPKH)
	if err == nil {
		t.Fatalf("expected insufficient funds error")
	}
}

func TestSelectDustChangeFoldedIntoFee(t *testing.T) {
	// Craft a target so the residual change would land under DustLimit.
	candidates := []UTXO{{TxID: "a", Amount: 100200}}
	sel, err := Select(candidates, 100000-400, 1.0, script.P2WPKH)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Change != 0 {
		t.Fatalf("expected dust change folded into fee, got change=%d", sel.Change)
	}
}

func TestEstimateFeeMatchesFormula(t *testing.T) {
	fee := EstimateFee(2, script.P2PKH, 2, 1.0)
	// ceil(10 + 2*148 + 2*34) = ceil(374) = 374
	if fee != 374 {
		t.Fatalf("unexpected fee: %d", fee)
	}
}
