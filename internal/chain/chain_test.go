package chain

import "testing"

func TestMainnetParams(t *testing.T) {
	p, err := ParamsFor(Mainnet)
	if err != nil {
		t.Fatalf("ParamsFor: %v", err)
	}
	if p.PubKeyHashAddrID != 0x00 || p.ScriptHashAddrID != 0x05 || p.WIFByte != 0x80 || p.Bech32HRP != "bc" {
		t.Fatalf("unexpected mainnet params: %+v", p)
	}
}

func TestTestnetParams(t *testing.T) {
	p, err := ParamsFor(Testnet)
	if err != nil {
		t.Fatalf("ParamsFor: %v", err)
	}
	if p.PubKeyHashAddrID != 0x6f || p.ScriptHashAddrID != 0xc4 || p.WIFByte != 0xef || p.Bech32HRP != "tb" {
		t.Fatalf("unexpected testnet params: %+v", p)
	}
}

func TestParamsForHRP(t *testing.T) {
	p, err := ParamsForHRP("bcrt")
	if err != nil {
		t.Fatalf("ParamsForHRP: %v", err)
	}
	if p.Network != Regtest {
		t.Fatalf("expected regtest, got %s", p.Network)
	}
}

func TestUnknownNetwork(t *testing.T) {
	if _, err := ParamsFor("mutinynet"); err == nil {
		t.Fatalf("expected error for unknown network")
	}
}
