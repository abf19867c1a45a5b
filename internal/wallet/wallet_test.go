package wallet

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/chain"
	"github.com/btctx/engine/internal/codec"
	"github.com/btctx/engine/internal/script"
	"github.com/btctx/engine/internal/signer"
	"github.com/btctx/engine/pkg/helpers"
)

func writeTempWallet(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("write temp wallet: %v", err)
	}
	return path
}

func mainnetParams(t *testing.T) *chain.Params {
	t.Helper()
	p, err := chain.ParamsFor(chain.Mainnet)
	if err != nil {
		t.Fatalf("chain.ParamsFor(mainnet): %v", err)
	}
	return p
}

func TestLoadP2PKHWallet(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 0x01
	pub := signer.DerivePublicKey(priv, true)
	payload := codec.Hash160(pub)
	addr, err := script.EncodeAddress(script.P2PKH, payload, mainnetParams(t))
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}

	jsonStr := `{
		"script_type": "p2pkh",
		"network": "mainnet",
		"private_key_hex": "` + hex.EncodeToString(priv) + `",
		"public_key_hex": "` + hex.EncodeToString(pub) + `",
		"address": "` + addr + `"
	}`
	path := writeTempWallet(t, jsonStr)

	w, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w.ScriptType != TypeP2PKH || w.SingleKey == nil {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if len(w.Payload) != 20 {
		t.Fatalf("expected 20-byte payload, got %d", len(w.Payload))
	}
}

func TestLoadP2PKHWalletRejectsMismatchedPublicKey(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 0x01
	pub := signer.DerivePublicKey(priv, true)
	payload := codec.Hash160(pub)
	addr, err := script.EncodeAddress(script.P2PKH, payload, mainnetParams(t))
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}

	wrongPriv := make([]byte, 32)
	wrongPriv[31] = 0x02
	wrongPub := signer.DerivePublicKey(wrongPriv, true)

	jsonStr := `{
		"script_type": "p2pkh",
		"network": "mainnet",
		"private_key_hex": "` + hex.EncodeToString(priv) + `",
		"public_key_hex": "` + hex.EncodeToString(wrongPub) + `",
		"address": "` + addr + `"
	}`
	path := writeTempWallet(t, jsonStr)

	if _, err := Load(path); !bterr.Is(err, bterr.InvalidWalletDescriptor) {
		t.Fatalf("expected InvalidWalletDescriptor for mismatched public key, got %v", err)
	}
}

func TestLoadP2TRWalletRejectsAddressNotMatchingTweak(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 0x01
	xOnly := signer.DeriveXOnlyPublicKey(priv)

	// A syntactically valid but wrong 32-byte witness program, distinct from
	// the true BIP-341 tweak of xOnly.
	wrongProgram := make([]byte, 32)
	wrongProgram[0] = 0xAB
	addr, err := script.EncodeAddress(script.P2TR, wrongProgram, mainnetParams(t))
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}

	jsonStr := `{
		"script_type": "p2tr",
		"network": "mainnet",
		"private_key_hex": "` + hex.EncodeToString(priv) + `",
		"internal_pubkey_x_hex": "` + hex.EncodeToString(xOnly) + `",
		"address": "` + addr + `"
	}`
	path := writeTempWallet(t, jsonStr)

	if _, err := Load(path); !bterr.Is(err, bterr.InvalidWalletDescriptor) {
		t.Fatalf("expected InvalidWalletDescriptor for address/tweak mismatch, got %v", err)
	}
}

func TestLoadP2TRWallet(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 0x01
	xOnly := signer.DeriveXOnlyPublicKey(priv)
	outputKey, err := signer.TaprootOutputKey(xOnly)
	if err != nil {
		t.Fatalf("taproot output key: %v", err)
	}
	addr, err := script.EncodeAddress(script.P2TR, outputKey, mainnetParams(t))
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}

	jsonStr := `{
		"script_type": "p2tr",
		"network": "mainnet",
		"private_key_hex": "` + hex.EncodeToString(priv) + `",
		"internal_pubkey_x_hex": "` + hex.EncodeToString(xOnly) + `",
		"address": "` + addr + `"
	}`
	path := writeTempWallet(t, jsonStr)

	w, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w.ScriptType != TypeP2TR || w.SingleKey == nil {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if len(w.Payload) != 32 {
		t.Fatalf("expected 32-byte payload, got %d", len(w.Payload))
	}
}

func TestLoadP2SHMultisigWallet(t *testing.T) {
	priv1 := make([]byte, 32)
	priv1[31] = 0x01
	pub1 := signer.DerivePublicKey(priv1, true)

	priv2 := make([]byte, 32)
	priv2[31] = 0x02
	pub2 := signer.DerivePublicKey(priv2, true)

	// BIP-67 requires strict ascending order; swap if needed.
	if helpers.CompareBytes(pub1, pub2) > 0 {
		pub1, pub2 = pub2, pub1
		priv1, priv2 = priv2, priv1
	}

	redeem := append([]byte{0x52, 0x21}, pub1...)
	redeem = append(redeem, 0x21)
	redeem = append(redeem, pub2...)
	redeem = append(redeem, 0x52, 0xae)

	addr, err := script.EncodeAddress(script.P2SH, codec.Hash160(redeem), mainnetParams(t))
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}

	jsonStr := `{
		"script_type": "p2sh-multisig",
		"address": "` + addr + `",
		"redeem_script_hex": "` + hex.EncodeToString(redeem) + `",
		"m": 2,
		"n": 2,
		"participants": [
			{"private_key_hex": "` + hex.EncodeToString(priv1) + `", "public_key_hex": "` + hex.EncodeToString(pub1) + `"},
			{"public_key_hex": "` + hex.EncodeToString(pub2) + `"}
		]
	}`
	path := writeTempWallet(t, jsonStr)

	w, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w.Multisig == nil {
		t.Fatalf("expected multisig wallet")
	}
	if w.Multisig.M != 2 || w.Multisig.N != 2 {
		t.Fatalf("unexpected m-of-n: %d-of-%d", w.Multisig.M, w.Multisig.N)
	}
	if len(w.Multisig.ParticipantKeys) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(w.Multisig.ParticipantKeys))
	}
	if w.Multisig.ParticipantKeys[1].PrivateKey != nil {
		t.Fatalf("expected second participant to have no private key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/wallet.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	priv := make([]byte, 32)
	priv[31] = 0x01
	pub := signer.DerivePublicKey(priv, true)
	payload := codec.Hash160(pub)
	addr, err := script.EncodeAddress(script.P2WPKH, payload, &chain.Params{
		Network:   chain.Testnet,
		Bech32HRP: "tb",
	})
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}

	w := &Wallet{
		ScriptType: TypeP2WPKH,
		Network:    "testnet",
		Address:    addr,
		Payload:    payload,
		SingleKey:  &SingleKeyWallet{PrivateKey: priv, PublicKey: pub},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	if err := Save(path, w); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ScriptType != TypeP2WPKH {
		t.Fatalf("script type mismatch after round trip")
	}
}
