// Package wallet loads and saves the JSON wallet descriptors this engine
// signs with, and classifies them into the tagged variants the signer
// dispatches on.
package wallet

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/codec"
	"github.com/btctx/engine/internal/script"
	"github.com/btctx/engine/internal/signer"
	"github.com/btctx/engine/pkg/helpers"
)

// ScriptType names the on-disk script_type field.
type ScriptType string

const (
	TypeP2PK           ScriptType = "p2pk"
	TypeP2PKH          ScriptType = "p2pkh"
	TypeP2WPKH         ScriptType = "p2wpkh"
	TypeP2TR           ScriptType = "p2tr"
	TypeP2SHMultisig   ScriptType = "p2sh-multisig"
)

// Participant is one co-signer of a P2SH multisig wallet.
type Participant struct {
	PrivateKeyHex string `json:"private_key_hex,omitempty"`
	PublicKeyHex  string `json:"public_key_hex"`
}

// descriptor is the on-disk JSON shape. Field presence varies by ScriptType,
// mirroring the variant layout the original tooling wrote by hand.
type descriptor struct {
	ScriptType        ScriptType    `json:"script_type"`
	Network           string        `json:"network,omitempty"`
	PrivateKeyHex     string        `json:"private_key_hex,omitempty"`
	PublicKeyHex      string        `json:"public_key_hex,omitempty"`
	InternalPubKeyHex string        `json:"internal_pubkey_x_hex,omitempty"`
	Address           string        `json:"address,omitempty"`
	RedeemScriptHex   string        `json:"redeem_script_hex,omitempty"`
	M                 int           `json:"m,omitempty"`
	N                 int           `json:"n,omitempty"`
	Participants      []Participant `json:"participants,omitempty"`
}

// Wallet is the tagged variant a loaded descriptor resolves to. Exactly one
// of SingleKey or Multisig is non-nil.
type Wallet struct {
	ScriptType ScriptType
	Network    string
	Address    string
	// Payload is the scriptPubKey's classifying payload: a 20-byte hash for
	// P2PKH/P2WPKH/P2SH, a 32-byte output key for P2TR, or the raw public
	// key for P2PK.
	Payload []byte

	SingleKey *SingleKeyWallet
	Multisig  *MultisigWallet
}

// SingleKeyWallet holds the one keypair that signs P2PK, P2PKH, P2WPKH and
// P2TR spends. For P2TR, PublicKey is the 32-byte x-only internal key.
type SingleKeyWallet struct {
	PrivateKey []byte
	PublicKey  []byte
}

// MultisigWallet holds the m-of-n co-signer set and redeem script for a
// P2SH multisig spend. Keys appear in the order BIP-67 would sort them;
// this engine trusts the descriptor's own ordering rather than re-sorting.
type MultisigWallet struct {
	M              int
	N              int
	RedeemScript   []byte
	ParticipantKeys []ParticipantKey
}

// ParticipantKey is one co-signer's key material. PrivateKey is nil for
// participants this engine cannot sign with.
type ParticipantKey struct {
	PrivateKey []byte
	PublicKey  []byte
}

// Load reads and parses a wallet descriptor from path.
func Load(path string) (*Wallet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "read wallet file", err)
	}

	var d descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "parse wallet json", err)
	}
	if d.ScriptType == "" {
		d.ScriptType = TypeP2PKH
	}

	if strings.HasPrefix(string(d.ScriptType), "p2sh") {
		return loadMultisig(&d)
	}
	return loadSingleKey(&d)
}

func loadMultisig(d *descriptor) (*Wallet, error) {
	if len(d.Participants) == 0 {
		return nil, bterr.New(bterr.InvalidWalletDescriptor, "p2sh multisig wallet requires participants")
	}
	redeemScript, err := hex.DecodeString(d.RedeemScriptHex)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "decode redeem_script_hex", err)
	}

	m, n := d.M, d.N
	if m == 0 {
		m = 2
	}
	if n == 0 {
		n = 3
	}
	if m < 1 || n > 16 || m > n {
		return nil, bterr.New(bterr.InvalidWalletDescriptor,
			fmt.Sprintf("p2sh multisig: m=%d n=%d violates 1<=m<=n<=16", m, n))
	}
	if len(d.Participants) != n {
		return nil, bterr.New(bterr.InvalidWalletDescriptor,
			fmt.Sprintf("p2sh multisig: descriptor declares n=%d but lists %d participants", n, len(d.Participants)))
	}

	keys := make([]ParticipantKey, 0, len(d.Participants))
	for _, p := range d.Participants {
		pub, err := hex.DecodeString(p.PublicKeyHex)
		if err != nil {
			return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "decode participant public_key_hex", err)
		}
		var priv []byte
		if p.PrivateKeyHex != "" {
			priv, err = hex.DecodeString(p.PrivateKeyHex)
			if err != nil {
				return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "decode participant private_key_hex", err)
			}
			if len(priv) != 32 || helpers.IsZeroBytes(priv) {
				return nil, bterr.New(bterr.InvalidWalletDescriptor, "participant private_key_hex must be a 32-byte nonzero scalar")
			}
			derived := signer.DerivePublicKey(priv, len(pub) == 33)
			if !bytes.Equal(derived, pub) {
				return nil, bterr.New(bterr.InvalidWalletDescriptor, "participant private_key_hex does not derive public_key_hex")
			}
		}
		keys = append(keys, ParticipantKey{PrivateKey: priv, PublicKey: pub})
	}
	if err := checkBIP67Order(keys); err != nil {
		return nil, err
	}
	scriptKeys, err := signer.ParseMultisigRedeemScript(redeemScript)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "parse redeem_script_hex", err)
	}
	if len(scriptKeys) != len(keys) {
		return nil, bterr.New(bterr.InvalidWalletDescriptor, "redeem_script_hex does not list the participants' public keys")
	}
	for i, k := range keys {
		if !bytes.Equal(scriptKeys[i], k.PublicKey) {
			return nil, bterr.New(bterr.InvalidWalletDescriptor, "redeem_script_hex does not list the participants' public keys")
		}
	}

	addr := strings.TrimSpace(d.Address)
	decoded, err := script.DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(codec.Hash160(redeemScript), decoded.Payload) {
		return nil, bterr.New(bterr.InvalidWalletDescriptor, "redeem_script_hex does not match the wallet address")
	}

	return &Wallet{
		ScriptType: d.ScriptType,
		Network:    d.Network,
		Address:    addr,
		Payload:    decoded.Payload,
		Multisig: &MultisigWallet{
			M:               m,
			N:               n,
			RedeemScript:    redeemScript,
			ParticipantKeys: keys,
		},
	}, nil
}

// checkBIP67Order rejects a participant list whose public keys are not in
// strictly ascending lexicographic order, the canonical ordering BIP-67
// requires a multisig redeem script's pubkeys to appear in.
func checkBIP67Order(keys []ParticipantKey) error {
	for i := 1; i < len(keys); i++ {
		if helpers.CompareBytes(keys[i-1].PublicKey, keys[i].PublicKey) >= 0 {
			return bterr.New(bterr.InvalidWalletDescriptor,
				"p2sh multisig: participant public keys must be in strict BIP-67 ascending order")
		}
	}
	return nil
}

func loadSingleKey(d *descriptor) (*Wallet, error) {
	priv, err := hex.DecodeString(d.PrivateKeyHex)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "decode private_key_hex", err)
	}
	if len(priv) != 32 || helpers.IsZeroBytes(priv) {
		return nil, bterr.New(bterr.InvalidWalletDescriptor, "private_key_hex must be a 32-byte nonzero scalar")
	}

	var pub []byte
	var addr string

	switch d.ScriptType {
	case TypeP2TR:
		pub, err = hex.DecodeString(d.InternalPubKeyHex)
		if err != nil {
			return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "decode internal_pubkey_x_hex", err)
		}
		addr = strings.TrimSpace(d.Address)
	case TypeP2PK:
		pub, err = hex.DecodeString(d.PublicKeyHex)
		if err != nil {
			return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "decode public_key_hex", err)
		}
		addr = d.PublicKeyHex
	default:
		pub, err = hex.DecodeString(d.PublicKeyHex)
		if err != nil {
			return nil, bterr.Wrap(bterr.InvalidWalletDescriptor, "decode public_key_hex", err)
		}
		addr = strings.TrimSpace(d.Address)
	}

	decoded, err := script.DecodeAddress(addr)
	if err != nil {
		return nil, err
	}

	if err := verifySingleKeyMaterial(d.ScriptType, priv, pub, decoded); err != nil {
		return nil, err
	}

	return &Wallet{
		ScriptType: d.ScriptType,
		Network:    d.Network,
		Address:    addr,
		Payload:    decoded.Payload,
		SingleKey:  &SingleKeyWallet{PrivateKey: priv, PublicKey: pub},
	}, nil
}

// verifySingleKeyMaterial re-derives the public key (and, for p2tr, the
// tweaked output key) from priv and checks it against the descriptor's
// stored public key and address, so a mismatched descriptor is rejected at
// load time rather than silently signing for an output it cannot spend.
func verifySingleKeyMaterial(scriptType ScriptType, priv, pub []byte, decoded *script.DecodedAddress) error {
	switch scriptType {
	case TypeP2TR:
		if len(pub) != 32 {
			return bterr.New(bterr.InvalidWalletDescriptor, "internal_pubkey_x_hex must be 32 bytes")
		}
		if !bytes.Equal(signer.DeriveXOnlyPublicKey(priv), pub) {
			return bterr.New(bterr.InvalidWalletDescriptor, "private_key_hex does not derive internal_pubkey_x_hex")
		}
		outputKey, err := signer.TaprootOutputKey(pub)
		if err != nil {
			return bterr.Wrap(bterr.InvalidWalletDescriptor, "taproot: derive output key", err)
		}
		if !bytes.Equal(outputKey, decoded.Payload) {
			return bterr.New(bterr.InvalidWalletDescriptor, "address's witness program is not the BIP-341 tweak of internal_pubkey_x_hex")
		}
	case TypeP2PK:
		if len(pub) != 33 && len(pub) != 65 {
			return bterr.New(bterr.InvalidWalletDescriptor, "public_key_hex must be 33 or 65 bytes")
		}
		if !bytes.Equal(signer.DerivePublicKey(priv, len(pub) == 33), pub) {
			return bterr.New(bterr.InvalidWalletDescriptor, "private_key_hex does not derive public_key_hex")
		}
	default: // p2pkh, p2wpkh
		if len(pub) != 33 && len(pub) != 65 {
			return bterr.New(bterr.InvalidWalletDescriptor, "public_key_hex must be 33 or 65 bytes")
		}
		if !bytes.Equal(signer.DerivePublicKey(priv, len(pub) == 33), pub) {
			return bterr.New(bterr.InvalidWalletDescriptor, "private_key_hex does not derive public_key_hex")
		}
		if !bytes.Equal(codec.Hash160(pub), decoded.Payload) {
			return bterr.New(bterr.InvalidWalletDescriptor, "address does not match the hash of public_key_hex")
		}
	}
	return nil
}

// Save writes a wallet descriptor (single-key or multisig) to path as
// indented JSON.
func Save(path string, w *Wallet) error {
	d := descriptor{
		ScriptType: w.ScriptType,
		Network:    w.Network,
		Address:    w.Address,
	}
	if w.SingleKey != nil {
		d.PrivateKeyHex = hex.EncodeToString(w.SingleKey.PrivateKey)
		if w.ScriptType == TypeP2TR {
			d.InternalPubKeyHex = hex.EncodeToString(w.SingleKey.PublicKey)
		} else {
			d.PublicKeyHex = hex.EncodeToString(w.SingleKey.PublicKey)
		}
	}
	if w.Multisig != nil {
		d.M = w.Multisig.M
		d.N = w.Multisig.N
		d.RedeemScriptHex = hex.EncodeToString(w.Multisig.RedeemScript)
		for _, k := range w.Multisig.ParticipantKeys {
			p := Participant{PublicKeyHex: hex.EncodeToString(k.PublicKey)}
			if k.PrivateKey != nil {
				p.PrivateKeyHex = hex.EncodeToString(k.PrivateKey)
			}
			d.Participants = append(d.Participants, p)
		}
	}

	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return bterr.Wrap(bterr.InvalidWalletDescriptor, "marshal wallet json", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return bterr.Wrap(bterr.InvalidWalletDescriptor, "write wallet file", err)
	}
	return nil
}

// Family maps the wallet's on-disk script type to the script package's
// classifying Family tag.
func (w *Wallet) Family() script.Family {
	switch w.ScriptType {
	case TypeP2PK:
		return script.P2PK
	case TypeP2PKH:
		return script.P2PKH
	case TypeP2WPKH:
		return script.P2WPKH
	case TypeP2TR:
		return script.P2TR
	case TypeP2SHMultisig:
		return script.P2SH
	default:
		return script.Unknown
	}
}

// ScriptPubKey builds the scriptPubKey this wallet's funds are locked under.
func (w *Wallet) ScriptPubKey() ([]byte, error) {
	return script.BuildSPKForFamily(w.Family(), w.Payload)
}
