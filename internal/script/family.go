// Package script classifies and builds Bitcoin scriptPubKeys and decodes
// addresses for the five families this engine supports: P2PK, P2PKH, P2SH,
// P2WPKH and P2TR.
package script

import (
	"encoding/hex"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/chain"
	"github.com/btctx/engine/internal/codec"
)

// Family tags the five supported scriptPubKey shapes.
type Family int

const (
	Unknown Family = iota
	P2PK
	P2PKH
	P2SH
	P2WPKH
	P2TR
)

func (f Family) String() string {
	switch f {
	case P2PK:
		return "P2PK"
	case P2PKH:
		return "P2PKH"
	case P2SH:
		return "P2SH"
	case P2WPKH:
		return "P2WPKH"
	case P2TR:
		return "P2TR"
	default:
		return "Unknown"
	}
}

// IsWitness reports whether f spends via a witness stack rather than scriptSig.
func (f Family) IsWitness() bool {
	return f == P2WPKH || f == P2TR
}

// Bitcoin script opcodes used by the families this engine builds.
const (
	OpFalse          = 0x00
	Op1              = 0x51
	Op16             = 0x60
	OpReturn         = 0x6a
	OpDup            = 0x76
	OpEqual          = 0x87
	OpEqualVerify    = 0x88
	OpHash160        = 0xa9
	OpCheckSig       = 0xac
	OpCheckMultiSig  = 0xae
	OpPushData1      = 0x4c
	OpPushData2      = 0x4d
	OpPushData4      = 0x4e
	MaxOpReturnBytes = 80
)

// BuildP2PKH builds `OP_DUP OP_HASH160 <20> pubKeyHash OP_EQUALVERIFY OP_CHECKSIG`.
func BuildP2PKH(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, bterr.New(bterr.InvalidScript, "p2pkh: pubkey hash must be 20 bytes")
	}
	out := make([]byte, 0, 25)
	out = append(out, OpDup, OpHash160, 0x14)
	out = append(out, pubKeyHash...)
	out = append(out, OpEqualVerify, OpCheckSig)
	return out, nil
}

// BuildP2WPKH builds `OP_0 <20> pubKeyHash`.
func BuildP2WPKH(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, bterr.New(bterr.InvalidScript, "p2wpkh: pubkey hash must be 20 bytes")
	}
	out := make([]byte, 0, 22)
	out = append(out, OpFalse, 0x14)
	out = append(out, pubKeyHash...)
	return out, nil
}

// BuildP2SH builds `OP_HASH160 <20> scriptHash OP_EQUAL`.
func BuildP2SH(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 20 {
		return nil, bterr.New(bterr.InvalidScript, "p2sh: script hash must be 20 bytes")
	}
	out := make([]byte, 0, 23)
	out = append(out, OpHash160, 0x14)
	out = append(out, scriptHash...)
	out = append(out, OpEqual)
	return out, nil
}

// BuildP2TR builds `OP_1 <32> outputKey` (witness version 1).
func BuildP2TR(outputKey []byte) ([]byte, error) {
	if len(outputKey) != 32 {
		return nil, bterr.New(bterr.InvalidScript, "p2tr: output key must be 32 bytes")
	}
	out := make([]byte, 0, 34)
	out = append(out, Op1, 0x20)
	out = append(out, outputKey...)
	return out, nil
}

// BuildP2PK builds `<push-len> pubKey OP_CHECKSIG` for a 33- or 65-byte key.
func BuildP2PK(pubKey []byte) ([]byte, error) {
	if len(pubKey) != 33 && len(pubKey) != 65 {
		return nil, bterr.New(bterr.InvalidScript, "p2pk: pubkey must be 33 or 65 bytes")
	}
	out := make([]byte, 0, len(pubKey)+2)
	out = append(out, byte(len(pubKey)))
	out = append(out, pubKey...)
	out = append(out, OpCheckSig)
	return out, nil
}

// BuildOpReturn builds an OP_RETURN output script carrying msg, truncated to
// MaxOpReturnBytes per the relay policy this engine assumes.
func BuildOpReturn(msg []byte) []byte {
	if len(msg) > MaxOpReturnBytes {
		msg = msg[:MaxOpReturnBytes]
	}
	out := make([]byte, 0, len(msg)+2)
	out = append(out, OpReturn)
	out = append(out, pushDataPrefix(len(msg))...)
	out = append(out, msg...)
	return out
}

func pushDataPrefix(n int) []byte {
	switch {
	case n < OpPushData1:
		return []byte{byte(n)}
	case n <= 0xff:
		return []byte{OpPushData1, byte(n)}
	default:
		return []byte{OpPushData2, byte(n), byte(n >> 8)}
	}
}

// Classified holds the result of decoding a scriptPubKey or address.
type Classified struct {
	Family Family
	// Payload is the 20-byte hash, 32-byte witness program/output key, or raw
	// public key bytes, depending on Family.
	Payload []byte
}

// FamilyFromSPK recognises a scriptPubKey's family from its exact byte shape.
func FamilyFromSPK(spk []byte) Classified {
	switch {
	case len(spk) == 25 && spk[0] == OpDup && spk[1] == OpHash160 && spk[2] == 0x14 &&
		spk[23] == OpEqualVerify && spk[24] == OpCheckSig:
		return Classified{Family: P2PKH, Payload: append([]byte{}, spk[3:23]...)}

	case len(spk) == 23 && spk[0] == OpHash160 && spk[1] == 0x14 && spk[22] == OpEqual:
		return Classified{Family: P2SH, Payload: append([]byte{}, spk[2:22]...)}

	case len(spk) == 22 && spk[0] == OpFalse && spk[1] == 0x14:
		return Classified{Family: P2WPKH, Payload: append([]byte{}, spk[2:22]...)}

	case len(spk) == 34 && spk[0] == Op1 && spk[1] == 0x20:
		return Classified{Family: P2TR, Payload: append([]byte{}, spk[2:34]...)}

	case (len(spk) == 35 || len(spk) == 67) && spk[len(spk)-1] == OpCheckSig &&
		int(spk[0]) == len(spk)-2 && (spk[0] == 33 || spk[0] == 65):
		return Classified{Family: P2PK, Payload: append([]byte{}, spk[1:len(spk)-1]...)}

	default:
		return Classified{Family: Unknown}
	}
}

// BuildSPKForFamily builds the scriptPubKey bytes for family given its
// matching payload (hash or key, per FamilyFromSPK's convention).
func BuildSPKForFamily(family Family, payload []byte) ([]byte, error) {
	switch family {
	case P2PKH:
		return BuildP2PKH(payload)
	case P2SH:
		return BuildP2SH(payload)
	case P2WPKH:
		return BuildP2WPKH(payload)
	case P2TR:
		return BuildP2TR(payload)
	case P2PK:
		return BuildP2PK(payload)
	default:
		return nil, bterr.New(bterr.InvalidScript, "unknown script family")
	}
}

// DecodedAddress is the result of decoding an address string.
type DecodedAddress struct {
	Family        Family
	Payload       []byte // 20-byte hash, 32-byte program/key, or raw pubkey
	WitnessVersion int    // meaningful only when Family is P2WPKH/P2TR
	Params        *chain.Params
}

// DecodeAddress dispatches on the address string's apparent shape: Bech32/
// Bech32m witness address, bare hex public key (P2PK), or Base58Check
// legacy/P2SH address.
func DecodeAddress(addr string) (*DecodedAddress, error) {
	if looksLikeBech32(addr) {
		return decodeBech32Address(addr)
	}
	if pk, ok := decodeHexPubKey(addr); ok {
		return &DecodedAddress{Family: P2PK, Payload: pk}, nil
	}
	return decodeBase58Address(addr)
}

func looksLikeBech32(addr string) bool {
	for _, hrp := range []string{"bc1", "tb1", "bcrt1"} {
		if len(addr) > len(hrp) && addr[:len(hrp)] == hrp {
			return true
		}
	}
	return false
}

func decodeHexPubKey(s string) ([]byte, bool) {
	if len(s) != 66 && len(s) != 130 {
		return nil, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	if len(b) == 33 && (b[0] == 0x02 || b[0] == 0x03) {
		return b, true
	}
	if len(b) == 65 && b[0] == 0x04 {
		return b, true
	}
	return nil, false
}

func decodeBech32Address(addr string) (*DecodedAddress, error) {
	hrp, data, variant, err := codec.Bech32Decode(addr)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidAddress, "bech32 decode failed", err)
	}
	if len(data) < 1 {
		return nil, bterr.New(bterr.InvalidAddress, "bech32: empty data")
	}
	witVer := int(data[0])
	if witVer > 16 {
		return nil, bterr.New(bterr.InvalidAddress, "bech32: invalid witness version")
	}
	program, err := codec.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, bterr.Wrap(bterr.InvalidAddress, "bech32: bad witness program", err)
	}

	switch witVer {
	case 0:
		if variant != codec.VariantBech32 {
			return nil, bterr.New(bterr.InvalidAddress, "witness v0 requires bech32 encoding")
		}
		if len(program) != 20 && len(program) != 32 {
			return nil, bterr.New(bterr.InvalidAddress, "witness v0 program must be 20 or 32 bytes")
		}
	case 1:
		if variant != codec.VariantBech32m {
			return nil, bterr.New(bterr.InvalidAddress, "witness v1 requires bech32m encoding")
		}
		if len(program) != 32 {
			return nil, bterr.New(bterr.InvalidAddress, "witness v1 program must be 32 bytes")
		}
	default:
		if variant != codec.VariantBech32m {
			return nil, bterr.New(bterr.InvalidAddress, "witness v2+ requires bech32m encoding")
		}
	}

	params, perr := chain.ParamsForHRP(hrp)
	if perr != nil {
		params = nil
	}

	family := P2WPKH
	if witVer != 0 {
		family = P2TR
	}

	return &DecodedAddress{Family: family, Payload: program, WitnessVersion: witVer, Params: params}, nil
}

func decodeBase58Address(addr string) (*DecodedAddress, error) {
	payload, err := codec.Base58CheckDecode(addr)
	if err != nil {
		return nil, err
	}
	if len(payload) != 21 {
		return nil, bterr.New(bterr.InvalidAddress, "base58check: unexpected payload length")
	}
	version := payload[0]
	hash := payload[1:]

	if params, perr := chain.ParamsForPubKeyHashID(version); perr == nil {
		return &DecodedAddress{Family: P2PKH, Payload: hash, Params: params}, nil
	}
	if params, perr := chain.ParamsForScriptHashID(version); perr == nil {
		return &DecodedAddress{Family: P2SH, Payload: hash, Params: params}, nil
	}
	return nil, bterr.New(bterr.InvalidAddress, "base58check: unrecognised version byte")
}

// BuildSPKForAddress builds the scriptPubKey that pays to addr.
func BuildSPKForAddress(addr string) ([]byte, error) {
	decoded, err := DecodeAddress(addr)
	if err != nil {
		return nil, err
	}
	return BuildSPKForFamily(decoded.Family, decoded.Payload)
}

// EncodeAddress renders (family, payload) back into its canonical string
// form for the given network.
func EncodeAddress(family Family, payload []byte, params *chain.Params) (string, error) {
	switch family {
	case P2PKH:
		return codec.Base58CheckEncode(append([]byte{params.PubKeyHashAddrID}, payload...)), nil
	case P2SH:
		return codec.Base58CheckEncode(append([]byte{params.ScriptHashAddrID}, payload...)), nil
	case P2WPKH:
		return encodeWitnessAddress(params.Bech32HRP, 0, payload, codec.VariantBech32)
	case P2TR:
		return encodeWitnessAddress(params.Bech32HRP, 1, payload, codec.VariantBech32m)
	case P2PK:
		return hex.EncodeToString(payload), nil
	default:
		return "", bterr.New(bterr.InvalidScript, "cannot encode address for unknown family")
	}
}

func encodeWitnessAddress(hrp string, witVer byte, program []byte, variant codec.Bech32Variant) (string, error) {
	data, err := codec.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", err
	}
	data = append([]byte{witVer}, data...)
	return codec.Bech32Encode(hrp, data, variant)
}
