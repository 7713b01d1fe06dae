package cardano

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

const (
	PubKeySize    = 32
	ChainCodeSize = 32

	hrpMainnet = "addr"
	hrpTestnet = "addr_test"

	// enterprise address, key hash payment credential, no stake part
	headerEnterprise = 0x60
)

// emptyAttributes is the CBOR empty map Byron addresses carry when no
// derivation path or protocol magic is embedded.
var emptyAttributes = []byte{0xa0}

func checkPubKey(pubKey []byte) error {
	if len(pubKey) != PubKeySize {
		return fmt.Errorf("%w: ed25519 key must be %d bytes, got %d", txerr.ErrInvalidPublicKey, PubKeySize, len(pubKey))
	}
	if _, err := new(edwards25519.Point).SetBytes(pubKey); err != nil {
		return fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	return nil
}

// ByronAddress derives the legacy base58 address of pubKey with an all-zero
// chain code.
func ByronAddress(pubKey []byte) (string, error) {
	raw, err := byronAddressBytes(pubKey)
	if err != nil {
		return "", err
	}
	return codec.Base58Encode(raw), nil
}

func byronAddressBytes(pubKey []byte) ([]byte, error) {
	if err := checkPubKey(pubKey); err != nil {
		return nil, err
	}
	xpub := make([]byte, 0, PubKeySize+ChainCodeSize)
	xpub = append(xpub, pubKey...)
	xpub = append(xpub, make([]byte, ChainCodeSize)...)

	spending, err := codec.CBOREncodeArray(uint64(0), []any{uint64(0), xpub}, map[uint64]any{})
	if err != nil {
		return nil, fmt.Errorf("failed to encode spending data: %w", err)
	}
	root := codec.Blake2b224(codec.Sha3256(spending))

	payload, err := codec.CBOREncodeArray(root, map[uint64]any{}, uint64(0))
	if err != nil {
		return nil, fmt.Errorf("failed to encode address payload: %w", err)
	}
	wrapped, err := codec.CBOREncodeTag24(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode address payload: %w", err)
	}
	return codec.CBOREncodeArray(cbor.RawMessage(wrapped), uint64(codec.CRC32(payload)))
}

// ShelleyAddress derives the bech32 enterprise address of pubKey.
func ShelleyAddress(pubKey []byte, net types.Network) (string, error) {
	if err := checkPubKey(pubKey); err != nil {
		return "", err
	}
	header := byte(headerEnterprise)
	hrp := hrpTestnet
	if net == types.Mainnet {
		header |= 1
		hrp = hrpMainnet
	}
	raw := append([]byte{header}, codec.Blake2b224(pubKey)...)
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	return bech32.Encode(hrp, conv)
}

// DeriveAddress returns the Byron address for types.Cardano and the Shelley
// enterprise address for types.CardanoShelley.
func DeriveAddress(chain types.Chain, net types.Network, pubKey []byte) (string, error) {
	switch chain {
	case types.Cardano:
		return ByronAddress(pubKey)
	case types.CardanoShelley:
		return ShelleyAddress(pubKey, net)
	default:
		return "", fmt.Errorf("unsupported chain: %s", chain)
	}
}

// ValidateAddress accepts Byron and Shelley addresses. Byron addresses are
// checked by their CRC32, Shelley addresses by the bech32 checksum, prefix,
// network id and payload length.
func ValidateAddress(addr string, net types.Network) bool {
	_, err := addressBytes(addr, net)
	return err == nil
}

// addressBytes returns the binary form an output carries.
func addressBytes(addr string, net types.Network) ([]byte, error) {
	if len(addr) < 2 {
		return nil, txerr.ErrInvalidAddress
	}
	if hrp, _, err := bech32.DecodeNoLimit(addr); err == nil {
		return shelleyBytes(addr, hrp, net)
	}
	return byronBytes(addr)
}

func byronBytes(addr string) ([]byte, error) {
	raw, err := codec.Base58Decode(addr)
	if err != nil {
		return nil, err
	}
	var parts []cbor.RawMessage
	if err := codec.CBORUnmarshal(raw, &parts); err != nil {
		return nil, err
	}
	if len(parts) != 2 {
		return nil, txerr.NewDecodeError("byron", "expected two elements", nil)
	}
	payload, err := codec.CBORDecodeTag24(parts[0])
	if err != nil {
		return nil, err
	}
	var crc uint64
	if err := codec.CBORUnmarshal(parts[1], &crc); err != nil {
		return nil, err
	}
	if crc != uint64(codec.CRC32(payload)) {
		return nil, txerr.ErrChecksumMismatch
	}

	var fields []cbor.RawMessage
	if err := codec.CBORUnmarshal(payload, &fields); err != nil {
		return nil, err
	}
	if len(fields) != 3 {
		return nil, txerr.NewDecodeError("byron", "payload must have three fields", nil)
	}
	var root []byte
	if err := codec.CBORUnmarshal(fields[0], &root); err != nil || len(root) != 28 {
		return nil, txerr.NewDecodeError("byron", "bad address root", err)
	}
	return raw, nil
}

func shelleyBytes(addr, hrp string, net types.Network) ([]byte, error) {
	want := hrpTestnet
	if net == types.Mainnet {
		want = hrpMainnet
	}
	if hrp != want {
		return nil, fmt.Errorf("%w: prefix %q on %s", txerr.ErrInvalidAddress, hrp, net)
	}
	_, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return nil, txerr.NewDecodeError("bech32", "malformed", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, txerr.NewDecodeError("bech32", "bad padding", err)
	}
	if len(raw) == 0 {
		return nil, txerr.ErrInvalidAddress
	}

	kind, netID := raw[0]>>4, raw[0]&0x0f
	if (net == types.Mainnet) != (netID == 1) {
		return nil, fmt.Errorf("%w: network id %d on %s", txerr.ErrInvalidAddress, netID, net)
	}
	switch {
	case kind <= 3 && len(raw) == 57:
	case (kind == 4 || kind == 5) && len(raw) >= 32:
	case (kind == 6 || kind == 7) && len(raw) == 29:
	default:
		return nil, fmt.Errorf("%w: header %#x with %d bytes", txerr.ErrInvalidAddress, raw[0], len(raw))
	}
	return raw, nil
}
