package binance

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

const (
	hrpMainnet = "bnb"
	hrpTestnet = "tbnb"

	addressSize = 20
)

func hrpFor(net types.Network) string {
	if net == types.Mainnet {
		return hrpMainnet
	}
	return hrpTestnet
}

// AddressFromPubKey is bech32(hrp, hash160(compressed key)).
func AddressFromPubKey(pubKey []byte, net types.Network) (string, error) {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	return encodeAddress(codec.Hash160(pub.SerializeCompressed()), net)
}

func encodeAddress(raw []byte, net types.Network) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	return bech32.Encode(hrpFor(net), conv)
}

// decodeAddress returns the 20 address bytes after checking the checksum and
// the network prefix.
func decodeAddress(addr string, net types.Network) ([]byte, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return nil, txerr.NewDecodeError("bech32", "malformed", err)
	}
	if hrp != hrpFor(net) {
		return nil, fmt.Errorf("%w: prefix %q on %s", txerr.ErrInvalidAddress, hrp, net)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, txerr.NewDecodeError("bech32", "bad padding", err)
	}
	if len(raw) != addressSize {
		return nil, fmt.Errorf("%w: %d address bytes", txerr.ErrInvalidAddress, len(raw))
	}
	return raw, nil
}

func ValidateAddress(addr string, net types.Network) bool {
	_, err := decodeAddress(addr, net)
	return err == nil
}
