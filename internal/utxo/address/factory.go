package address

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

const (
	minAddressLen = 26
	maxAddressLen = 90
)

// NewFromString parses an address for a Bitcoin-family chain.
func NewFromString(chain types.Chain, net types.Network, addrStr string) (UTXOAddress, error) {
	switch chain {
	case types.Bitcoin:
		return NewBTCAddress(addrStr, net)
	case types.Litecoin:
		return NewLTCAddress(addrStr, net)
	case types.BitcoinCash:
		return NewBCHAddress(addrStr, net)
	default:
		return nil, fmt.Errorf("unsupported UTXO chain: %s", chain)
	}
}

// NewFromPubKeyHash creates a P2PKH address. The engine only spends legacy
// P2PKH outputs, so there is no segwit variant.
func NewFromPubKeyHash(chain types.Chain, net types.Network, pubKeyHash []byte) (UTXOAddress, error) {
	switch chain {
	case types.Bitcoin:
		return NewBTCAddressFromPubKeyHash(pubKeyHash, net)
	case types.Litecoin:
		return NewLTCAddressFromPubKeyHash(pubKeyHash, net)
	case types.BitcoinCash:
		return NewBCHAddressFromPubKeyHash(pubKeyHash, net)
	default:
		return nil, fmt.Errorf("unsupported UTXO chain: %s", chain)
	}
}

// FromPubKey derives the P2PKH address of a serialized secp256k1 key. The
// hash is taken over the key exactly as given, compressed or not.
func FromPubKey(chain types.Chain, net types.Network, pubKey []byte) (UTXOAddress, error) {
	if _, err := btcec.ParsePubKey(pubKey); err != nil {
		return nil, fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	return NewFromPubKeyHash(chain, net, btcutil.Hash160(pubKey))
}

// Validate reports whether addrStr is a well-formed address for chain and net.
// It never returns an error since it runs on every keystroke.
func Validate(chain types.Chain, net types.Network, addrStr string) bool {
	if len(addrStr) < minAddressLen || len(addrStr) > maxAddressLen {
		return false
	}
	_, err := NewFromString(chain, net, addrStr)
	return err == nil
}
