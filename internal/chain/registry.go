// Package chain maps the closed set of supported chains onto their builders,
// address derivation and validation.
package chain

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/binance"
	"github.com/vultisig/coinengine/internal/btc"
	"github.com/vultisig/coinengine/internal/cardano"
	"github.com/vultisig/coinengine/internal/eos"
	"github.com/vultisig/coinengine/internal/evm"
	"github.com/vultisig/coinengine/internal/stellar"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/utxo"
	"github.com/vultisig/coinengine/internal/utxo/address"
)

// Wallet is the card side of a send: which chain and which key.
type Wallet struct {
	Chain  types.Chain
	PubKey []byte
	Method types.SigningMethod
}

// Settings are per-chain configuration inputs.
type Settings struct {
	Network types.Network
	EVM     evm.Config
	Cardano cardano.Config
	EOS     eos.Config
	Stellar stellar.Config
	Binance binance.Config
}

// State is the provider snapshot for one send. Only the field of the
// wallet's chain is read.
type State struct {
	UTXOs   []utxo.UnspentOutput
	EVM     evm.Account
	Cardano cardano.Account
	EOS     eos.Account
	Stellar stellar.Account
	Binance binance.Account
}

// NewBuilder returns the builder of w.Chain.
func NewBuilder(w Wallet, s Settings, st State, logger logrus.FieldLogger) (types.Builder, error) {
	switch w.Chain {
	case types.Bitcoin, types.BitcoinCash, types.Litecoin:
		return wrap(btc.NewBuilder(w.Chain, s.Network, w.PubKey, st.UTXOs, logger))
	case types.Ethereum:
		return wrap(evm.NewBuilder(s.EVM, w.PubKey, st.EVM, logger))
	case types.Cardano, types.CardanoShelley:
		cfg := s.Cardano
		cfg.Network = s.Network
		return wrap(cardano.NewBuilder(w.Chain, cfg, w.PubKey, st.Cardano, logger))
	case types.EOS:
		return wrap(eos.NewBuilder(s.EOS, w.PubKey, st.EOS, logger))
	case types.Stellar:
		return wrap(stellar.NewBuilder(s.Stellar, w.PubKey, st.Stellar, logger))
	case types.Binance:
		cfg := s.Binance
		cfg.Network = s.Network
		return wrap(binance.NewBuilder(cfg, w.PubKey, st.Binance, logger))
	default:
		return nil, fmt.Errorf("unsupported chain: %s", w.Chain)
	}
}

// wrap keeps a failed constructor from returning a non-nil interface
// holding a nil pointer.
func wrap[B types.Builder](b B, err error) (types.Builder, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeriveAddress returns the receive address of pubKey. EOS accounts are
// named on chain, so for EOS this is the public key string an account is
// registered with.
func DeriveAddress(c types.Chain, pubKey []byte, s Settings) (string, error) {
	switch c {
	case types.Bitcoin, types.BitcoinCash, types.Litecoin:
		addr, err := address.FromPubKey(c, s.Network, pubKey)
		if err != nil {
			return "", err
		}
		return addr.String(), nil
	case types.Ethereum:
		addr, err := evm.AddressFromPubKey(pubKey)
		if err != nil {
			return "", err
		}
		return addr.Hex(), nil
	case types.Cardano, types.CardanoShelley:
		return cardano.DeriveAddress(c, s.Network, pubKey)
	case types.EOS:
		return eos.PublicKeyString(pubKey)
	case types.Stellar:
		return stellar.AddressFromPubKey(pubKey)
	case types.Binance:
		return binance.AddressFromPubKey(pubKey, s.Network)
	default:
		return "", fmt.Errorf("unsupported chain: %s", c)
	}
}

// ValidateAddress never fails; anything malformed is just invalid.
func ValidateAddress(c types.Chain, addr string, s Settings) bool {
	switch c {
	case types.Bitcoin, types.BitcoinCash, types.Litecoin:
		return address.Validate(c, s.Network, addr)
	case types.Ethereum:
		return evm.ValidateAddress(addr)
	case types.Cardano, types.CardanoShelley:
		return cardano.ValidateAddress(addr, s.Network)
	case types.EOS:
		return eos.ValidateAccountName(addr)
	case types.Stellar:
		return stellar.ValidateAddress(addr)
	case types.Binance:
		return binance.ValidateAddress(addr, s.Network)
	default:
		return false
	}
}
