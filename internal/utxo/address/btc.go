package address

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/vultisig/coinengine/internal/types"
)

// BTCAddress wraps a btcutil.Address to implement UTXOAddress.
type BTCAddress struct {
	addr btcutil.Address
}

func btcParams(net types.Network) *chaincfg.Params {
	if net == types.Testnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// NewBTCAddress parses an address string for the given network.
func NewBTCAddress(addrStr string, net types.Network) (*BTCAddress, error) {
	params := btcParams(net)
	addr, err := btcutil.DecodeAddress(addrStr, params)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("address %s is not for %s", addrStr, params.Name)
	}
	return &BTCAddress{addr: addr}, nil
}

// NewBTCAddressFromPubKeyHash creates a P2PKH address from a pubkey hash.
func NewBTCAddressFromPubKeyHash(pubKeyHash []byte, net types.Network) (*BTCAddress, error) {
	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, btcParams(net))
	if err != nil {
		return nil, err
	}
	return &BTCAddress{addr: addr}, nil
}

func (a *BTCAddress) String() string        { return a.addr.String() }
func (a *BTCAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *BTCAddress) PayToAddrScript() ([]byte, error) {
	return txscript.PayToAddrScript(a.addr)
}

// Native returns the underlying btcutil.Address.
func (a *BTCAddress) Native() btcutil.Address { return a.addr }
