package address

import (
	"fmt"

	ltcchaincfg "github.com/ltcsuite/ltcd/chaincfg"
	"github.com/ltcsuite/ltcd/ltcutil"
	ltctxscript "github.com/ltcsuite/ltcd/txscript"

	"github.com/vultisig/coinengine/internal/types"
)

// LTCAddress wraps a ltcutil.Address to implement UTXOAddress.
type LTCAddress struct {
	addr ltcutil.Address
}

func ltcParams(net types.Network) *ltcchaincfg.Params {
	if net == types.Testnet {
		return &ltcchaincfg.TestNet4Params
	}
	return &ltcchaincfg.MainNetParams
}

// NewLTCAddress parses an address string for the given network.
func NewLTCAddress(addrStr string, net types.Network) (*LTCAddress, error) {
	params := ltcParams(net)
	addr, err := ltcutil.DecodeAddress(addrStr, params)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("address %s is not for %s", addrStr, params.Name)
	}
	return &LTCAddress{addr: addr}, nil
}

// NewLTCAddressFromPubKeyHash creates a P2PKH address from a pubkey hash.
func NewLTCAddressFromPubKeyHash(pubKeyHash []byte, net types.Network) (*LTCAddress, error) {
	addr, err := ltcutil.NewAddressPubKeyHash(pubKeyHash, ltcParams(net))
	if err != nil {
		return nil, err
	}
	return &LTCAddress{addr: addr}, nil
}

func (a *LTCAddress) String() string        { return a.addr.String() }
func (a *LTCAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *LTCAddress) PayToAddrScript() ([]byte, error) {
	return ltctxscript.PayToAddrScript(a.addr)
}

// Native returns the underlying ltcutil.Address.
func (a *LTCAddress) Native() ltcutil.Address { return a.addr }
