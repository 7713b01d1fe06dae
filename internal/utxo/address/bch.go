package address

import (
	"fmt"
	"strings"

	bchchaincfg "github.com/gcash/bchd/chaincfg"
	bchtxscript "github.com/gcash/bchd/txscript"
	"github.com/gcash/bchutil"

	"github.com/vultisig/coinengine/internal/types"
)

// BCHAddress wraps a bchutil.Address to implement UTXOAddress. String always
// carries the CashAddr prefix.
type BCHAddress struct {
	addr   bchutil.Address
	prefix string
}

func bchParams(net types.Network) *bchchaincfg.Params {
	if net == types.Testnet {
		return &bchchaincfg.TestNet3Params
	}
	return &bchchaincfg.MainNetParams
}

// NewBCHAddress parses a CashAddr (with or without prefix) or legacy address.
func NewBCHAddress(addrStr string, net types.Network) (*BCHAddress, error) {
	params := bchParams(net)
	addr, err := bchutil.DecodeAddress(addrStr, params)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("address %s is not for %s", addrStr, params.Name)
	}
	return &BCHAddress{addr: addr, prefix: params.CashAddressPrefix}, nil
}

// NewBCHAddressFromPubKeyHash creates a CashAddr P2PKH address.
func NewBCHAddressFromPubKeyHash(pubKeyHash []byte, net types.Network) (*BCHAddress, error) {
	params := bchParams(net)
	addr, err := bchutil.NewAddressPubKeyHash(pubKeyHash, params)
	if err != nil {
		return nil, err
	}
	return &BCHAddress{addr: addr, prefix: params.CashAddressPrefix}, nil
}

func (a *BCHAddress) String() string {
	s := a.addr.EncodeAddress()
	if strings.Contains(s, ":") {
		return s
	}
	return a.prefix + ":" + s
}

func (a *BCHAddress) ScriptAddress() []byte { return a.addr.ScriptAddress() }
func (a *BCHAddress) PayToAddrScript() ([]byte, error) {
	return bchtxscript.PayToAddrScript(a.addr)
}

// Native returns the underlying bchutil.Address.
func (a *BCHAddress) Native() bchutil.Address { return a.addr }
