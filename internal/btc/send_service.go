package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/utxo"
	"github.com/vultisig/coinengine/internal/utxo/address"
)

// buildOutputs returns the recipient output followed by the change output when
// the plan has change. The change output is always last.
func buildOutputs(to, change address.UTXOAddress, plan utxo.FeePlan) ([]*wire.TxOut, error) {
	if plan.AmountForRecipient > utxo.MaxValue || plan.Change > utxo.MaxValue {
		return nil, txerr.Invariant("output value above int64", nil)
	}

	toScript, err := to.PayToAddrScript()
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient script: %w", err)
	}

	outputs := []*wire.TxOut{{
		Value:    int64(plan.AmountForRecipient),
		PkScript: toScript,
	}}

	if plan.Change > 0 {
		changeScript, err := change.PayToAddrScript()
		if err != nil {
			return nil, fmt.Errorf("failed to create change script: %w", err)
		}
		outputs = append(outputs, &wire.TxOut{
			Value:    int64(plan.Change),
			PkScript: changeScript,
		})
	}
	return outputs, nil
}
