package utxo

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/coinengine/internal/txerr"
)

// ParseUnspentOutputs decodes a raw transaction returned by a provider and
// returns the outputs paying to ownerScript.
func ParseUnspentOutputs(rawTx, ownerScript []byte, confirmations int64) ([]UnspentOutput, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, txerr.NewDecodeError("raw tx", "malformed transaction", err)
	}

	txID := tx.TxHash()
	var outs []UnspentOutput
	for i, out := range tx.TxOut {
		if !bytes.Equal(out.PkScript, ownerScript) {
			continue
		}
		if out.Value < 0 {
			return nil, txerr.NewDecodeError("raw tx", fmt.Sprintf("negative value in output %d", i), nil)
		}
		outs = append(outs, UnspentOutput{
			TxID:          txID,
			Index:         uint32(i),
			Value:         uint64(out.Value),
			Confirmations: confirmations,
			SpendScript:   append([]byte(nil), out.PkScript...),
		})
	}
	return outs, nil
}

// UpdateAvailable removes spent outputs from available and appends change, so
// an unconfirmed change output can fund the next send.
func UpdateAvailable(available, spent []UnspentOutput, change *UnspentOutput) []UnspentOutput {
	used := make(map[wire.OutPoint]struct{}, len(spent))
	for _, u := range spent {
		used[u.OutPoint()] = struct{}{}
	}

	result := make([]UnspentOutput, 0, len(available)+1)
	for _, u := range available {
		if _, ok := used[u.OutPoint()]; !ok {
			result = append(result, u)
		}
	}
	if change != nil {
		result = append(result, *change)
	}
	return result
}
