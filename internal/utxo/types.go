package utxo

import (
	"math"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/coinengine/internal/txerr"
)

// UnspentOutput is a spendable output of a previous transaction. TxID is kept
// in wire (internal) byte order; String() on it gives the display order.
type UnspentOutput struct {
	TxID          chainhash.Hash
	Index         uint32
	Value         uint64
	Confirmations int64
	SpendScript   []byte
}

func (u UnspentOutput) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: u.TxID, Index: u.Index}
}

// FeePlan is the result of one input selection. Fee is the miner fee actually
// paid on top of ExtraFee and already includes DustAbsorbed.
type FeePlan struct {
	Fee                uint64
	ExtraFee           uint64
	Change             uint64
	AmountForRecipient uint64
	DustAbsorbed       uint64
	Inputs             []UnspentOutput
}

func (p FeePlan) TotalIn() uint64 {
	var total uint64
	for _, in := range p.Inputs {
		total += in.Value
	}
	return total
}

// OutputCount is the number of outputs the plan produces: the recipient and,
// when there is change, the change output.
func (p FeePlan) OutputCount() int {
	if p.Change > 0 {
		return 2
	}
	return 1
}

// Validate checks the monetary invariants of the plan. Any failure is a bug in
// the selector, not a user error.
func (p FeePlan) Validate() error {
	in := new(big.Int)
	for _, i := range p.Inputs {
		in.Add(in, new(big.Int).SetUint64(i.Value))
	}
	out := new(big.Int)
	for _, v := range []uint64{p.AmountForRecipient, p.Fee, p.ExtraFee, p.Change} {
		out.Add(out, new(big.Int).SetUint64(v))
	}

	values := map[string]int64{
		"inputs":    clampInt64(in),
		"recipient": clampInt64(new(big.Int).SetUint64(p.AmountForRecipient)),
		"fee":       clampInt64(new(big.Int).SetUint64(p.Fee)),
		"extra_fee": clampInt64(new(big.Int).SetUint64(p.ExtraFee)),
		"change":    clampInt64(new(big.Int).SetUint64(p.Change)),
	}
	maxValue := new(big.Int).SetUint64(MaxValue)
	switch {
	case len(p.Inputs) == 0:
		return txerr.Invariant("plan without inputs", values)
	case p.Fee > MaxAllowedFee || p.ExtraFee > MaxAllowedFee-p.Fee:
		return txerr.Invariant("fee above maximum", values)
	case p.Change > 0 && p.Change < DustLimit:
		return txerr.Invariant("dust change output", values)
	case in.Cmp(maxValue) > 0:
		return txerr.Invariant("inputs above maximum value", values)
	case in.Cmp(out) != 0:
		return txerr.Invariant("inputs do not balance outputs and fee", values)
	}
	return nil
}

// clampInt64 keeps invariant reports readable for values past int64.
func clampInt64(v *big.Int) int64 {
	if !v.IsInt64() {
		return math.MaxInt64
	}
	return v.Int64()
}

// Request describes a Bitcoin-family send for Plan. Amount zero sweeps every
// available output. With FeeIncluded the recipient receives Amount minus fees.
type Request struct {
	Amount      uint64
	ExtraFee    uint64
	FeeIncluded bool
	Compressed  bool
}
