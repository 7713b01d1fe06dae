package utxo

import (
	"errors"
	"fmt"

	"github.com/vultisig/coinengine/internal/txerr"
)

// SelectOutputsAndComputeFee plans a send of amount (zero sweeps everything)
// where the recipient receives the full amount.
func SelectOutputsAndComputeFee(available []UnspentOutput, amount, extraFee uint64, compressed bool) (FeePlan, error) {
	return Plan(available, Request{
		Amount:     amount,
		ExtraFee:   extraFee,
		Compressed: compressed,
	})
}

// Plan selects inputs in the order given and computes fee and change.
// Targeted sends accumulate inputs one at a time and, for every accumulation,
// iterate the fee estimate at most MaxFeeRounds times because the fee depends on
// the output count, which depends on change, which depends on the fee.
func Plan(available []UnspentOutput, req Request) (FeePlan, error) {
	if req.Amount > MaxValue {
		return FeePlan{}, fmt.Errorf("%w: amount %d above %d", txerr.ErrInsufficientFunds, req.Amount, MaxValue)
	}
	if req.ExtraFee > MaxAllowedFee {
		return FeePlan{}, fmt.Errorf("%w: extra fee %d exceeds %d", txerr.ErrFeeOutOfBounds, req.ExtraFee, MaxAllowedFee)
	}

	spendable := make([]UnspentOutput, 0, len(available))
	var total uint64
	for _, o := range available {
		if o.Value == 0 {
			continue
		}
		if o.Value > MaxValue-total {
			return FeePlan{}, txerr.NewDecodeError("utxo set", fmt.Sprintf("input values overflow at %s:%d", o.TxID, o.Index), nil)
		}
		spendable = append(spendable, o)
		total += o.Value
	}
	if len(spendable) == 0 {
		return FeePlan{}, txerr.ErrNoSpendableOutput
	}

	var (
		plan FeePlan
		err  error
	)
	if req.Amount == 0 {
		plan, err = sweep(spendable, total, req)
	} else {
		plan, err = targeted(spendable, total, req)
	}
	if err != nil {
		return FeePlan{}, err
	}

	if plan.Fee > MaxAllowedFee || plan.ExtraFee > MaxAllowedFee-plan.Fee {
		return FeePlan{}, fmt.Errorf("%w: fee %d plus extra %d exceeds %d",
			txerr.ErrFeeOutOfBounds, plan.Fee, plan.ExtraFee, MaxAllowedFee)
	}
	if size := EstimateTxSize(len(plan.Inputs), plan.OutputCount(), req.Compressed); size > MaxTxSize {
		return FeePlan{}, fmt.Errorf("%w: estimated %d bytes", txerr.ErrTxTooLarge, size)
	}
	if err := plan.Validate(); err != nil {
		return FeePlan{}, err
	}
	return plan, nil
}

func sweep(inputs []UnspentOutput, total uint64, req Request) (FeePlan, error) {
	if total <= req.ExtraFee {
		return FeePlan{}, fmt.Errorf("%w: have %d, extra fee %d", txerr.ErrInsufficientFunds, total, req.ExtraFee)
	}

	size := EstimateTxSize(len(inputs), 1, req.Compressed)
	fee := MinimumFee(size, inputs, total-req.ExtraFee)
	if fee > total-req.ExtraFee {
		return FeePlan{}, fmt.Errorf("%w: have %d, need %d for fees", txerr.ErrInsufficientFunds, total, fee+req.ExtraFee)
	}

	amount := total - fee - req.ExtraFee
	if amount < DustLimit {
		return FeePlan{}, fmt.Errorf("%w: %d left after fees", txerr.ErrAmountBelowMinimum, amount)
	}

	return FeePlan{
		Fee:                fee,
		ExtraFee:           req.ExtraFee,
		AmountForRecipient: amount,
		Inputs:             inputs,
	}, nil
}

// split is one candidate distribution of the selected value.
type split struct {
	recipient uint64
	change    uint64
	dust      uint64
}

// distribute divides total for a given fee. ok is false when the selected
// inputs do not cover the send.
func distribute(total, fee uint64, req Request) (split, bool) {
	var s split
	fees := fee + req.ExtraFee
	if req.FeeIncluded {
		if total < req.Amount || req.Amount <= fees {
			return split{}, false
		}
		s.recipient = req.Amount - fees
		s.change = total - req.Amount
	} else {
		if total < req.Amount || total-req.Amount < fees {
			return split{}, false
		}
		s.recipient = req.Amount
		s.change = total - req.Amount - fee - req.ExtraFee
	}

	if s.change > 0 && s.change < DustLimit {
		s.dust, s.change = s.change, 0
	}
	return s, true
}

func targeted(available []UnspentOutput, total uint64, req Request) (FeePlan, error) {
	if req.Amount < DustLimit {
		return FeePlan{}, fmt.Errorf("%w: %d is below the dust limit", txerr.ErrAmountBelowMinimum, req.Amount)
	}
	if req.Amount > total || (!req.FeeIncluded && req.ExtraFee > total-req.Amount) {
		return FeePlan{}, fmt.Errorf("%w: have %d, amount %d, extra fee %d", txerr.ErrInsufficientFunds, total, req.Amount, req.ExtraFee)
	}

	var (
		selected    uint64
		unconverged bool
	)
	for i := range available {
		selected += available[i].Value
		inputs := available[:i+1]

		plan, err := accumulate(inputs, selected, req)
		switch {
		case err == nil:
			return plan, nil
		case errors.Is(err, txerr.ErrFeeNotConverged):
			unconverged = true
		case errors.Is(err, txerr.ErrInsufficientFunds):
		default:
			return FeePlan{}, err
		}
	}

	if unconverged {
		return FeePlan{}, fmt.Errorf("%w after %d rounds", txerr.ErrFeeNotConverged, MaxFeeRounds)
	}
	if req.FeeIncluded {
		return FeePlan{}, fmt.Errorf("%w: amount %d does not cover the fee", txerr.ErrAmountBelowMinimum, req.Amount)
	}
	return FeePlan{}, fmt.Errorf("%w: amount %d plus fees exceeds %d available",
		txerr.ErrInsufficientFunds, req.Amount, total)
}

// accumulate runs the fee fixed point for one candidate input set.
func accumulate(inputs []UnspentOutput, selected uint64, req Request) (FeePlan, error) {
	var fee uint64
	for round := 0; round < MaxFeeRounds; round++ {
		s, ok := distribute(selected, fee, req)
		if !ok {
			return FeePlan{}, txerr.ErrInsufficientFunds
		}

		outputs := 1
		minOutput := s.recipient
		if s.change > 0 {
			outputs = 2
			minOutput = min(minOutput, s.change)
		}

		next := MinimumFee(EstimateTxSize(len(inputs), outputs, req.Compressed), inputs, minOutput)
		if next != fee {
			fee = next
			continue
		}

		if s.recipient < DustLimit {
			return FeePlan{}, txerr.ErrInsufficientFunds
		}
		return FeePlan{
			Fee:                fee + s.dust,
			ExtraFee:           req.ExtraFee,
			Change:             s.change,
			AmountForRecipient: s.recipient,
			DustAbsorbed:       s.dust,
			Inputs:             append([]UnspentOutput(nil), inputs...),
		}, nil
	}
	return FeePlan{}, txerr.ErrFeeNotConverged
}
