package utxo

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/coinengine/internal/txerr"
)

func output(n byte, value uint64, conf int64) UnspentOutput {
	var h chainhash.Hash
	h[0] = n
	return UnspentOutput{
		TxID:          h,
		Index:         uint32(n),
		Value:         value,
		Confirmations: conf,
		SpendScript:   []byte{0x76, 0xa9},
	}
}

func TestMinimumFee(t *testing.T) {
	tests := []struct {
		name  string
		txLen int
		want  uint64
	}{
		{"tiny", 189, 10000},
		{"just below one kb", 999, 10000},
		{"one kb", 1000, 20000},
		{"one and a half kb", 1500, 20000},
		{"five kb", 5000, 60000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinimumFee(tt.txLen, nil, 0))
		})
	}
}

func TestIsZeroFeeAllowed(t *testing.T) {
	tests := []struct {
		name      string
		txLen     int
		outputs   []UnspentOutput
		minOutput uint64
		want      bool
	}{
		{
			name:      "priority below threshold",
			txLen:     5000,
			outputs:   []UnspentOutput{output(1, 50_000_000, 10)},
			minOutput: 20_000_000,
			want:      false,
		},
		{
			name:      "high priority",
			txLen:     189,
			outputs:   []UnspentOutput{output(1, 1_000_000_000, 1000)},
			minOutput: 20_000_000,
			want:      true,
		},
		{
			name:      "small output",
			txLen:     189,
			outputs:   []UnspentOutput{output(1, 1_000_000_000, 1000)},
			minOutput: 10_000_000,
			want:      false,
		},
		{
			name:      "too large",
			txLen:     10_000,
			outputs:   []UnspentOutput{output(1, 1_000_000_000, 100_000)},
			minOutput: 20_000_000,
			want:      false,
		},
		{
			name:      "unconfirmed adds nothing",
			txLen:     189,
			outputs:   []UnspentOutput{output(1, 1_000_000_000, 0)},
			minOutput: 20_000_000,
			want:      false,
		},
		{
			// 57_600_001 * 1 / 1 is just above the threshold
			name:      "boundary",
			txLen:     1,
			outputs:   []UnspentOutput{output(1, 57_600_001, 1)},
			minOutput: 20_000_000,
			want:      true,
		},
		{
			name:      "boundary equal",
			txLen:     1,
			outputs:   []UnspentOutput{output(1, 57_600_000, 1)},
			minOutput: 20_000_000,
			want:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsZeroFeeAllowed(tt.txLen, tt.outputs, tt.minOutput))
		})
	}

	// 10 * 50_000_000 / 5000 = 100_000 is well below 57_600_000
	assert.Equal(t, uint64(60000), MinimumFee(5000, []UnspentOutput{output(1, 50_000_000, 10)}, 20_000_000))
}

func TestEstimateTxSize(t *testing.T) {
	assert.Equal(t, 189, EstimateTxSize(1, 1, true))
	assert.Equal(t, 222, EstimateTxSize(1, 2, true))
	assert.Equal(t, 221, EstimateTxSize(1, 1, false))
	assert.Equal(t, 336, EstimateTxSize(2, 1, true))
}

func TestSelectOutputsAndComputeFee(t *testing.T) {
	t.Run("single input without change", func(t *testing.T) {
		plan, err := SelectOutputsAndComputeFee([]UnspentOutput{output(1, 100000, 6)}, 90000, 0, true)
		require.NoError(t, err)
		assert.Equal(t, uint64(10000), plan.Fee)
		assert.Equal(t, uint64(0), plan.Change)
		assert.Equal(t, uint64(90000), plan.AmountForRecipient)
		assert.Equal(t, 1, plan.OutputCount())
		assert.Len(t, plan.Inputs, 1)
	})

	t.Run("change output", func(t *testing.T) {
		plan, err := SelectOutputsAndComputeFee([]UnspentOutput{output(1, 100000, 6)}, 50000, 0, true)
		require.NoError(t, err)
		assert.Equal(t, uint64(10000), plan.Fee)
		assert.Equal(t, uint64(40000), plan.Change)
		assert.Equal(t, 2, plan.OutputCount())
	})

	t.Run("accumulates in caller order", func(t *testing.T) {
		available := []UnspentOutput{output(1, 30000, 1), output(2, 30000, 1), output(3, 50000, 1)}
		plan, err := SelectOutputsAndComputeFee(available, 50000, 0, true)
		require.NoError(t, err)
		require.Len(t, plan.Inputs, 2)
		assert.Equal(t, available[0].TxID, plan.Inputs[0].TxID)
		assert.Equal(t, available[1].TxID, plan.Inputs[1].TxID)
		assert.Equal(t, uint64(10000), plan.Fee)
		assert.Equal(t, uint64(0), plan.Change)
	})

	t.Run("dust change goes to the fee", func(t *testing.T) {
		plan, err := SelectOutputsAndComputeFee([]UnspentOutput{output(1, 100000, 6)}, 89700, 0, true)
		require.NoError(t, err)
		assert.Equal(t, uint64(10300), plan.Fee)
		assert.Equal(t, uint64(300), plan.DustAbsorbed)
		assert.Equal(t, uint64(0), plan.Change)
	})

	t.Run("extra fee", func(t *testing.T) {
		plan, err := SelectOutputsAndComputeFee([]UnspentOutput{output(1, 100000, 6)}, 50000, 5000, true)
		require.NoError(t, err)
		assert.Equal(t, uint64(10000), plan.Fee)
		assert.Equal(t, uint64(5000), plan.ExtraFee)
		assert.Equal(t, uint64(35000), plan.Change)
	})

	t.Run("zero fee with high priority", func(t *testing.T) {
		plan, err := SelectOutputsAndComputeFee([]UnspentOutput{output(1, 1_000_000_000, 1000)}, 500_000_000, 0, true)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), plan.Fee)
		assert.Equal(t, uint64(500_000_000), plan.Change)
	})

	t.Run("sweep", func(t *testing.T) {
		available := []UnspentOutput{output(1, 60000, 1), output(2, 40000, 1)}
		plan, err := SelectOutputsAndComputeFee(available, 0, 500, true)
		require.NoError(t, err)
		assert.Len(t, plan.Inputs, 2)
		assert.Equal(t, uint64(10000), plan.Fee)
		assert.Equal(t, uint64(89500), plan.AmountForRecipient)
		assert.Equal(t, uint64(0), plan.Change)
	})
}

func TestSelectOutputsAndComputeFee_Errors(t *testing.T) {
	tests := []struct {
		name      string
		available []UnspentOutput
		amount    uint64
		extra     uint64
		want      error
	}{
		{"no outputs", nil, 1000, 0, txerr.ErrNoSpendableOutput},
		{"only empty outputs", []UnspentOutput{output(1, 0, 1)}, 1000, 0, txerr.ErrNoSpendableOutput},
		{"not enough for fee", []UnspentOutput{output(1, 50000, 1)}, 45000, 0, txerr.ErrInsufficientFunds},
		{"not enough for amount", []UnspentOutput{output(1, 50000, 1)}, 60000, 0, txerr.ErrInsufficientFunds},
		{"dust amount", []UnspentOutput{output(1, 50000, 1)}, 100, 0, txerr.ErrAmountBelowMinimum},
		{"sweep eaten by fees", []UnspentOutput{output(1, 10200, 1)}, 0, 0, txerr.ErrAmountBelowMinimum},
		{"fee above maximum", []UnspentOutput{output(1, 1_000_000_000, 0)}, 100_000_000, 10_000_000, txerr.ErrFeeOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectOutputsAndComputeFee(tt.available, tt.amount, tt.extra, true)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, txerr.IsInvariant(err))
		})
	}
}

func TestPlan_TooLarge(t *testing.T) {
	available := make([]UnspentOutput, 700)
	for i := range available {
		available[i] = output(byte(i), 100000, 1)
	}
	_, err := Plan(available, Request{Compressed: true})
	require.ErrorIs(t, err, txerr.ErrTxTooLarge)
}

func TestPlan_FeeIncluded(t *testing.T) {
	plan, err := Plan([]UnspentOutput{output(1, 100000, 6)}, Request{
		Amount:      50000,
		FeeIncluded: true,
		Compressed:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), plan.Fee)
	assert.Equal(t, uint64(40000), plan.AmountForRecipient)
	assert.Equal(t, uint64(50000), plan.Change)

	_, err = Plan([]UnspentOutput{output(1, 100000, 6)}, Request{
		Amount:      9000,
		FeeIncluded: true,
		Compressed:  true,
	})
	require.ErrorIs(t, err, txerr.ErrAmountBelowMinimum)
}

// Twenty compressed inputs sit on a kilobyte boundary: with change the size is
// 3015 bytes (fee 40000), without it 2982 bytes (fee 30000). Leaving 40200 over
// the amount flips between dust change and real change on every round.
func TestPlan_NotConverged(t *testing.T) {
	available := make([]UnspentOutput, 0, 20)
	for i := 0; i < 19; i++ {
		available = append(available, output(byte(i), 1000, 0))
	}
	available = append(available, output(19, 200000, 0))

	_, err := Plan(available, Request{Amount: 219000 - 40200, Compressed: true})
	require.ErrorIs(t, err, txerr.ErrFeeNotConverged)
}

func TestPlan_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(8)
		available := make([]UnspentOutput, n)
		for i := range available {
			available[i] = output(byte(i), uint64(1+rng.Intn(2_000_000)), int64(rng.Intn(20)))
		}
		req := Request{
			Amount:      uint64(rng.Intn(3_000_000)),
			ExtraFee:    uint64(rng.Intn(3)) * 1000,
			FeeIncluded: rng.Intn(4) == 0,
			Compressed:  rng.Intn(2) == 0,
		}

		plan, err := Plan(available, req)
		if err != nil {
			assert.False(t, txerr.IsInvariant(err), "iteration %d: %v", iter, err)
			continue
		}
		require.NoError(t, plan.Validate())
		assert.GreaterOrEqual(t, plan.TotalIn(), plan.AmountForRecipient+plan.Fee)
		assert.LessOrEqual(t, plan.Fee+plan.ExtraFee, MaxAllowedFee)
		assert.True(t, plan.Change == 0 || plan.Change >= DustLimit)
		assert.GreaterOrEqual(t, plan.AmountForRecipient, DustLimit)
		if req.Amount > 0 && !req.FeeIncluded {
			assert.Equal(t, req.Amount, plan.AmountForRecipient)
		}
	}
}

func TestFeePlan_Validate(t *testing.T) {
	plan := FeePlan{
		Fee:                10000,
		AmountForRecipient: 80000,
		Change:             5000,
		Inputs:             []UnspentOutput{output(1, 100000, 1)},
	}
	err := plan.Validate()
	require.Error(t, err)
	assert.True(t, txerr.IsInvariant(err))

	plan.Change = 10000
	assert.NoError(t, plan.Validate())
}

func TestPlan_Overflow(t *testing.T) {
	available := []UnspentOutput{output(1, 100000, 6)}
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"amount plus extra fee wraps", Request{Amount: math.MaxUint64 - 1000, ExtraFee: 2000, Compressed: true}, txerr.ErrInsufficientFunds},
		{"amount above max value", Request{Amount: MaxValue + 1, Compressed: true}, txerr.ErrInsufficientFunds},
		{"amount just above inputs", Request{Amount: MaxValue - 10, ExtraFee: 20, Compressed: true}, txerr.ErrInsufficientFunds},
		{"fee included huge amount", Request{Amount: MaxValue, FeeIncluded: true, Compressed: true}, txerr.ErrInsufficientFunds},
		{"extra fee wraps", Request{Amount: 50000, ExtraFee: math.MaxUint64 - 5000, Compressed: true}, txerr.ErrFeeOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Plan(available, tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, txerr.IsInvariant(err))
			assert.Empty(t, plan.Inputs)
		})
	}
}

func TestPlan_InputSumOverflow(t *testing.T) {
	available := []UnspentOutput{output(1, math.MaxInt64, 6), output(2, 10, 6)}
	_, err := Plan(available, Request{Amount: 1000, Compressed: true})
	require.Error(t, err)
	assert.True(t, txerr.IsDecodeError(err))

	available = []UnspentOutput{output(1, math.MaxUint64, 6), output(2, 2, 6)}
	_, err = Plan(available, Request{Compressed: true})
	assert.True(t, txerr.IsDecodeError(err))
}

func TestFeePlan_Validate_Wrapping(t *testing.T) {
	// balances mod 2^64 but pays out far more than the inputs
	plan := FeePlan{
		Fee:                10000,
		AmountForRecipient: math.MaxUint64 - 1000,
		Change:             91001,
		Inputs:             []UnspentOutput{output(1, 100000, 6)},
	}
	err := plan.Validate()
	require.Error(t, err)
	assert.True(t, txerr.IsInvariant(err))

	plan = FeePlan{
		Fee:                10000,
		ExtraFee:           math.MaxUint64 - 5000,
		AmountForRecipient: 5000,
		Inputs:             []UnspentOutput{output(1, 10000, 6)},
	}
	require.Error(t, plan.Validate())
}

func TestParseUnspentOutputs(t *testing.T) {
	owner := []byte{0x76, 0xa9, 0x14, 1, 2, 3, 0x88, 0xac}
	other := []byte{0x76, 0xa9, 0x14, 9, 9, 9, 0x88, 0xac}

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 3}, []byte{0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(5000, other))
	tx.AddTxOut(wire.NewTxOut(7000, owner))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	outs, err := ParseUnspentOutputs(buf.Bytes(), owner, 3)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, tx.TxHash(), outs[0].TxID)
	assert.Equal(t, uint32(1), outs[0].Index)
	assert.Equal(t, uint64(7000), outs[0].Value)
	assert.Equal(t, int64(3), outs[0].Confirmations)
	assert.Equal(t, owner, outs[0].SpendScript)

	_, err = ParseUnspentOutputs(buf.Bytes()[:10], owner, 3)
	assert.True(t, txerr.IsDecodeError(err))
}

func TestUpdateAvailable(t *testing.T) {
	a, b, c := output(1, 1000, 1), output(2, 2000, 1), output(3, 3000, 1)
	change := output(4, 500, 0)

	got := UpdateAvailable([]UnspentOutput{a, b, c}, []UnspentOutput{a, c}, &change)
	require.Len(t, got, 2)
	assert.Equal(t, b.TxID, got[0].TxID)
	assert.Equal(t, change.TxID, got[1].TxID)

	got = UpdateAvailable([]UnspentOutput{a}, nil, nil)
	assert.Len(t, got, 1)
}
