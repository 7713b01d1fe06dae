package utxo

import (
	"math"
	"math/big"
)

const (
	// MaxAllowedFee caps fee plus extra fee (0.1 BTC).
	MaxAllowedFee uint64 = 10_000_000
	MaxTxSize            = 100_000
	MaxFeeRounds         = 3
	DustLimit     uint64 = 546
	MinFeePerKB   uint64 = 10_000
	// MaxValue bounds any amount and the sum of inputs. Output values are
	// serialized as int64.
	MaxValue      uint64 = math.MaxInt64

	freeTxMaxSize     = 10_000
	freeTxMinOutput   = 10_000_000
	freeTxMinPriority = 57_600_000

	txOverhead      = 9
	inputOverhead   = 41
	maxDERSigPush   = 73
	outputSize      = 33
	compressedLen   = 33
	uncompressedLen = 65
)

// IsZeroFeeAllowed reports whether a transaction qualifies for free relay under
// the legacy priority rule: small, no small outputs, and sum(conf*value)/size
// above the threshold. Unconfirmed outputs add no priority.
func IsZeroFeeAllowed(txLen int, outputs []UnspentOutput, minOutput uint64) bool {
	if txLen <= 0 || txLen >= freeTxMaxSize || minOutput <= freeTxMinOutput {
		return false
	}

	sum := new(big.Int)
	for _, o := range outputs {
		if o.Confirmations <= 0 {
			continue
		}
		p := new(big.Int).SetUint64(o.Value)
		p.Mul(p, big.NewInt(o.Confirmations))
		sum.Add(sum, p)
	}

	priority := sum.Quo(sum, big.NewInt(int64(txLen)))
	return priority.Cmp(big.NewInt(freeTxMinPriority)) > 0
}

// MinimumFee charges MinFeePerKB for every started kilobyte, or nothing when the
// transaction is eligible for free relay.
func MinimumFee(txLen int, outputs []UnspentOutput, minOutput uint64) uint64 {
	if IsZeroFeeAllowed(txLen, outputs, minOutput) {
		return 0
	}
	if txLen < 0 {
		txLen = 0
	}
	return MinFeePerKB * (1 + uint64(txLen)/1000)
}

// EstimateTxSize estimates a P2PKH transaction size assuming worst-case DER
// signatures.
func EstimateTxSize(inputs, outputs int, compressed bool) int {
	pubLen := uncompressedLen
	if compressed {
		pubLen = compressedLen
	}
	return txOverhead + inputs*(inputOverhead+maxDERSigPush+pubLen) + outputs*outputSize
}
