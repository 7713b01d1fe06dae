package cardano

import (
	"github.com/shopspring/decimal"

	"github.com/vultisig/coinengine/internal/types"
)

const (
	// DefaultFeeA is the constant part of the linear fee, in lovelace.
	DefaultFeeA = 155381
	// DefaultMinOutput is the smallest output the ledger accepts, 1 ADA.
	DefaultMinOutput = 1_000_000
	// DefaultTTL is how many slots past the current one a transaction stays valid.
	DefaultTTL = 7200
	// MaxFeeRounds bounds the size/fee fixed point iteration.
	MaxFeeRounds = 4
	// MaxSupply is 45 billion ADA in lovelace. No amount or input sum exceeds it.
	MaxSupply uint64 = 45_000_000_000_000_000
)

var (
	byronFeeB   = decimal.RequireFromString("43.946")
	shelleyFeeB = decimal.NewFromInt(44)
)

// DefaultFeeB returns the per-byte fee coefficient of the chain's era.
func DefaultFeeB(chain types.Chain) decimal.Decimal {
	if chain == types.Cardano {
		return byronFeeB
	}
	return shelleyFeeB
}

// MinimumFee is A + B*size rounded up to whole lovelace.
func (c Config) MinimumFee(size int) uint64 {
	perByte := c.FeeB.Mul(decimal.NewFromInt(int64(size))).Ceil()
	return c.FeeA + uint64(perByte.IntPart())
}
