package util

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vultisig/coinengine/internal/types"
)

// NativeDecimals maps chain to native coin decimals
var NativeDecimals = map[types.Chain]int32{
	types.Bitcoin:        8,
	types.BitcoinCash:    8,
	types.Litecoin:       8,
	types.Ethereum:       18,
	types.Cardano:        6,
	types.CardanoShelley: 6,
	types.EOS:            4,
	types.Stellar:        7,
	types.Binance:        8,
}

// GetNativeDecimals returns the native coin decimals for a chain
func GetNativeDecimals(chain types.Chain) (int32, error) {
	decimals, ok := NativeDecimals[chain]
	if !ok {
		return 0, fmt.Errorf("unknown chain: %s", chain.String())
	}
	return decimals, nil
}

// ToBaseUnits converts a human-readable amount to base units
// e.g., "10" USDC (6 decimals) -> "10000000"
func ToBaseUnits(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits converts base units to a human-readable amount
// e.g., "10000000" with 6 decimals -> "10"
func FromBaseUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ToUint64 narrows a base-unit amount. Negative values and values past uint64
// are reported wrapped in kind. A nil amount is zero.
func ToUint64(kind error, v *big.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", kind, v)
	}
	return v.Uint64(), nil
}
