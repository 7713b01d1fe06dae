package eos

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vultisig/coinengine/internal/codec"
)

// Asset is an amount in the smallest unit of a token symbol.
type Asset struct {
	Amount    int64
	Precision uint8
	Symbol    string
}

func validSymbol(s string) bool {
	if len(s) == 0 || len(s) > 7 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// ParseAsset reads the "1.0000 EOS" form.
func ParseAsset(s string) (Asset, error) {
	amount, symbol, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok || !validSymbol(symbol) {
		return Asset{}, fmt.Errorf("invalid asset %q", s)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Asset{}, fmt.Errorf("invalid asset amount %q: %w", amount, err)
	}
	var precision uint8
	if dot := strings.IndexByte(amount, '.'); dot >= 0 {
		precision = uint8(len(amount) - dot - 1)
	}
	if precision > 18 {
		return Asset{}, fmt.Errorf("invalid asset precision %d", precision)
	}
	return Asset{
		Amount:    d.Shift(int32(precision)).IntPart(),
		Precision: precision,
		Symbol:    symbol,
	}, nil
}

func (a Asset) String() string {
	d := decimal.New(a.Amount, -int32(a.Precision))
	return d.StringFixed(int32(a.Precision)) + " " + a.Symbol
}

// pack appends the int64 amount and the symbol code (precision byte, then up
// to seven ASCII characters, zero padded).
func (a Asset) pack(dst []byte) ([]byte, error) {
	if !validSymbol(a.Symbol) {
		return nil, fmt.Errorf("invalid symbol %q", a.Symbol)
	}
	dst = codec.AppendUint64LE(dst, uint64(a.Amount))
	sym := make([]byte, 8)
	sym[0] = a.Precision
	copy(sym[1:], a.Symbol)
	return append(dst, sym...), nil
}
