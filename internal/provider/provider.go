// Package provider combines chain data sources. A send needs one answer;
// providers are tried in order or raced, and the first success wins.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/utxo"
)

var ErrNoProviders = errors.New("no providers configured")

type UTXOProvider interface {
	UnspentOutputs(ctx context.Context, c types.Chain, address string) ([]utxo.UnspentOutput, error)
}

type BalanceProvider interface {
	Balance(ctx context.Context, c types.Chain, address string) (*big.Int, error)
}

// Fallback calls each function in order until one succeeds. It stops early
// when ctx is done.
func Fallback[T any](ctx context.Context, calls ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(calls) == 0 {
		return zero, ErrNoProviders
	}

	errs := make([]error, 0, len(calls))
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := call(ctx)
		if err == nil {
			return v, nil
		}
		errs = append(errs, fmt.Errorf("provider %d: %w", i, err))
	}
	return zero, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// FirstSuccess runs every function concurrently and returns the first
// successful result. The others see their context cancelled.
func FirstSuccess[T any](ctx context.Context, calls ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(calls) == 0 {
		return zero, ErrNoProviders
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan T, 1)
	errs := make([]error, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			v, err := call(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("provider %d: %w", i, err)
				return nil
			}
			select {
			case results <- v:
				cancel()
			default:
			}
			return nil
		})
	}
	_ = g.Wait()

	select {
	case v := <-results:
		return v, nil
	default:
	}
	return zero, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// UTXOFallback queries providers in order.
type UTXOFallback []UTXOProvider

func (p UTXOFallback) UnspentOutputs(ctx context.Context, c types.Chain, address string) ([]utxo.UnspentOutput, error) {
	calls := make([]func(context.Context) ([]utxo.UnspentOutput, error), 0, len(p))
	for _, up := range p {
		calls = append(calls, func(ctx context.Context) ([]utxo.UnspentOutput, error) {
			return up.UnspentOutputs(ctx, c, address)
		})
	}
	return Fallback(ctx, calls...)
}

// BalanceRace queries providers concurrently.
type BalanceRace []BalanceProvider

func (p BalanceRace) Balance(ctx context.Context, c types.Chain, address string) (*big.Int, error) {
	calls := make([]func(context.Context) (*big.Int, error), 0, len(p))
	for _, bp := range p {
		calls = append(calls, func(ctx context.Context) (*big.Int, error) {
			return bp.Balance(ctx, c, address)
		})
	}
	return FirstSuccess(ctx, calls...)
}
