package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ltcsuite/ltcd/ltcutil"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/util"
	"github.com/vultisig/coinengine/internal/utxo"
	"github.com/vultisig/coinengine/internal/utxo/address"
)

// Builder constructs sends for one Bitcoin-family wallet from a snapshot of its
// unspent outputs. SendRequest.Fee, when set, is paid on top of the minimum fee.
type Builder struct {
	chain     types.Chain
	net       types.Network
	family    Family
	pubKey    []byte
	from      address.UTXOAddress
	available []utxo.UnspentOutput
	logger    logrus.FieldLogger
}

func NewBuilder(
	chain types.Chain,
	net types.Network,
	pubKey []byte,
	available []utxo.UnspentOutput,
	logger logrus.FieldLogger,
) (*Builder, error) {
	family, err := FamilyOf(chain)
	if err != nil {
		return nil, err
	}
	from, err := address.FromPubKey(chain, net, pubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wallet address: %w", err)
	}
	return &Builder{
		chain:     chain,
		net:       net,
		family:    family,
		pubKey:    pubKey,
		from:      from,
		available: available,
		logger:    logger.WithField("chain", chain.String()),
	}, nil
}

// Address is the wallet's own P2PKH address, also used for change.
func (b *Builder) Address() address.UTXOAddress {
	return b.from
}

// Plan runs input selection for req without building the transaction.
func (b *Builder) Plan(req types.SendRequest) (utxo.FeePlan, error) {
	amount, err := util.ToUint64(txerr.ErrAmountBelowMinimum, req.Amount)
	if err != nil {
		return utxo.FeePlan{}, err
	}
	if limit := maxSupply(b.chain); amount > limit {
		return utxo.FeePlan{}, fmt.Errorf("%w: amount %d above supply %d", txerr.ErrInsufficientFunds, amount, limit)
	}
	extra, err := util.ToUint64(txerr.ErrFeeOutOfBounds, req.Fee)
	if err != nil {
		return utxo.FeePlan{}, err
	}

	plan, err := utxo.Plan(b.available, utxo.Request{
		Amount:      amount,
		ExtraFee:    extra,
		FeeIncluded: req.FeeIncluded,
		Compressed:  len(b.pubKey) == 33,
	})
	if err != nil {
		if txerr.IsInvariant(err) {
			b.logger.WithError(err).Error("fee plan invariant violated")
		}
		return utxo.FeePlan{}, fmt.Errorf("failed to plan %s send: %w", b.chain, err)
	}
	return plan, nil
}

func (b *Builder) Construct(req types.SendRequest) (types.Unsigned, error) {
	return b.Build(req)
}

// Build is Construct returning the concrete transaction.
func (b *Builder) Build(req types.SendRequest) (*UnsignedTx, error) {
	to, err := address.NewFromString(b.chain, b.net, req.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", txerr.ErrInvalidAddress, req.Target, err)
	}

	plan, err := b.Plan(req)
	if err != nil {
		return nil, err
	}

	outputs, err := buildOutputs(to, b.from, plan)
	if err != nil {
		return nil, err
	}

	tx, err := newUnsignedTx(b.family, b.pubKey, plan, outputs)
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(logrus.Fields{
		"inputs":    len(plan.Inputs),
		"amount":    plan.AmountForRecipient,
		"fee":       plan.Fee,
		"extra_fee": plan.ExtraFee,
		"change":    plan.Change,
		"dust":      plan.DustAbsorbed,
	}).Debug("built unsigned transaction")
	return tx, nil
}

// maxSupply is the most base units that can ever exist on chain.
func maxSupply(chain types.Chain) uint64 {
	if chain == types.Litecoin {
		return uint64(ltcutil.MaxSatoshi)
	}
	return uint64(btcutil.MaxSatoshi)
}
