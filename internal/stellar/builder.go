package stellar

import (
	"crypto/ed25519"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

const (
	// StroopsPerLumen is 10^7; amounts are carried in stroops.
	StroopsPerLumen = 10_000_000
	// MinCreateAmount is the smallest starting balance a new account accepts.
	MinCreateAmount = StroopsPerLumen
	MaxMemoText     = 28
	DefaultTimeout  = 5 * time.Minute
)

type Config struct {
	Passphrase string
	Timeout    time.Duration
}

// Account is the provider snapshot for one send.
type Account struct {
	Sequence int64
	Balance  *big.Int
	// Reserve is the part of the balance that cannot be spent.
	Reserve *big.Int
	// TargetFunded reports whether the destination already exists on the
	// ledger. Unfunded targets are created instead of paid.
	TargetFunded bool
	// Now anchors the time bounds; zero means the wall clock.
	Now time.Time
}

type Builder struct {
	cfg     Config
	pubKey  []byte
	address string
	account Account
	logger  logrus.FieldLogger
}

func NewBuilder(cfg Config, pubKey []byte, account Account, logger logrus.FieldLogger) (*Builder, error) {
	address, err := AddressFromPubKey(pubKey)
	if err != nil {
		return nil, err
	}
	if cfg.Passphrase == "" {
		cfg.Passphrase = network.PublicNetworkPassphrase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if account.Balance == nil {
		account.Balance = new(big.Int)
	}
	if account.Reserve == nil {
		account.Reserve = new(big.Int)
	}
	return &Builder{
		cfg:     cfg,
		pubKey:  append([]byte(nil), pubKey...),
		address: address,
		account: account,
		logger:  logger.WithField("chain", types.Stellar.String()),
	}, nil
}

func (b *Builder) Address() string {
	return b.address
}

func (b *Builder) Construct(req types.SendRequest) (types.Unsigned, error) {
	return b.Build(req)
}

// FormatStroops renders stroops as the 7-decimal lumen string operations carry.
func FormatStroops(stroops int64) string {
	return decimal.New(stroops, -7).StringFixed(7)
}

// Build makes a single payment, or a create account operation when the
// target is not funded yet. req.Fee is the total fee in stroops; with one
// operation it is also the base fee.
func (b *Builder) Build(req types.SendRequest) (*UnsignedTx, error) {
	if !ValidateAddress(req.Target) {
		return nil, fmt.Errorf("%w: %s", txerr.ErrInvalidAddress, req.Target)
	}
	if req.Target == b.address {
		return nil, fmt.Errorf("%w: target is the source account", txerr.ErrInvalidAddress)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 || !req.Amount.IsInt64() {
		return nil, fmt.Errorf("%w: amount %v", txerr.ErrAmountBelowMinimum, req.Amount)
	}
	fee := int64(txnbuild.MinBaseFee)
	if req.Fee != nil && req.Fee.Sign() != 0 {
		if !req.Fee.IsInt64() || req.Fee.Int64() < int64(txnbuild.MinBaseFee) {
			return nil, fmt.Errorf("%w: fee %s below %d stroops", txerr.ErrFeeOutOfBounds, req.Fee, txnbuild.MinBaseFee)
		}
		fee = req.Fee.Int64()
		if fee > math.MaxUint32 {
			return nil, fmt.Errorf("%w: fee %d above %d stroops", txerr.ErrFeeOutOfBounds, fee, uint32(math.MaxUint32))
		}
	}
	if len(req.Memo) > MaxMemoText {
		return nil, fmt.Errorf("memo has %d bytes, limit %d", len(req.Memo), MaxMemoText)
	}

	amount := req.Amount.Int64()
	if req.FeeIncluded {
		amount -= fee
		if amount <= 0 {
			return nil, fmt.Errorf("%w: amount %s does not cover fee %d", txerr.ErrAmountBelowMinimum, req.Amount, fee)
		}
	}
	spendable := new(big.Int).Sub(b.account.Balance, b.account.Reserve)
	if need := new(big.Int).Add(big.NewInt(amount), big.NewInt(fee)); spendable.Cmp(need) < 0 {
		return nil, fmt.Errorf("%w: spendable %s, need %s", txerr.ErrInsufficientFunds, spendable, need)
	}

	var op txnbuild.Operation
	if b.account.TargetFunded {
		op = &txnbuild.Payment{
			Destination: req.Target,
			Amount:      FormatStroops(amount),
			Asset:       txnbuild.NativeAsset{},
		}
	} else {
		if amount < MinCreateAmount {
			return nil, fmt.Errorf("%w: new account needs at least %s XLM", txerr.ErrAmountBelowMinimum, FormatStroops(MinCreateAmount))
		}
		op = &txnbuild.CreateAccount{
			Destination: req.Target,
			Amount:      FormatStroops(amount),
		}
	}

	var memo txnbuild.Memo
	if req.Memo != "" {
		memo = txnbuild.MemoText(req.Memo)
	}

	now := b.account.Now
	if now.IsZero() {
		now = time.Now()
	}
	source := txnbuild.NewSimpleAccount(b.address, b.account.Sequence)
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              fee,
		Memo:                 memo,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimebounds(0, now.Add(b.cfg.Timeout).Unix()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	hash, err := tx.Hash(b.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to hash transaction: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"sequence": b.account.Sequence + 1,
		"amount":   FormatStroops(amount),
		"fee":      fee,
		"create":   !b.account.TargetFunded,
	}).Debug("built unsigned transaction")

	return &UnsignedTx{
		Amount:  amount,
		Fee:     fee,
		address: b.address,
		pubKey:  b.pubKey,
		tx:      tx,
		hash:    hash,
	}, nil
}

type UnsignedTx struct {
	Amount int64
	Fee    int64

	address string
	pubKey  []byte
	tx      *txnbuild.Transaction
	hash    [32]byte
}

// TxID is the hex network hash.
func (tx *UnsignedTx) TxID() string {
	return codec.BytesToHex(tx.hash[:])
}

func (tx *UnsignedTx) DigestsToSign() [][]byte {
	return [][]byte{append([]byte(nil), tx.hash[:]...)}
}

// AssembleSigned verifies the card signature, attaches it as a decorated
// signature and returns the base64 XDR envelope.
func (tx *UnsignedTx) AssembleSigned(raw []byte) ([]byte, error) {
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", txerr.ErrInvalidSignatureLength, len(raw), ed25519.SignatureSize)
	}
	if !ed25519.Verify(tx.pubKey, tx.hash[:], raw) {
		return nil, txerr.ErrSignatureMismatch
	}

	kp, err := keypair.ParseAddress(tx.address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source address: %w", err)
	}
	signed, err := tx.tx.AddSignatureDecorated(xdr.DecoratedSignature{
		Hint:      xdr.SignatureHint(kp.Hint()),
		Signature: xdr.Signature(append([]byte(nil), raw...)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach signature: %w", err)
	}
	envelope, err := signed.Base64()
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return []byte(envelope), nil
}
