package eos

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/sig"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

const (
	DefaultContract   = "eosio.token"
	DefaultSymbol     = "EOS"
	DefaultPrecision  = 4
	DefaultPermission = "active"
	DefaultExpiration = 2 * time.Minute

	MaxMemoSize = 256
)

// MainnetChainID identifies EOS mainnet.
var MainnetChainID = []byte{
	0xac, 0xa3, 0x76, 0xf2, 0x06, 0xb8, 0xfc, 0x25, 0xa6, 0xed, 0x44, 0xdb, 0xdc, 0x66, 0x54, 0x7c,
	0x36, 0xc6, 0xc3, 0x3e, 0x3a, 0x11, 0x9f, 0xfb, 0xea, 0xef, 0x94, 0x36, 0x42, 0xf0, 0xe9, 0x06,
}

type Config struct {
	ChainID    []byte
	Contract   string
	Symbol     string
	Precision  uint8
	Permission string
	Expiration time.Duration
}

// Account is the on-chain state the builder needs. EOS accounts are named,
// so the name comes from the wallet, not from the key.
type Account struct {
	Name          string
	Balance       *big.Int
	HeadBlockID   []byte
	HeadBlockTime time.Time
}

type Builder struct {
	cfg     Config
	pubKey  []byte
	account Account
	logger  logrus.FieldLogger
}

func NewBuilder(cfg Config, pubKey []byte, account Account, logger logrus.FieldLogger) (*Builder, error) {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	if !ValidateAccountName(account.Name) {
		return nil, fmt.Errorf("%w: account %q", txerr.ErrInvalidAddress, account.Name)
	}
	if cfg.ChainID == nil {
		cfg.ChainID = MainnetChainID
	}
	if len(cfg.ChainID) != 32 {
		return nil, fmt.Errorf("chain id must be 32 bytes, got %d", len(cfg.ChainID))
	}
	if cfg.Contract == "" {
		cfg.Contract = DefaultContract
	}
	if cfg.Symbol == "" {
		cfg.Symbol = DefaultSymbol
		cfg.Precision = DefaultPrecision
	}
	if cfg.Permission == "" {
		cfg.Permission = DefaultPermission
	}
	if cfg.Expiration == 0 {
		cfg.Expiration = DefaultExpiration
	}
	if account.Balance == nil {
		account.Balance = new(big.Int)
	}
	return &Builder{
		cfg:     cfg,
		pubKey:  pub.SerializeCompressed(),
		account: account,
		logger:  logger.WithField("chain", types.EOS.String()),
	}, nil
}

func (b *Builder) Construct(req types.SendRequest) (types.Unsigned, error) {
	return b.Build(req)
}

// Build packs a single eosio.token transfer. Transfers carry no fee, so a
// non-zero req.Fee is rejected.
func (b *Builder) Build(req types.SendRequest) (*UnsignedTx, error) {
	if !ValidateAccountName(req.Target) {
		return nil, fmt.Errorf("%w: %q", txerr.ErrInvalidAddress, req.Target)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 || !req.Amount.IsInt64() {
		return nil, fmt.Errorf("%w: amount %v", txerr.ErrAmountBelowMinimum, req.Amount)
	}
	if req.Fee != nil && req.Fee.Sign() != 0 {
		return nil, fmt.Errorf("%w: transfers have no fee", txerr.ErrFeeOutOfBounds)
	}
	if b.account.Balance.Cmp(req.Amount) < 0 {
		return nil, fmt.Errorf("%w: balance %s, amount %s", txerr.ErrInsufficientFunds, b.account.Balance, req.Amount)
	}
	if len(req.Memo) > MaxMemoSize {
		return nil, fmt.Errorf("memo has %d bytes, limit %d", len(req.Memo), MaxMemoSize)
	}

	// expiration is seconds since epoch in a uint32
	expiration := b.account.HeadBlockTime.Add(b.cfg.Expiration).Unix()
	if b.account.HeadBlockTime.IsZero() || expiration <= 0 || expiration > math.MaxUint32 {
		return nil, fmt.Errorf("%w: head block time %s", txerr.ErrInvalidState, b.account.HeadBlockTime)
	}

	refNum, refPrefix, err := RefBlockFromID(b.account.HeadBlockID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reference block: %w", err)
	}

	quantity := Asset{Amount: req.Amount.Int64(), Precision: b.cfg.Precision, Symbol: b.cfg.Symbol}
	data, err := transferData(b.account.Name, req.Target, quantity, req.Memo)
	if err != nil {
		return nil, err
	}

	tx := &UnsignedTx{
		Transaction: Transaction{
			Expiration:     uint32(expiration),
			RefBlockNum:    refNum,
			RefBlockPrefix: refPrefix,
			Actions: []Action{{
				Account:       b.cfg.Contract,
				Name:          "transfer",
				Authorization: []PermissionLevel{{Actor: b.account.Name, Permission: b.cfg.Permission}},
				Data:          data,
			}},
		},
		Quantity: quantity,
		pubKey:   b.pubKey,
	}
	tx.packed, err = tx.Transaction.Pack()
	if err != nil {
		return nil, err
	}
	tx.digest = SigningDigest(b.cfg.ChainID, tx.packed)

	b.logger.WithFields(logrus.Fields{
		"from":       b.account.Name,
		"to":         req.Target,
		"quantity":   quantity.String(),
		"expiration": tx.Expiration,
	}).Debug("built unsigned transaction")
	return tx, nil
}

type UnsignedTx struct {
	Transaction
	Quantity Asset

	pubKey []byte
	packed []byte
	digest []byte
}

func (tx *UnsignedTx) Packed() []byte {
	return append([]byte(nil), tx.packed...)
}

func (tx *UnsignedTx) DigestsToSign() [][]byte {
	return [][]byte{append([]byte(nil), tx.digest...)}
}

// PackedTransaction is the push_transaction request body.
type PackedTransaction struct {
	Signatures            []string `json:"signatures"`
	Compression           string   `json:"compression"`
	PackedContextFreeData string   `json:"packed_context_free_data"`
	PackedTrx             string   `json:"packed_trx"`
}

// AssembleSigned recovers the id of the card signature and returns the
// push_transaction JSON.
func (tx *UnsignedTx) AssembleSigned(raw []byte) ([]byte, error) {
	sigs, err := sig.SplitRaw(raw, 1)
	if err != nil {
		return nil, err
	}
	s, err := sigs[0].Recover(tx.digest, tx.pubKey)
	if err != nil {
		return nil, err
	}

	out := PackedTransaction{
		Signatures:  []string{SignatureString(s.Compact(compactHeaderBase + s.RecoveryID))},
		Compression: "none",
		PackedTrx:   codec.BytesToHex(tx.packed),
	}
	signed, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode packed transaction: %w", err)
	}
	return signed, nil
}
