package binance

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/sig"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

const (
	MainnetChainID = "Binance-Chain-Tigris"
	TestnetChainID = "Binance-Chain-Ganges"
	DefaultDenom   = "BNB"
	// DefaultTransferFee is the fixed fee of a single-coin transfer, in jager.
	DefaultTransferFee = 37500
	MaxMemoSize        = 128
)

type Config struct {
	Network types.Network
	ChainID string
	Denom   string
}

type Account struct {
	AccountNumber int64
	Sequence      int64
	Balance       *big.Int
}

type Builder struct {
	cfg     Config
	pubKey  []byte
	from    []byte
	address string
	account Account
	logger  logrus.FieldLogger
}

func NewBuilder(cfg Config, pubKey []byte, account Account, logger logrus.FieldLogger) (*Builder, error) {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	compressed := pub.SerializeCompressed()
	from := codec.Hash160(compressed)
	address, err := encodeAddress(from, cfg.Network)
	if err != nil {
		return nil, err
	}
	if cfg.ChainID == "" {
		cfg.ChainID = MainnetChainID
		if cfg.Network == types.Testnet {
			cfg.ChainID = TestnetChainID
		}
	}
	if cfg.Denom == "" {
		cfg.Denom = DefaultDenom
	}
	if account.Balance == nil {
		account.Balance = new(big.Int)
	}
	return &Builder{
		cfg:     cfg,
		pubKey:  compressed,
		from:    from,
		address: address,
		account: account,
		logger:  logger.WithField("chain", types.Binance.String()),
	}, nil
}

func (b *Builder) Address() string {
	return b.address
}

func (b *Builder) Construct(req types.SendRequest) (types.Unsigned, error) {
	return b.Build(req)
}

// Build makes a single-coin transfer. The fee is charged by the chain and
// only checked against the balance here; nil means DefaultTransferFee.
func (b *Builder) Build(req types.SendRequest) (*UnsignedTx, error) {
	to, err := decodeAddress(req.Target, b.cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", txerr.ErrInvalidAddress, req.Target, err)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 || !req.Amount.IsInt64() {
		return nil, fmt.Errorf("%w: amount %v", txerr.ErrAmountBelowMinimum, req.Amount)
	}
	fee := int64(DefaultTransferFee)
	if req.Fee != nil {
		if req.Fee.Sign() < 0 || !req.Fee.IsInt64() {
			return nil, fmt.Errorf("%w: fee %s", txerr.ErrFeeOutOfBounds, req.Fee)
		}
		fee = req.Fee.Int64()
	}
	if len(req.Memo) > MaxMemoSize {
		return nil, fmt.Errorf("memo has %d bytes, limit %d", len(req.Memo), MaxMemoSize)
	}

	amount := req.Amount.Int64()
	if req.FeeIncluded {
		amount -= fee
		if amount <= 0 {
			return nil, fmt.Errorf("%w: amount %s does not cover fee %d", txerr.ErrAmountBelowMinimum, req.Amount, fee)
		}
	}
	if need := new(big.Int).Add(big.NewInt(amount), big.NewInt(fee)); b.account.Balance.Cmp(need) < 0 {
		return nil, fmt.Errorf("%w: balance %s, need %s", txerr.ErrInsufficientFunds, b.account.Balance, need)
	}

	coins := []Coin{{Denom: b.cfg.Denom, Amount: amount}}
	tx := &UnsignedTx{
		Msg: MsgSend{
			Inputs:  []IO{{Address: b.from, Coins: coins}},
			Outputs: []IO{{Address: to, Coins: coins}},
		},
		Memo:    req.Memo,
		Fee:     fee,
		account: b.account,
		pubKey:  b.pubKey,
	}

	tx.signBytes, err = b.signBytes(req.Target, tx)
	if err != nil {
		return nil, err
	}
	tx.digest = codec.Sha256(tx.signBytes)

	b.logger.WithFields(logrus.Fields{
		"account_number": b.account.AccountNumber,
		"sequence":       b.account.Sequence,
		"amount":         amount,
		"fee":            fee,
	}).Debug("built unsigned transaction")
	return tx, nil
}

// The sign document fields are declared in key order so encoding/json emits
// the sorted form the chain hashes.
type signCoin struct {
	Amount int64  `json:"amount"`
	Denom  string `json:"denom"`
}

type signIO struct {
	Address string     `json:"address"`
	Coins   []signCoin `json:"coins"`
}

type signMsg struct {
	Inputs  []signIO `json:"inputs"`
	Outputs []signIO `json:"outputs"`
}

type signDoc struct {
	AccountNumber string    `json:"account_number"`
	ChainID       string    `json:"chain_id"`
	Data          *string   `json:"data"`
	Memo          string    `json:"memo"`
	Msgs          []signMsg `json:"msgs"`
	Sequence      string    `json:"sequence"`
	Source        string    `json:"source"`
}

func (b *Builder) signBytes(target string, tx *UnsignedTx) ([]byte, error) {
	coins := make([]signCoin, 0, len(tx.Msg.Inputs[0].Coins))
	for _, c := range tx.Msg.Inputs[0].Coins {
		coins = append(coins, signCoin{Amount: c.Amount, Denom: c.Denom})
	}
	doc := signDoc{
		AccountNumber: strconv.FormatInt(b.account.AccountNumber, 10),
		ChainID:       b.cfg.ChainID,
		Memo:          tx.Memo,
		Msgs: []signMsg{{
			Inputs:  []signIO{{Address: b.address, Coins: coins}},
			Outputs: []signIO{{Address: target, Coins: coins}},
		}},
		Sequence: strconv.FormatInt(b.account.Sequence, 10),
		Source:   "0",
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign document: %w", err)
	}
	return out, nil
}

type UnsignedTx struct {
	Msg  MsgSend
	Memo string
	Fee  int64

	account   Account
	pubKey    []byte
	signBytes []byte
	digest    []byte
}

// SignBytes is the canonical JSON whose SHA256 is signed.
func (tx *UnsignedTx) SignBytes() []byte {
	return append([]byte(nil), tx.signBytes...)
}

func (tx *UnsignedTx) DigestsToSign() [][]byte {
	return [][]byte{append([]byte(nil), tx.digest...)}
}

// AssembleSigned checks the card signature against the wallet key and
// returns the length prefixed amino StdTx.
func (tx *UnsignedTx) AssembleSigned(raw []byte) ([]byte, error) {
	sigs, err := sig.SplitRaw(raw, 1)
	if err != nil {
		return nil, err
	}
	if !sigs[0].Verify(tx.digest, tx.pubKey) {
		return nil, txerr.ErrSignatureMismatch
	}
	return tx.StdTx(sigs[0]).MarshalLengthPrefixed(), nil
}

func (tx *UnsignedTx) StdTx(s sig.CanonicalSignature) StdTx {
	return StdTx{
		Msgs: []MsgSend{tx.Msg},
		Signatures: []StdSignature{{
			PubKey:        tx.pubKey,
			Signature:     s.Bytes64(),
			AccountNumber: tx.account.AccountNumber,
			Sequence:      tx.account.Sequence,
		}},
		Memo: tx.Memo,
	}
}

// TxHash is the upper case hex SHA256 of the amino StdTx, as explorers show it.
func TxHash(tx StdTx) string {
	return strings.ToUpper(codec.BytesToHex(codec.Sha256(tx.Marshal())))
}
