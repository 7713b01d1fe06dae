package evm

import (
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/sig"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

const (
	DefaultGasLimit      = 21000
	DefaultTokenGasLimit = 60000
)

// Account is the provider snapshot the builder needs.
type Account struct {
	Balance      *big.Int
	TxCount      uint64
	TokenBalance *big.Int
}

type Config struct {
	ChainID       *big.Int
	GasLimit      uint64
	TokenGasLimit uint64
	// Token switches the builder to ERC-20 transfers.
	Token *Token
}

type Builder struct {
	cfg     Config
	pubKey  []byte
	from    ecommon.Address
	account Account
	logger  logrus.FieldLogger
}

func NewBuilder(cfg Config, pubKey []byte, account Account, logger logrus.FieldLogger) (*Builder, error) {
	from, err := AddressFromPubKey(pubKey)
	if err != nil {
		return nil, err
	}
	if cfg.ChainID == nil {
		cfg.ChainID = big.NewInt(1)
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.TokenGasLimit == 0 {
		cfg.TokenGasLimit = DefaultTokenGasLimit
	}
	if account.Balance == nil {
		account.Balance = new(big.Int)
	}
	if account.TokenBalance == nil {
		account.TokenBalance = new(big.Int)
	}
	return &Builder{
		cfg:     cfg,
		pubKey:  pubKey,
		from:    from,
		account: account,
		logger:  logger.WithField("chain", types.Ethereum.String()),
	}, nil
}

func (b *Builder) Address() ecommon.Address {
	return b.from
}

func (b *Builder) Construct(req types.SendRequest) (types.Unsigned, error) {
	return b.Build(req)
}

// Build prices the transaction from req.Fee (total fee in wei): the gas price
// is Fee divided by the gas limit.
func (b *Builder) Build(req types.SendRequest) (*UnsignedTx, error) {
	if !ValidateAddress(req.Target) {
		return nil, fmt.Errorf("%w: %s", txerr.ErrInvalidAddress, req.Target)
	}
	target := ecommon.HexToAddress(req.Target)

	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", txerr.ErrAmountBelowMinimum)
	}
	if req.Fee == nil || req.Fee.Sign() <= 0 {
		return nil, fmt.Errorf("%w: fee must be positive", txerr.ErrFeeOutOfBounds)
	}

	gasLimit := b.cfg.GasLimit
	if b.cfg.Token != nil {
		gasLimit = b.cfg.TokenGasLimit
	}
	gasPrice := new(big.Int).Quo(req.Fee, new(big.Int).SetUint64(gasLimit))
	if gasPrice.Sign() == 0 {
		return nil, fmt.Errorf("%w: fee %s below one wei per gas", txerr.ErrFeeOutOfBounds, req.Fee)
	}
	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))

	tx := &UnsignedTx{
		Nonce:    b.account.TxCount,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		ChainID:  new(big.Int).Set(b.cfg.ChainID),
		pubKey:   b.pubKey,
	}

	if b.cfg.Token != nil {
		if req.FeeIncluded {
			return nil, fmt.Errorf("%w: token fees are paid in ether", txerr.ErrFeeOutOfBounds)
		}
		if b.account.TokenBalance.Cmp(req.Amount) < 0 {
			return nil, fmt.Errorf("%w: token balance %s, amount %s", txerr.ErrInsufficientFunds, b.account.TokenBalance, req.Amount)
		}
		if b.account.Balance.Cmp(fee) < 0 {
			return nil, fmt.Errorf("%w: balance %s does not cover fee %s", txerr.ErrInsufficientFunds, b.account.Balance, fee)
		}
		tx.To = b.cfg.Token.Contract
		tx.Value = new(big.Int)
		tx.Data = transferData(target, req.Amount)
	} else {
		value := new(big.Int).Set(req.Amount)
		if req.FeeIncluded {
			value.Sub(value, fee)
			if value.Sign() <= 0 {
				return nil, fmt.Errorf("%w: amount %s does not cover fee %s", txerr.ErrAmountBelowMinimum, req.Amount, fee)
			}
		}
		if need := new(big.Int).Add(value, fee); b.account.Balance.Cmp(need) < 0 {
			return nil, fmt.Errorf("%w: balance %s, need %s", txerr.ErrInsufficientFunds, b.account.Balance, need)
		}
		tx.To = target
		tx.Value = value
	}

	if err := tx.prepare(); err != nil {
		return nil, err
	}

	b.logger.WithFields(logrus.Fields{
		"nonce":     tx.Nonce,
		"gas_price": tx.GasPrice.String(),
		"gas_limit": tx.GasLimit,
		"value":     tx.Value.String(),
		"token":     b.cfg.Token != nil,
	}).Debug("built unsigned transaction")
	return tx, nil
}

// UnsignedTx is a legacy EIP-155 transaction.
type UnsignedTx struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       ecommon.Address
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int

	pubKey   []byte
	preimage []byte
	digest   []byte
}

func (tx *UnsignedTx) fields() ([][]byte, error) {
	nonce, err := codec.RLPEncodeUint(tx.Nonce)
	if err != nil {
		return nil, err
	}
	gasPrice, err := codec.RLPEncodeInt(tx.GasPrice)
	if err != nil {
		return nil, err
	}
	gasLimit, err := codec.RLPEncodeUint(tx.GasLimit)
	if err != nil {
		return nil, err
	}
	to, err := codec.RLPEncodeElement(tx.To.Bytes())
	if err != nil {
		return nil, err
	}
	value, err := codec.RLPEncodeInt(tx.Value)
	if err != nil {
		return nil, err
	}
	data, err := codec.RLPEncodeElement(tx.Data)
	if err != nil {
		return nil, err
	}
	return [][]byte{nonce, gasPrice, gasLimit, to, value, data}, nil
}

func (tx *UnsignedTx) prepare() error {
	fields, err := tx.fields()
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	chainID, err := codec.RLPEncodeInt(tx.ChainID)
	if err != nil {
		return fmt.Errorf("failed to encode chain id: %w", err)
	}
	empty, _ := codec.RLPEncodeUint(0)

	tx.preimage, err = codec.RLPEncodeList(append(fields, chainID, empty, empty)...)
	if err != nil {
		return fmt.Errorf("failed to encode signing payload: %w", err)
	}
	tx.digest = codec.Keccak256(tx.preimage)
	return nil
}

// Fee is gas price times gas limit.
func (tx *UnsignedTx) Fee() *big.Int {
	return new(big.Int).Mul(tx.GasPrice, new(big.Int).SetUint64(tx.GasLimit))
}

// SigningPayload is the RLP list whose Keccak hash is signed.
func (tx *UnsignedTx) SigningPayload() []byte {
	return append([]byte(nil), tx.preimage...)
}

func (tx *UnsignedTx) DigestsToSign() [][]byte {
	return [][]byte{append([]byte(nil), tx.digest...)}
}

// V returns the EIP-155 v value for a recovery id.
func (tx *UnsignedTx) V(recoveryID byte) *big.Int {
	if tx.ChainID.Sign() == 0 {
		return big.NewInt(27 + int64(recoveryID))
	}
	v := new(big.Int).Lsh(tx.ChainID, 1)
	return v.Add(v, big.NewInt(35+int64(recoveryID)))
}

// AssembleSigned recovers the id of the card signature against the wallet key
// and returns the signed RLP [nonce, gasPrice, gasLimit, to, value, data, v, r, s].
func (tx *UnsignedTx) AssembleSigned(raw []byte) ([]byte, error) {
	sigs, err := sig.SplitRaw(raw, 1)
	if err != nil {
		return nil, err
	}
	s, err := sigs[0].Recover(tx.digest, tx.pubKey)
	if err != nil {
		return nil, err
	}

	fields, err := tx.fields()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	v, err := codec.RLPEncodeInt(tx.V(s.RecoveryID))
	if err != nil {
		return nil, err
	}
	r, err := codec.RLPEncodeInt(s.R)
	if err != nil {
		return nil, err
	}
	ss, err := codec.RLPEncodeInt(s.S)
	if err != nil {
		return nil, err
	}

	signed, err := codec.RLPEncodeList(append(fields, v, r, ss)...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return signed, nil
}
