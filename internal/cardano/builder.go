package cardano

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

// Input is an unspent output owned by the wallet.
type Input struct {
	TxHash [32]byte
	Index  uint32
	Amount uint64
}

type Output struct {
	Address string
	Amount  uint64

	raw []byte
}

// Account is the provider snapshot the builder needs.
type Account struct {
	Inputs []Input
	// Slot is the current tip; the transaction expires Slot + TTL.
	Slot uint64
}

type Config struct {
	Network   types.Network
	FeeA      uint64
	FeeB      decimal.Decimal
	MinOutput uint64
	TTL       uint64
}

type Builder struct {
	chain   types.Chain
	cfg     Config
	pubKey  []byte
	address string
	account Account
	logger  logrus.FieldLogger
}

func NewBuilder(chain types.Chain, cfg Config, pubKey []byte, account Account, logger logrus.FieldLogger) (*Builder, error) {
	if chain != types.Cardano && chain != types.CardanoShelley {
		return nil, fmt.Errorf("unsupported chain: %s", chain)
	}
	address, err := DeriveAddress(chain, cfg.Network, pubKey)
	if err != nil {
		return nil, err
	}
	if cfg.FeeA == 0 {
		cfg.FeeA = DefaultFeeA
	}
	if cfg.FeeB.IsZero() {
		cfg.FeeB = DefaultFeeB(chain)
	}
	if cfg.MinOutput == 0 {
		cfg.MinOutput = DefaultMinOutput
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	return &Builder{
		chain:   chain,
		cfg:     cfg,
		pubKey:  append([]byte(nil), pubKey...),
		address: address,
		account: account,
		logger:  logger.WithField("chain", chain.String()),
	}, nil
}

func (b *Builder) Address() string {
	return b.address
}

func (b *Builder) Construct(req types.SendRequest) (types.Unsigned, error) {
	return b.Build(req)
}

// Build spends every input of the account. req.Fee, when set, is a floor for
// the fee; the size based minimum is used otherwise.
func (b *Builder) Build(req types.SendRequest) (*UnsignedTx, error) {
	target, err := addressBytes(req.Target, b.cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", txerr.ErrInvalidAddress, req.Target, err)
	}
	own, err := addressBytes(b.address, b.cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to decode own address: %w", err)
	}

	if req.Amount == nil || req.Amount.Sign() <= 0 || !req.Amount.IsUint64() {
		return nil, fmt.Errorf("%w: amount %v", txerr.ErrAmountBelowMinimum, req.Amount)
	}
	amount := req.Amount.Uint64()
	if amount > MaxSupply {
		return nil, fmt.Errorf("%w: amount %d above supply %d", txerr.ErrInsufficientFunds, amount, MaxSupply)
	}
	var floor uint64
	if req.Fee != nil {
		if req.Fee.Sign() < 0 || !req.Fee.IsUint64() {
			return nil, fmt.Errorf("%w: fee %s", txerr.ErrFeeOutOfBounds, req.Fee)
		}
		floor = req.Fee.Uint64()
	}

	var total uint64
	for _, in := range b.account.Inputs {
		if in.Amount > MaxSupply-total {
			return nil, txerr.NewDecodeError("utxo set", fmt.Sprintf("input values overflow at %x:%d", in.TxHash, in.Index), nil)
		}
		total += in.Amount
	}
	if len(b.account.Inputs) == 0 || total == 0 {
		return nil, txerr.ErrNoSpendableOutput
	}

	tx := &UnsignedTx{
		chain:  b.chain,
		pubKey: b.pubKey,
		Inputs: append([]Input(nil), b.account.Inputs...),
		TTL:    b.account.Slot + b.cfg.TTL,
	}

	var fee uint64
	converged := false
	for round := 0; round < MaxFeeRounds; round++ {
		recipient, change, err := split(total, amount, fee, req.FeeIncluded)
		if err != nil {
			return nil, err
		}
		tx.Fee = fee
		tx.Outputs = outputs(req.Target, target, recipient, b.address, own, change)
		size, err := tx.estimateSize()
		if err != nil {
			return nil, err
		}
		next := max(b.cfg.MinimumFee(size), floor)
		if next == fee {
			converged = true
			break
		}
		fee = next
	}
	if !converged {
		return nil, fmt.Errorf("%w: after %d rounds", txerr.ErrFeeNotConverged, MaxFeeRounds)
	}

	recipient, change, _ := split(total, amount, fee, req.FeeIncluded)
	if recipient < b.cfg.MinOutput {
		return nil, fmt.Errorf("%w: recipient gets %d, minimum %d", txerr.ErrAmountBelowMinimum, recipient, b.cfg.MinOutput)
	}
	if change > 0 && change < b.cfg.MinOutput {
		fee += change
		change = 0
	}
	tx.Fee = fee
	tx.Outputs = outputs(req.Target, target, recipient, b.address, own, change)
	if err := tx.prepare(); err != nil {
		return nil, err
	}
	if sum := recipient + change + fee; sum != total {
		return nil, txerr.Invariant("outputs plus fee equal inputs", map[string]int64{
			"total": int64(total), "recipient": int64(recipient), "change": int64(change), "fee": int64(fee),
		})
	}

	b.logger.WithFields(logrus.Fields{
		"inputs": len(tx.Inputs),
		"fee":    fee,
		"change": change,
		"ttl":    tx.TTL,
	}).Debug("built unsigned transaction")
	return tx, nil
}

func split(total, amount, fee uint64, feeIncluded bool) (recipient, change uint64, err error) {
	if feeIncluded {
		if amount > total {
			return 0, 0, fmt.Errorf("%w: have %d, need %d", txerr.ErrInsufficientFunds, total, amount)
		}
		if fee >= amount {
			return 0, 0, fmt.Errorf("%w: amount %d does not cover fee %d", txerr.ErrAmountBelowMinimum, amount, fee)
		}
		return amount - fee, total - amount, nil
	}
	if amount > total || fee > total-amount {
		return 0, 0, fmt.Errorf("%w: have %d, need %d plus fee %d", txerr.ErrInsufficientFunds, total, amount, fee)
	}
	return amount, total - amount - fee, nil
}

func outputs(to string, toRaw []byte, amount uint64, own string, ownRaw []byte, change uint64) []Output {
	outs := []Output{{Address: to, Amount: amount, raw: toRaw}}
	if change > 0 {
		outs = append(outs, Output{Address: own, Amount: change, raw: ownRaw})
	}
	return outs
}

// UnsignedTx is a transaction body waiting for one witness.
type UnsignedTx struct {
	Inputs  []Input
	Outputs []Output
	Fee     uint64
	TTL     uint64

	chain  types.Chain
	pubKey []byte
	body   []byte
	digest []byte
}

func (tx *UnsignedTx) encodeBody() ([]byte, error) {
	ins := make([]any, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		ins = append(ins, []any{in.TxHash[:], uint64(in.Index)})
	}
	outs := make([]any, 0, len(tx.Outputs))
	for _, out := range tx.Outputs {
		outs = append(outs, []any{out.raw, out.Amount})
	}
	body, err := codec.CBOREncodeMap(map[uint64]any{
		0: ins,
		1: outs,
		2: tx.Fee,
		3: tx.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction body: %w", err)
	}
	return body, nil
}

func (tx *UnsignedTx) prepare() error {
	body, err := tx.encodeBody()
	if err != nil {
		return err
	}
	tx.body = body
	tx.digest = codec.Blake2b256(body)
	return nil
}

// estimateSize measures the signed transaction with a zero signature. Real
// signatures have the same length, so the estimate is exact.
func (tx *UnsignedTx) estimateSize() (int, error) {
	body, err := tx.encodeBody()
	if err != nil {
		return 0, err
	}
	signed, err := tx.encodeSigned(body, make([]byte, ed25519.SignatureSize))
	if err != nil {
		return 0, err
	}
	return len(signed), nil
}

func (tx *UnsignedTx) witnesses(signature []byte) map[uint64]any {
	if tx.chain == types.Cardano {
		return map[uint64]any{
			2: []any{[]any{tx.pubKey, signature, make([]byte, ChainCodeSize), emptyAttributes}},
		}
	}
	return map[uint64]any{
		0: []any{[]any{tx.pubKey, signature}},
	}
}

func (tx *UnsignedTx) encodeSigned(body, signature []byte) ([]byte, error) {
	signed, err := codec.CBOREncodeArray(cbor.RawMessage(body), tx.witnesses(signature), true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return signed, nil
}

// TxID is the hex Blake2b-256 hash of the body.
func (tx *UnsignedTx) TxID() string {
	return codec.BytesToHex(tx.digest)
}

func (tx *UnsignedTx) Body() []byte {
	return append([]byte(nil), tx.body...)
}

// TotalOut is the sum of the outputs without the fee.
func (tx *UnsignedTx) TotalOut() *big.Int {
	sum := new(big.Int)
	for _, out := range tx.Outputs {
		sum.Add(sum, new(big.Int).SetUint64(out.Amount))
	}
	return sum
}

func (tx *UnsignedTx) DigestsToSign() [][]byte {
	return [][]byte{append([]byte(nil), tx.digest...)}
}

// AssembleSigned checks the card's ed25519 signature against the wallet key
// and returns [body, witnesses, true, null].
func (tx *UnsignedTx) AssembleSigned(raw []byte) ([]byte, error) {
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", txerr.ErrInvalidSignatureLength, len(raw), ed25519.SignatureSize)
	}
	if !ed25519.Verify(tx.pubKey, tx.digest, raw) {
		return nil, txerr.ErrSignatureMismatch
	}
	return tx.encodeSigned(tx.body, raw)
}

// EncodeBase64 is the form the submit API takes.
func EncodeBase64(signed []byte) string {
	return base64.StdEncoding.EncodeToString(signed)
}
