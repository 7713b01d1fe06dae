// Package btc builds legacy P2PKH transactions for Bitcoin, Litecoin and
// Bitcoin Cash and assembles them from raw card signatures.
package btc

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/sig"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/utxo"
)

const (
	txVersion = 1
	lockTime  = 0
)

// Family holds the signature-hash rules of a chain.
type Family struct {
	SigHash byte
	ForkID  bool
}

func FamilyOf(chain types.Chain) (Family, error) {
	switch chain {
	case types.Bitcoin, types.Litecoin:
		return Family{SigHash: codec.SigHashAll}, nil
	case types.BitcoinCash:
		return Family{SigHash: codec.SigHashAllForkID, ForkID: true}, nil
	default:
		return Family{}, fmt.Errorf("unsupported UTXO chain: %s", chain)
	}
}

// UnsignedInput is an input before the card has signed it.
type UnsignedInput struct {
	PrevOut     wire.OutPoint
	Value       uint64
	SpendScript []byte
}

// SignedInput is an UnsignedInput joined with its signature and final script.
type SignedInput struct {
	UnsignedInput
	Signature sig.CanonicalSignature
	ScriptSig []byte
}

// SignedTx is the broadcastable result of AssembleSigned.
type SignedTx struct {
	Inputs []SignedInput
	Raw    []byte
	TxID   string
}

// UnsignedTx is a constructed transaction with one digest per input.
type UnsignedTx struct {
	Plan    utxo.FeePlan
	Inputs  []UnsignedInput
	Outputs []*wire.TxOut

	family    Family
	pubKey    []byte
	preimages [][]byte
	digests   [][]byte
}

func newUnsignedTx(family Family, pubKey []byte, plan utxo.FeePlan, outputs []*wire.TxOut) (*UnsignedTx, error) {
	tx := &UnsignedTx{
		Plan:    plan,
		Outputs: outputs,
		family:  family,
		pubKey:  append([]byte(nil), pubKey...),
	}
	for _, in := range plan.Inputs {
		tx.Inputs = append(tx.Inputs, UnsignedInput{
			PrevOut:     in.OutPoint(),
			Value:       in.Value,
			SpendScript: in.SpendScript,
		})
	}

	for i := range tx.Inputs {
		var (
			pre []byte
			err error
		)
		if family.ForkID {
			pre, err = tx.forkIDPreimage(i)
		} else {
			pre, err = tx.legacyPreimage(i)
		}
		if err != nil {
			return nil, err
		}
		tx.preimages = append(tx.preimages, pre)
		tx.digests = append(tx.digests, codec.DoubleSha256(pre))
	}
	return tx, nil
}

func (tx *UnsignedTx) msgTx(script func(i int) []byte) *wire.MsgTx {
	msg := wire.NewMsgTx(txVersion)
	for i, in := range tx.Inputs {
		prev := in.PrevOut
		msg.AddTxIn(wire.NewTxIn(&prev, script(i), nil))
	}
	for _, out := range tx.Outputs {
		msg.AddTxOut(wire.NewTxOut(out.Value, out.PkScript))
	}
	msg.LockTime = lockTime
	return msg
}

// DigestsToSign returns one double-SHA256 digest per input, in input order.
func (tx *UnsignedTx) DigestsToSign() [][]byte {
	out := make([][]byte, len(tx.digests))
	for i, d := range tx.digests {
		out[i] = append([]byte(nil), d...)
	}
	return out
}

// RawPayloads returns the signing preimages for cards that hash on-chip.
// Each payload ends with the 4-byte hash type; the card applies double SHA256.
func (tx *UnsignedTx) RawPayloads() ([][]byte, error) {
	out := make([][]byte, len(tx.preimages))
	for i, p := range tx.preimages {
		out[i] = append([]byte(nil), p...)
	}
	return out, nil
}

// Unsigned returns the transaction with empty input scripts.
func (tx *UnsignedTx) Unsigned() ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.msgTx(func(int) []byte { return nil }).SerializeNoWitness(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize unsigned tx: %w", err)
	}
	return buf.Bytes(), nil
}

func (tx *UnsignedTx) AssembleSigned(raw []byte) ([]byte, error) {
	signed, err := tx.Sign(raw)
	if err != nil {
		return nil, err
	}
	return signed.Raw, nil
}

// Sign joins the card output with the inputs. Every signature is checked
// against its digest and the wallet key before it is embedded.
func (tx *UnsignedTx) Sign(raw []byte) (*SignedTx, error) {
	sigs, err := sig.SplitRaw(raw, len(tx.Inputs))
	if err != nil {
		return nil, err
	}

	signed := make([]SignedInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		s := sigs[i]
		if !s.Verify(tx.digests[i], tx.pubKey) {
			return nil, fmt.Errorf("input %d: %w", i, txerr.ErrSignatureMismatch)
		}

		der, err := codec.DERPackSignature(s.R, s.S, tx.family.SigHash)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		scriptSig, err := txscript.NewScriptBuilder().AddData(der).AddData(tx.pubKey).Script()
		if err != nil {
			return nil, fmt.Errorf("failed to build script sig for input %d: %w", i, err)
		}

		signed[i] = SignedInput{
			UnsignedInput: in,
			Signature:     s,
			ScriptSig:     scriptSig,
		}
	}

	msg := tx.msgTx(func(i int) []byte { return signed[i].ScriptSig })
	var buf bytes.Buffer
	if err := msg.SerializeNoWitness(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize signed tx: %w", err)
	}

	return &SignedTx{
		Inputs: signed,
		Raw:    buf.Bytes(),
		TxID:   msg.TxHash().String(),
	}, nil
}
