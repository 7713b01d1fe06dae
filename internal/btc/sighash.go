package btc

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/coinengine/internal/codec"
)

// legacyPreimage serializes the transaction with the spend script of input idx
// in place and every other script empty, followed by the 4-byte hash type.
func (tx *UnsignedTx) legacyPreimage(idx int) ([]byte, error) {
	msg := tx.msgTx(func(i int) []byte {
		if i == idx {
			return tx.Inputs[i].SpendScript
		}
		return nil
	})

	var buf bytes.Buffer
	buf.Grow(msg.SerializeSizeStripped() + 4)
	if err := msg.SerializeNoWitness(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize body for input %d: %w", idx, err)
	}
	return codec.AppendUint32LE(buf.Bytes(), uint32(tx.family.SigHash)), nil
}

// forkIDPreimage builds the BIP143-style preimage Bitcoin Cash requires for
// SIGHASH_ALL|FORKID signatures.
func (tx *UnsignedTx) forkIDPreimage(idx int) ([]byte, error) {
	var prevouts, sequences, outputs []byte
	for _, in := range tx.Inputs {
		prevouts = append(prevouts, in.PrevOut.Hash[:]...)
		prevouts = codec.AppendUint32LE(prevouts, in.PrevOut.Index)
		sequences = codec.AppendUint32LE(sequences, wire.MaxTxInSequenceNum)
	}
	for _, out := range tx.Outputs {
		outputs = codec.AppendUint64LE(outputs, uint64(out.Value))
		outputs = codec.AppendVarInt(outputs, uint64(len(out.PkScript)))
		outputs = append(outputs, out.PkScript...)
	}

	in := tx.Inputs[idx]
	buf := make([]byte, 0, 4+32*3+36+len(in.SpendScript)+9+8+4+8)
	buf = codec.AppendUint32LE(buf, uint32(txVersion))
	buf = append(buf, codec.DoubleSha256(prevouts)...)
	buf = append(buf, codec.DoubleSha256(sequences)...)
	buf = append(buf, in.PrevOut.Hash[:]...)
	buf = codec.AppendUint32LE(buf, in.PrevOut.Index)
	buf = codec.AppendVarInt(buf, uint64(len(in.SpendScript)))
	buf = append(buf, in.SpendScript...)
	buf = codec.AppendUint64LE(buf, in.Value)
	buf = codec.AppendUint32LE(buf, wire.MaxTxInSequenceNum)
	buf = append(buf, codec.DoubleSha256(outputs)...)
	buf = codec.AppendUint32LE(buf, lockTime)
	buf = codec.AppendUint32LE(buf, uint32(tx.family.SigHash))
	return buf, nil
}
