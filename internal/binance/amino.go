package binance

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Registered amino prefixes of the concrete types a transfer uses.
var (
	prefixMsgSend  = []byte{0x2a, 0x2c, 0x87, 0xfa}
	prefixStdTx    = []byte{0xf0, 0x62, 0x5d, 0xee}
	prefixPubKeyK1 = []byte{0xeb, 0x5a, 0xe9, 0x87}
)

type Coin struct {
	Denom  string
	Amount int64
}

type IO struct {
	Address []byte
	Coins   []Coin
}

type MsgSend struct {
	Inputs  []IO
	Outputs []IO
}

type StdSignature struct {
	PubKey        []byte
	Signature     []byte
	AccountNumber int64
	Sequence      int64
}

type StdTx struct {
	Msgs       []MsgSend
	Signatures []StdSignature
	Memo       string
	Source     int64
}

// Amino omits zero scalars and empty byte strings the same way proto3 does.

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func (c Coin) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, []byte(c.Denom))
	return appendVarintField(b, 2, c.Amount)
}

func (o IO) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, o.Address)
	for _, c := range o.Coins {
		b = appendBytesField(b, 2, c.marshal())
	}
	return b
}

// Marshal returns the prefixed amino encoding of the message.
func (m MsgSend) Marshal() []byte {
	b := append([]byte(nil), prefixMsgSend...)
	for _, in := range m.Inputs {
		b = appendBytesField(b, 1, in.marshal())
	}
	for _, out := range m.Outputs {
		b = appendBytesField(b, 2, out.marshal())
	}
	return b
}

// encodePubKey wraps a compressed secp256k1 key in its registered type.
func encodePubKey(compressed []byte) []byte {
	b := append([]byte(nil), prefixPubKeyK1...)
	return protowire.AppendBytes(b, compressed)
}

func (s StdSignature) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, encodePubKey(s.PubKey))
	b = appendBytesField(b, 2, s.Signature)
	b = appendVarintField(b, 3, s.AccountNumber)
	return appendVarintField(b, 4, s.Sequence)
}

// Marshal returns the prefixed amino encoding of the transaction without the
// outer length prefix.
func (tx StdTx) Marshal() []byte {
	b := append([]byte(nil), prefixStdTx...)
	for _, m := range tx.Msgs {
		b = appendBytesField(b, 1, m.Marshal())
	}
	for _, s := range tx.Signatures {
		b = appendBytesField(b, 2, s.marshal())
	}
	b = appendBytesField(b, 3, []byte(tx.Memo))
	return appendVarintField(b, 4, tx.Source)
}

// MarshalLengthPrefixed is the broadcast form.
func (tx StdTx) MarshalLengthPrefixed() []byte {
	body := tx.Marshal()
	return protowire.AppendBytes(nil, body)
}
