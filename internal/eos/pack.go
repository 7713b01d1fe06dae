package eos

import (
	"encoding/binary"
	"fmt"

	"github.com/vultisig/coinengine/internal/codec"
)

type PermissionLevel struct {
	Actor      string
	Permission string
}

type Action struct {
	Account       string
	Name          string
	Authorization []PermissionLevel
	Data          []byte
}

// Transaction is the subset of the transaction header a transfer needs. Net,
// CPU and delay limits are always zero and there are no context free actions.
type Transaction struct {
	Expiration     uint32
	RefBlockNum    uint16
	RefBlockPrefix uint32
	Actions        []Action
}

type packer struct {
	buf []byte
	err error
}

func (p *packer) name(s string) {
	if p.err != nil {
		return
	}
	v, err := NameToUint64(s)
	if err != nil {
		p.err = err
		return
	}
	p.buf = codec.AppendUint64LE(p.buf, v)
}

func (p *packer) varuint(n int) {
	p.buf = codec.AppendVarUint32(p.buf, uint32(n))
}

func (p *packer) bytes(b []byte) {
	p.varuint(len(b))
	p.buf = append(p.buf, b...)
}

func (p *packer) asset(a Asset) {
	if p.err != nil {
		return
	}
	p.buf, p.err = a.pack(p.buf)
}

// transferData packs the eosio.token transfer arguments.
func transferData(from, to string, quantity Asset, memo string) ([]byte, error) {
	p := &packer{}
	p.name(from)
	p.name(to)
	p.asset(quantity)
	p.bytes([]byte(memo))
	if p.err != nil {
		return nil, fmt.Errorf("failed to pack transfer: %w", p.err)
	}
	return p.buf, nil
}

// Pack serializes the transaction in the binary ABI layout.
func (tx Transaction) Pack() ([]byte, error) {
	p := &packer{}
	p.buf = codec.AppendUint32LE(p.buf, tx.Expiration)
	p.buf = codec.AppendUint16LE(p.buf, tx.RefBlockNum)
	p.buf = codec.AppendUint32LE(p.buf, tx.RefBlockPrefix)
	p.varuint(0)             // max_net_usage_words
	p.buf = append(p.buf, 0) // max_cpu_usage_ms
	p.varuint(0)             // delay_sec
	p.varuint(0)             // context_free_actions

	p.varuint(len(tx.Actions))
	for _, a := range tx.Actions {
		p.name(a.Account)
		p.name(a.Name)
		p.varuint(len(a.Authorization))
		for _, auth := range a.Authorization {
			p.name(auth.Actor)
			p.name(auth.Permission)
		}
		p.bytes(a.Data)
	}
	p.varuint(0) // transaction_extensions

	if p.err != nil {
		return nil, fmt.Errorf("failed to pack transaction: %w", p.err)
	}
	return p.buf, nil
}

// SigningDigest is sha256(chainID || packed || zero context free data hash).
func SigningDigest(chainID, packed []byte) []byte {
	buf := make([]byte, 0, len(chainID)+len(packed)+32)
	buf = append(buf, chainID...)
	buf = append(buf, packed...)
	buf = append(buf, make([]byte, 32)...)
	return codec.Sha256(buf)
}

// RefBlockFromID derives the TaPoS reference from a block id: the low 16 bits
// of the block number in its first four bytes, and the little endian word at
// offset 8.
func RefBlockFromID(blockID []byte) (uint16, uint32, error) {
	if len(blockID) != 32 {
		return 0, 0, fmt.Errorf("block id must be 32 bytes, got %d", len(blockID))
	}
	num := binary.BigEndian.Uint32(blockID[:4])
	return uint16(num), binary.LittleEndian.Uint32(blockID[8:12]), nil
}
