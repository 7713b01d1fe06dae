// Package types holds the contracts shared by every chain builder.
package types

import (
	"math/big"
)

// SigningMethod is the card capability advertised by the wallet: sign a
// precomputed digest, or hash and sign the raw payload on the card.
type SigningMethod int

const (
	SignHash SigningMethod = iota
	SignRaw
)

func (m SigningMethod) String() string {
	if m == SignRaw {
		return "raw"
	}
	return "hash"
}

// SendRequest is the user intent for one send. Amount and Fee are in the
// chain's smallest unit. A zero Amount sweeps the wallet on UTXO chains.
type SendRequest struct {
	Amount      *big.Int
	Fee         *big.Int
	FeeIncluded bool
	Target      string
	Memo        string
}

// Builder constructs an unsigned transaction for one wallet.
type Builder interface {
	Construct(req SendRequest) (Unsigned, error)
}

// Unsigned is a constructed transaction waiting for card signatures.
// AssembleSigned takes the concatenated 64-byte r||s signatures, one per
// digest and in the same order, and returns the broadcastable payload.
type Unsigned interface {
	DigestsToSign() [][]byte
	AssembleSigned(raw []byte) ([]byte, error)
}

// RawPayloader is implemented by transactions whose payloads can be hashed on
// the card instead of on the host.
type RawPayloader interface {
	RawPayloads() ([][]byte, error)
}
