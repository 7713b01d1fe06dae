// Package sig turns the raw r||s pairs returned by the card into canonical
// secp256k1 signatures and recovers the id needed by Ethereum and EOS.
package sig

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/vultisig/coinengine/internal/txerr"
)

const (
	// RawSize is the length of one signer output: r and s, 32 bytes each.
	RawSize = 64

	compactHeaderBase   = 27
	compactCompressed   = 4
	maxRecoveryID       = 3
	compressedPubKeyLen = 33
)

// Secp256k1N is the order of the secp256k1 group.
var Secp256k1N = new(big.Int).Set(btcec.S256().N)

// CanonicalizeS returns n - s when s is in the upper half of the order, s otherwise.
func CanonicalizeS(s, n *big.Int) *big.Int {
	half := new(big.Int).Rsh(n, 1)
	if s.Cmp(half) > 0 {
		return new(big.Int).Sub(n, s)
	}
	return new(big.Int).Set(s)
}

// CanonicalSignature is a low-s ECDSA signature. RecoveryID is only meaningful
// when HasRecoveryID is set.
type CanonicalSignature struct {
	R             *big.Int
	S             *big.Int
	RecoveryID    byte
	HasRecoveryID bool
}

// NewCanonical validates r and s against the curve order and normalizes s.
func NewCanonical(r, s *big.Int) (CanonicalSignature, error) {
	if r == nil || r.Sign() <= 0 || r.Cmp(Secp256k1N) >= 0 {
		return CanonicalSignature{}, txerr.NewDecodeError("signature", "r out of range", nil)
	}
	if s == nil || s.Sign() <= 0 || s.Cmp(Secp256k1N) >= 0 {
		return CanonicalSignature{}, txerr.NewDecodeError("signature", "s out of range", nil)
	}
	return CanonicalSignature{
		R: new(big.Int).Set(r),
		S: CanonicalizeS(s, Secp256k1N),
	}, nil
}

// ParseRaw reads a single 64-byte r||s signature.
func ParseRaw(raw []byte) (CanonicalSignature, error) {
	if len(raw) != RawSize {
		return CanonicalSignature{}, fmt.Errorf("%w: got %d bytes, want %d", txerr.ErrInvalidSignatureLength, len(raw), RawSize)
	}
	return NewCanonical(new(big.Int).SetBytes(raw[:32]), new(big.Int).SetBytes(raw[32:]))
}

// SplitRaw splits the concatenated signer output into count canonical signatures.
func SplitRaw(raw []byte, count int) ([]CanonicalSignature, error) {
	if count <= 0 || len(raw) != RawSize*count {
		return nil, fmt.Errorf("%w: got %d bytes for %d digests", txerr.ErrInvalidSignatureLength, len(raw), count)
	}

	sigs := make([]CanonicalSignature, 0, count)
	for i := 0; i < count; i++ {
		s, err := ParseRaw(raw[i*RawSize : (i+1)*RawSize])
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		sigs = append(sigs, s)
	}
	return sigs, nil
}

// Bytes64 returns r||s, each left-padded to 32 bytes.
func (c CanonicalSignature) Bytes64() []byte {
	out := make([]byte, RawSize)
	c.R.FillBytes(out[:32])
	c.S.FillBytes(out[32:])
	return out
}

// Compact returns header||r||s.
func (c CanonicalSignature) Compact(header byte) []byte {
	return append([]byte{header}, c.Bytes64()...)
}

func (c CanonicalSignature) WithRecoveryID(id byte) CanonicalSignature {
	c.RecoveryID = id
	c.HasRecoveryID = true
	return c
}

// Verify checks the signature over hash against a serialized public key.
func (c CanonicalSignature) Verify(hash, pubKey []byte) bool {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	var r, s btcec.ModNScalar
	if r.SetByteSlice(c.R.Bytes()) || s.SetByteSlice(c.S.Bytes()) {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash, pub)
}

// Recover finds the recovery id for c against expectedPub and returns a copy
// carrying it.
func (c CanonicalSignature) Recover(hash, expectedPub []byte) (CanonicalSignature, error) {
	id, err := BruteForceRecoveryID(c.R, c.S, hash, expectedPub)
	if err != nil {
		return CanonicalSignature{}, err
	}
	return c.WithRecoveryID(id), nil
}

// BruteForceRecoveryID tries ids 0..3 and returns the first one whose recovered
// key matches expectedPub byte for byte. expectedPub may be compressed (33
// bytes) or uncompressed (65 bytes); the comparison uses the same form.
func BruteForceRecoveryID(r, s *big.Int, hash, expectedPub []byte) (byte, error) {
	if r == nil || s == nil || r.BitLen() > 256 || s.BitLen() > 256 {
		return 0, txerr.NewDecodeError("signature", "r or s wider than 256 bits", nil)
	}

	compact := make([]byte, 1+RawSize)
	r.FillBytes(compact[1:33])
	s.FillBytes(compact[33:])

	for id := byte(0); id <= maxRecoveryID; id++ {
		compact[0] = compactHeaderBase + compactCompressed + id
		pub, _, err := ecdsa.RecoverCompact(compact, hash)
		if err != nil {
			continue
		}

		var candidate []byte
		if len(expectedPub) == compressedPubKeyLen {
			candidate = pub.SerializeCompressed()
		} else {
			candidate = pub.SerializeUncompressed()
		}
		if bytes.Equal(candidate, expectedPub) {
			return id, nil
		}
	}
	return 0, txerr.ErrRecoveryIDNotFound
}
