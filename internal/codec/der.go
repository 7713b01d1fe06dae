package codec

import (
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Sighash flags appended to Bitcoin-family DER signatures.
const (
	SigHashAll       byte = 0x01
	SigHashAllForkID byte = 0x41 // Bitcoin Cash replay protection
)

// DERPackSignature encodes (r, s) as a strict DER signature followed by the
// sighash byte. s is serialized in its low form.
func DERPackSignature(r, s *big.Int, sighash byte) ([]byte, error) {
	rs, err := toScalar(r)
	if err != nil {
		return nil, fmt.Errorf("invalid r: %w", err)
	}
	ss, err := toScalar(s)
	if err != nil {
		return nil, fmt.Errorf("invalid s: %w", err)
	}

	der := ecdsa.NewSignature(rs, ss).Serialize()
	return append(der, sighash), nil
}

func toScalar(v *big.Int) (*btcec.ModNScalar, error) {
	if v == nil || v.Sign() <= 0 {
		return nil, fmt.Errorf("must be positive")
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("wider than 256 bits")
	}
	var sc btcec.ModNScalar
	if overflow := sc.SetByteSlice(v.Bytes()); overflow {
		return nil, fmt.Errorf("not below the curve order")
	}
	return &sc, nil
}
