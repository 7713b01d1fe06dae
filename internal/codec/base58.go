package codec

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/vultisig/coinengine/internal/txerr"
)

const checksumLen = 4

// Base58CheckEncode appends the 4-byte double-SHA256 checksum to payload
// (version bytes included) and encodes the result with the Bitcoin alphabet.
func Base58CheckEncode(payload []byte) string {
	sum := chainhash.DoubleHashB(payload)
	buf := make([]byte, 0, len(payload)+checksumLen)
	buf = append(buf, payload...)
	buf = append(buf, sum[:checksumLen]...)
	return base58.Encode(buf)
}

// Base58CheckDecode decodes s and verifies its trailing checksum, returning the
// payload without the checksum.
func Base58CheckDecode(s string) ([]byte, error) {
	raw, err := Base58Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) <= checksumLen {
		return nil, txerr.NewDecodeError("base58", "too short", nil)
	}

	payload := raw[:len(raw)-checksumLen]
	sum := chainhash.DoubleHashB(payload)
	if !bytes.Equal(sum[:checksumLen], raw[len(raw)-checksumLen:]) {
		return nil, txerr.ErrChecksumMismatch
	}
	return payload, nil
}

func Base58Encode(b []byte) string {
	return base58.Encode(b)
}

// Base58Decode decodes s without checksum verification.
func Base58Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, txerr.NewDecodeError("base58", "empty input", nil)
	}
	raw := base58.Decode(s)
	if len(raw) == 0 {
		return nil, txerr.NewDecodeError("base58", "invalid character", nil)
	}
	return raw, nil
}
