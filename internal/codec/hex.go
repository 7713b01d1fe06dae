// Package codec holds the stateless binary codecs shared by the chain builders:
// hex, byte order, Base58Check, digests, DER signatures, RLP and CBOR.
package codec

import (
	"encoding/hex"
	"strings"

	"github.com/vultisig/coinengine/internal/txerr"
)

// HexToBytes decodes a hex string, ignoring any whitespace between digits.
func HexToBytes(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	if len(clean)%2 != 0 {
		return nil, txerr.NewDecodeError("hex", "odd length", nil)
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, txerr.NewDecodeError("hex", "invalid digit", err)
	}
	return b, nil
}

func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// ReverseBytes returns a reversed copy of b. Bitcoin hashes are displayed
// big-endian and serialized little-endian.
func ReverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
