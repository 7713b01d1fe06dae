package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vultisig/coinengine/internal/txerr"
)

// RLPEncodeElement encodes a byte string. The empty string encodes as 0x80 and
// a single byte below 0x80 encodes as itself.
func RLPEncodeElement(b []byte) ([]byte, error) {
	if b == nil {
		b = []byte{}
	}
	return rlp.EncodeToBytes(b)
}

// RLPEncodeList wraps already-encoded items into an RLP list.
func RLPEncodeList(items ...[]byte) ([]byte, error) {
	raw := make([]rlp.RawValue, len(items))
	for i, it := range items {
		raw[i] = it
	}
	return rlp.EncodeToBytes(raw)
}

// RLPEncodeInt encodes a non-negative integer as its minimal big-endian
// byte string; zero is the empty string.
func RLPEncodeInt(v *big.Int) ([]byte, error) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("rlp: negative integer %s", v)
	}
	return rlp.EncodeToBytes(v)
}

func RLPEncodeUint(v uint64) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// RLPSplitList decodes a flat RLP list of byte strings.
func RLPSplitList(b []byte) ([][]byte, error) {
	content, rest, err := rlp.SplitList(b)
	if err != nil {
		return nil, txerr.NewDecodeError("rlp", "not a list", err)
	}
	if len(rest) != 0 {
		return nil, txerr.NewDecodeError("rlp", "trailing bytes after list", nil)
	}

	var items [][]byte
	for len(content) > 0 {
		kind, val, tail, er := rlp.Split(content)
		if er != nil {
			return nil, txerr.NewDecodeError("rlp", "malformed element", er)
		}
		if kind == rlp.List {
			return nil, txerr.NewDecodeError("rlp", "nested list", nil)
		}
		items = append(items, val)
		content = tail
	}
	return items, nil
}
