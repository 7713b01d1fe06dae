package codec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/vultisig/coinengine/internal/txerr"
)

// TagEncodedCBOR marks a byte string that itself holds CBOR (RFC 8949 tag 24).
const TagEncodedCBOR = 24

var (
	cborEnc = mustEncMode()
	cborDec = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// CBOREncodeArray encodes items deterministically (core deterministic
// encoding, sorted map keys, shortest integer forms).
func CBOREncodeArray(items ...any) ([]byte, error) {
	if items == nil {
		items = []any{}
	}
	return cborEnc.Marshal(items)
}

func CBOREncodeMap(m map[uint64]any) ([]byte, error) {
	if m == nil {
		m = map[uint64]any{}
	}
	return cborEnc.Marshal(m)
}

// CBOREncodeTag24 wraps already-encoded CBOR as a tag-24 byte string.
func CBOREncodeTag24(inner []byte) ([]byte, error) {
	return cborEnc.Marshal(cbor.Tag{Number: TagEncodedCBOR, Content: inner})
}

// CBORUnmarshal decodes untrusted CBOR into v.
func CBORUnmarshal(data []byte, v any) error {
	if err := cborDec.Unmarshal(data, v); err != nil {
		return txerr.NewDecodeError("cbor", "malformed", err)
	}
	return nil
}

// CBORDecodeTag24 unwraps a tag-24 byte string and returns the embedded CBOR.
func CBORDecodeTag24(data []byte) ([]byte, error) {
	var tag cbor.RawTag
	if err := CBORUnmarshal(data, &tag); err != nil {
		return nil, err
	}
	if tag.Number != TagEncodedCBOR {
		return nil, txerr.NewDecodeError("cbor", "expected tag 24", nil)
	}
	var inner []byte
	if err := CBORUnmarshal(tag.Content, &inner); err != nil {
		return nil, err
	}
	return inner, nil
}
