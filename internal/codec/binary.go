package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/wire"

	"github.com/vultisig/coinengine/internal/txerr"
)

func AppendUint16LE(dst []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(dst, v) }
func AppendUint32LE(dst []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(dst, v) }
func AppendUint64LE(dst []byte, v uint64) []byte { return binary.LittleEndian.AppendUint64(dst, v) }
func AppendUint32BE(dst []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(dst, v) }
func AppendUint64BE(dst []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(dst, v) }

// AppendVarInt appends n as a Bitcoin CompactSize integer.
func AppendVarInt(dst []byte, n uint64) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes never fail
	_ = wire.WriteVarInt(&buf, 0, n)
	return append(dst, buf.Bytes()...)
}

// ReadVarInt decodes one CompactSize integer from the front of b and returns
// the value and the number of bytes consumed. Non-minimal encodings are rejected.
func ReadVarInt(b []byte) (uint64, int, error) {
	r := bytes.NewReader(b)
	v, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return 0, 0, txerr.NewDecodeError("varint", "malformed compact size", err)
	}
	return v, len(b) - r.Len(), nil
}

// AppendVarUint32 appends v as an unsigned LEB128 integer (EOS varuint32).
func AppendVarUint32(dst []byte, v uint32) []byte {
	return binary.AppendUvarint(dst, uint64(v))
}
