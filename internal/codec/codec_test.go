package codec

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/coinengine/internal/txerr"
)

func TestHexRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		bytes.Repeat([]byte{0xff, 0x01}, 40),
	}
	for _, b := range cases {
		got, err := HexToBytes(BytesToHex(b))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestHexToBytes_Whitespace(t *testing.T) {
	got, err := HexToBytes(" de ad\n be\tef ")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, got)
}

func TestHexToBytes_Errors(t *testing.T) {
	for _, in := range []string{"abc", "zz", "0x00", "g0"} {
		_, err := HexToBytes(in)
		require.Error(t, err, in)
		assert.True(t, txerr.IsDecodeError(err), in)
	}
}

func TestReverseBytes(t *testing.T) {
	in := []byte{1, 2, 3}
	assert.Equal(t, []byte{3, 2, 1}, ReverseBytes(in))
	assert.Equal(t, []byte{1, 2, 3}, in)
	assert.Empty(t, ReverseBytes(nil))
}

func TestVarInt(t *testing.T) {
	tests := []struct {
		n   uint64
		enc []byte
	}{
		{0, []byte{0x00}},
		{0xfc, []byte{0xfc}},
		{0xfd, []byte{0xfd, 0xfd, 0x00}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0x100000000, []byte{0xff, 0, 0, 0, 0, 1, 0, 0, 0}},
	}
	for _, tt := range tests {
		enc := AppendVarInt(nil, tt.n)
		assert.Equal(t, tt.enc, enc)

		n, used, err := ReadVarInt(append(enc, 0xaa))
		require.NoError(t, err)
		assert.Equal(t, tt.n, n)
		assert.Equal(t, len(tt.enc), used)
	}

	_, _, err := ReadVarInt([]byte{0xfd, 0x01, 0x00})
	require.Error(t, err, "non-minimal encoding must be rejected")
	assert.True(t, txerr.IsDecodeError(err))

	_, _, err = ReadVarInt([]byte{0xfe, 0x01})
	require.Error(t, err)
}

func TestAppendVarUint32(t *testing.T) {
	assert.Equal(t, []byte{0x00}, AppendVarUint32(nil, 0))
	assert.Equal(t, []byte{0x7f}, AppendVarUint32(nil, 127))
	assert.Equal(t, []byte{0x80, 0x01}, AppendVarUint32(nil, 128))
	assert.Equal(t, []byte{0xac, 0x02}, AppendVarUint32(nil, 300))
}

func TestByteOrder(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, AppendUint32LE(nil, 1))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, AppendUint32BE(nil, 1))
	assert.Equal(t, []byte{0x34, 0x12}, AppendUint16LE(nil, 0x1234))
	assert.Len(t, AppendUint64LE(nil, 1), 8)
	assert.Len(t, AppendUint64BE(nil, 1), 8)
}

func TestBase58Check_RoundTrip(t *testing.T) {
	for i := 0; i < 32; i++ {
		payload := make([]byte, 21)
		payload[0] = byte(i % 3)
		for j := 1; j < len(payload); j++ {
			payload[j] = byte(i*31 + j*7)
		}
		got, err := Base58CheckDecode(Base58CheckEncode(payload))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestBase58Check_KnownAddress(t *testing.T) {
	payload, err := Base58CheckDecode("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.NoError(t, err)
	require.Len(t, payload, 21)
	assert.Equal(t, byte(0x00), payload[0])
	assert.Equal(t, "62e907b15cbf27d5425399ebf6f0fb50ebb88f18", BytesToHex(payload[1:]))
}

func TestBase58Check_Corruption(t *testing.T) {
	const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	addr := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"

	for pos := 1; pos < len(addr); pos++ {
		orig := addr[pos]
		idx := strings.IndexByte(alphabet, orig)
		repl := alphabet[(idx+1)%len(alphabet)]
		corrupted := addr[:pos] + string(repl) + addr[pos+1:]

		_, err := Base58CheckDecode(corrupted)
		require.ErrorIs(t, err, txerr.ErrChecksumMismatch, "position %d", pos)
	}
}

func TestBase58Decode_Invalid(t *testing.T) {
	_, err := Base58CheckDecode("")
	assert.True(t, txerr.IsDecodeError(err))

	_, err = Base58CheckDecode("0OIl")
	assert.True(t, txerr.IsDecodeError(err))

	_, err = Base58CheckDecode(base58.Encode([]byte{1, 2, 3}))
	assert.True(t, txerr.IsDecodeError(err))
}

func TestDigests(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		BytesToHex(Sha256(nil)))
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		BytesToHex(Keccak256(nil)))
	assert.Equal(t,
		"a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a",
		BytesToHex(Sha3256(nil)))
	assert.Equal(t,
		"9c1185a5c5e9fc54612808977ee8f548b2258d31",
		BytesToHex(Ripemd160(nil)))
	assert.Equal(t,
		"0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
		BytesToHex(Blake2b256(nil)))
	assert.Len(t, Blake2b224([]byte("abc")), 28)
	assert.Len(t, Hash160([]byte("abc")), 20)
	assert.Equal(t, Sha256(Sha256([]byte("abc"))), DoubleSha256([]byte("abc")))
	assert.Equal(t, uint32(0xcbf43926), CRC32([]byte("123456789")))
}

func TestDERPackSignature(t *testing.T) {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
	hash := Sha256([]byte("message"))
	sig := ecdsa.Sign(priv, hash)

	compact := ecdsa.SignCompact(priv, hash, true)
	r := new(big.Int).SetBytes(compact[1:33])
	s := new(big.Int).SetBytes(compact[33:65])

	packed, err := DERPackSignature(r, s, SigHashAllForkID)
	require.NoError(t, err)
	assert.Equal(t, SigHashAllForkID, packed[len(packed)-1])
	assert.Equal(t, sig.Serialize(), packed[:len(packed)-1])

	parsed, err := ecdsa.ParseDERSignature(packed[:len(packed)-1])
	require.NoError(t, err)
	assert.True(t, parsed.Verify(hash, priv.PubKey()))

	// high s is serialized in its low form
	highS := new(big.Int).Sub(btcec.S256().N, s)
	packedHigh, err := DERPackSignature(r, highS, SigHashAll)
	require.NoError(t, err)
	assert.Equal(t, packed[:len(packed)-1], packedHigh[:len(packedHigh)-1])

	_, err = DERPackSignature(big.NewInt(0), s, SigHashAll)
	assert.Error(t, err)
	_, err = DERPackSignature(r, btcec.S256().N, SigHashAll)
	assert.Error(t, err)
}

func TestRLPEncodeElement(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", []byte{}, []byte{0x80}},
		{"nil", nil, []byte{0x80}},
		{"single zero byte", []byte{0x00}, []byte{0x00}},
		{"single low byte", []byte{0x7f}, []byte{0x7f}},
		{"single high byte", []byte{0x80}, []byte{0x81, 0x80}},
		{"short string", []byte("dog"), []byte{0x83, 'd', 'o', 'g'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RLPEncodeElement(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	long := bytes.Repeat([]byte{0xaa}, 56)
	got, err := RLPEncodeElement(long)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xb8, 56}, got[:2])
}

func TestRLPEncodeInt(t *testing.T) {
	tests := []struct {
		in   *big.Int
		want []byte
	}{
		{big.NewInt(0), []byte{0x80}},
		{nil, []byte{0x80}},
		{big.NewInt(1), []byte{0x01}},
		{big.NewInt(127), []byte{0x7f}},
		{big.NewInt(128), []byte{0x81, 0x80}},
		{big.NewInt(1024), []byte{0x82, 0x04, 0x00}},
	}
	for _, tt := range tests {
		got, err := RLPEncodeInt(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := RLPEncodeInt(big.NewInt(-1))
	assert.Error(t, err)

	u, err := RLPEncodeUint(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80}, u)
}

func TestRLPList_RoundTrip(t *testing.T) {
	nonce, _ := RLPEncodeUint(9)
	price, _ := RLPEncodeInt(big.NewInt(20_000_000_000))
	gas, _ := RLPEncodeUint(21000)
	to, _ := RLPEncodeElement(bytes.Repeat([]byte{0x35}, 20))
	value, _ := RLPEncodeInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	data, _ := RLPEncodeElement(nil)
	chainID, _ := RLPEncodeUint(1)
	zero, _ := RLPEncodeUint(0)

	list, err := RLPEncodeList(nonce, price, gas, to, value, data, chainID, zero, zero)
	require.NoError(t, err)

	// signing payload of the EIP-155 example transaction
	want := "ec098504a817c800825208943535353535353535353535353535353535353535880de0b6b3a764000080018080"
	assert.Equal(t, want, BytesToHex(list))

	items, err := RLPSplitList(list)
	require.NoError(t, err)
	require.Len(t, items, 9)
	assert.Equal(t, uint64(9), new(big.Int).SetBytes(items[0]).Uint64())
	assert.Equal(t, uint64(20_000_000_000), new(big.Int).SetBytes(items[1]).Uint64())
	assert.Equal(t, uint64(21000), new(big.Int).SetBytes(items[2]).Uint64())
	assert.Equal(t, bytes.Repeat([]byte{0x35}, 20), items[3])
	assert.Empty(t, items[5])
	assert.Equal(t, []byte{0x01}, items[6])
	assert.Empty(t, items[7])
	for _, it := range items {
		if len(it) > 0 {
			assert.NotEqual(t, byte(0), it[0], "no leading zero bytes in encoded integers")
		}
	}

	var decoded []rlp.RawValue
	require.NoError(t, rlp.DecodeBytes(list, &decoded))
	assert.Len(t, decoded, 9)
}

func TestRLPSplitList_Errors(t *testing.T) {
	_, err := RLPSplitList([]byte{0x83, 'd', 'o', 'g'})
	assert.True(t, txerr.IsDecodeError(err))

	_, err = RLPSplitList([]byte{0xc2, 0xc0, 0x01})
	assert.True(t, txerr.IsDecodeError(err))

	_, err = RLPSplitList([]byte{0xc1, 0x01, 0x02})
	assert.True(t, txerr.IsDecodeError(err))
}

func TestCBOR(t *testing.T) {
	arr, err := CBOREncodeArray(uint64(1), []byte{0xaa}, "x")
	require.NoError(t, err)
	assert.Equal(t, "830141aa6178", BytesToHex(arr))

	m, err := CBOREncodeMap(map[uint64]any{2: uint64(5), 0: uint64(1)})
	require.NoError(t, err)
	assert.Equal(t, "a200010205", BytesToHex(m))

	empty, err := CBOREncodeMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "a0", BytesToHex(empty))

	tagged, err := CBOREncodeTag24(arr)
	require.NoError(t, err)
	assert.Equal(t, "d81846"+"830141aa6178", BytesToHex(tagged))

	inner, err := CBORDecodeTag24(tagged)
	require.NoError(t, err)
	assert.Equal(t, arr, inner)

	_, err = CBORDecodeTag24(arr)
	assert.True(t, txerr.IsDecodeError(err))

	var out []any
	err = CBORUnmarshal([]byte{0x83, 0x01}, &out)
	assert.True(t, txerr.IsDecodeError(err))
}
