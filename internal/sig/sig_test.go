package sig

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/coinengine/internal/txerr"
)

func testKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x42}, 32))
	return priv
}

func TestCanonicalizeS(t *testing.T) {
	half := new(big.Int).Rsh(Secp256k1N, 1)
	tests := []struct {
		name string
		s    *big.Int
		want *big.Int
	}{
		{"one", big.NewInt(1), big.NewInt(1)},
		{"half", half, half},
		{"half plus one", new(big.Int).Add(half, big.NewInt(1)), new(big.Int).Sub(Secp256k1N, new(big.Int).Add(half, big.NewInt(1)))},
		{"n minus one", new(big.Int).Sub(Secp256k1N, big.NewInt(1)), big.NewInt(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalizeS(tt.s, Secp256k1N)
			assert.Zero(t, tt.want.Cmp(got), "got %s", got)
			assert.True(t, got.Cmp(half) <= 0)

			again := CanonicalizeS(got, Secp256k1N)
			assert.Zero(t, got.Cmp(again), "must be idempotent")
		})
	}
}

func TestCanonicalizeS_DoesNotAlias(t *testing.T) {
	s := big.NewInt(5)
	got := CanonicalizeS(s, Secp256k1N)
	got.SetInt64(7)
	assert.Equal(t, int64(5), s.Int64())
}

func TestSplitRaw(t *testing.T) {
	priv := testKey(t)
	var raw []byte
	var hashes [][]byte
	for i := 0; i < 3; i++ {
		h := sha256.Sum256([]byte(fmt.Sprintf("digest-%d", i)))
		hashes = append(hashes, h[:])
		compact := ecdsa.SignCompact(priv, h[:], true)
		raw = append(raw, compact[1:]...)
	}

	sigs, err := SplitRaw(raw, 3)
	require.NoError(t, err)
	require.Len(t, sigs, 3)
	for i, s := range sigs {
		assert.Equal(t, raw[i*64:(i+1)*64], s.Bytes64())
		assert.True(t, s.Verify(hashes[i], priv.PubKey().SerializeCompressed()))
		assert.False(t, s.HasRecoveryID)
	}

	_, err = SplitRaw(raw[:127], 2)
	require.ErrorIs(t, err, txerr.ErrInvalidSignatureLength)
	_, err = SplitRaw(raw, 2)
	require.ErrorIs(t, err, txerr.ErrInvalidSignatureLength)
	_, err = SplitRaw(nil, 0)
	require.ErrorIs(t, err, txerr.ErrInvalidSignatureLength)

	_, err = SplitRaw(make([]byte, 64), 1)
	assert.True(t, txerr.IsDecodeError(err))
}

func TestParseRaw_NormalizesHighS(t *testing.T) {
	priv := testKey(t)
	h := sha256.Sum256([]byte("high s"))
	compact := ecdsa.SignCompact(priv, h[:], true)

	r := new(big.Int).SetBytes(compact[1:33])
	s := new(big.Int).SetBytes(compact[33:])
	highS := new(big.Int).Sub(Secp256k1N, s)

	raw := make([]byte, 64)
	r.FillBytes(raw[:32])
	highS.FillBytes(raw[32:])

	c, err := ParseRaw(raw)
	require.NoError(t, err)
	assert.Zero(t, s.Cmp(c.S))
	assert.Equal(t, compact[1:], c.Bytes64())
}

func TestBruteForceRecoveryID(t *testing.T) {
	priv := testKey(t)
	pub := priv.PubKey()

	for i := 0; i < 8; i++ {
		h := sha256.Sum256([]byte(fmt.Sprintf("recover-%d", i)))
		compact := ecdsa.SignCompact(priv, h[:], false)
		want := compact[0] - 27

		r := new(big.Int).SetBytes(compact[1:33])
		s := new(big.Int).SetBytes(compact[33:])

		id, err := BruteForceRecoveryID(r, s, h[:], pub.SerializeUncompressed())
		require.NoError(t, err)
		assert.Equal(t, want, id)

		id, err = BruteForceRecoveryID(r, s, h[:], pub.SerializeCompressed())
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

// A signature whose Ethereum-style v is 27 must resolve to recovery id 0.
func TestBruteForceRecoveryID_VEquals27(t *testing.T) {
	priv := testKey(t)
	pub := priv.PubKey().SerializeUncompressed()

	var (
		hash    []byte
		compact []byte
	)
	for i := 0; ; i++ {
		h := sha256.Sum256([]byte(fmt.Sprintf("v27-%d", i)))
		c := ecdsa.SignCompact(priv, h[:], false)
		if c[0] == 27 {
			hash, compact = h[:], c
			break
		}
		require.Less(t, i, 64, "no v=27 fixture found")
	}

	r := new(big.Int).SetBytes(compact[1:33])
	s := new(big.Int).SetBytes(compact[33:])

	id, err := BruteForceRecoveryID(r, s, hash, pub)
	require.NoError(t, err)
	assert.Equal(t, byte(0), id)
	assert.Equal(t, byte(27), id+27)
}

func TestBruteForceRecoveryID_WrongKey(t *testing.T) {
	priv := testKey(t)
	other, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x07}, 32))

	h := sha256.Sum256([]byte("wrong key"))
	compact := ecdsa.SignCompact(priv, h[:], true)
	r := new(big.Int).SetBytes(compact[1:33])
	s := new(big.Int).SetBytes(compact[33:])

	_, err := BruteForceRecoveryID(r, s, h[:], other.PubKey().SerializeCompressed())
	require.ErrorIs(t, err, txerr.ErrRecoveryIDNotFound)
}

func TestRecover(t *testing.T) {
	priv := testKey(t)
	h := sha256.Sum256([]byte("recover helper"))
	compact := ecdsa.SignCompact(priv, h[:], true)

	c, err := ParseRaw(compact[1:])
	require.NoError(t, err)

	c, err = c.Recover(h[:], priv.PubKey().SerializeCompressed())
	require.NoError(t, err)
	assert.True(t, c.HasRecoveryID)
	assert.Equal(t, compact[0]-31, c.RecoveryID)
	assert.Equal(t, compact, c.Compact(31+c.RecoveryID))
}
