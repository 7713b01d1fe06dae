package codec

import (
	"crypto/sha256"
	"hash/crc32"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD160 is part of the EOS key and signature checksums
	"golang.org/x/crypto/sha3"
)

func Sha256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func DoubleSha256(data []byte) []byte {
	return chainhash.DoubleHashB(data)
}

// Hash160 computes RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	return btcutil.Hash160(data)
}

func Ripemd160(data ...[]byte) []byte {
	r := ripemd160.New()
	for _, d := range data {
		r.Write(d)
	}
	return r.Sum(nil)
}

// Keccak256 is the pre-standard Keccak used by Ethereum, not NIST SHA3-256.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

func Sha3256(data []byte) []byte {
	h := sha3.Sum256(data)
	return h[:]
}

func Blake2b256(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}

func Blake2b224(data []byte) []byte {
	h, _ := blake2b.New(28, nil)
	h.Write(data)
	return h.Sum(nil)
}

// CRC32 is the IEEE checksum used by Cardano Byron addresses.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
