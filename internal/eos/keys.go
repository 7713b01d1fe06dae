package eos

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/sig"
	"github.com/vultisig/coinengine/internal/txerr"
)

const (
	legacyKeyPrefix = "EOS"
	sigPrefix       = "SIG_K1_"
	k1Suffix        = "K1"

	// compact header of a compressed key: 27 + 4 + recovery id
	compactHeaderBase = 31
)

// PublicKeyString is the legacy "EOS..." form: base58 of the compressed key
// followed by the first four bytes of its RIPEMD160.
func PublicKeyString(pubKey []byte) (string, error) {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	compressed := pub.SerializeCompressed()
	checksum := codec.Ripemd160(compressed)[:4]
	return legacyKeyPrefix + codec.Base58Encode(append(compressed, checksum...)), nil
}

// ParsePublicKey decodes the "EOS..." form and verifies its checksum.
func ParsePublicKey(s string) ([]byte, error) {
	if !strings.HasPrefix(s, legacyKeyPrefix) {
		return nil, txerr.NewDecodeError("eos key", "missing EOS prefix", nil)
	}
	raw, err := codec.Base58Decode(strings.TrimPrefix(s, legacyKeyPrefix))
	if err != nil {
		return nil, err
	}
	if len(raw) != 33+4 {
		return nil, txerr.NewDecodeError("eos key", fmt.Sprintf("got %d bytes", len(raw)), nil)
	}
	if !bytes.Equal(codec.Ripemd160(raw[:33])[:4], raw[33:]) {
		return nil, txerr.ErrChecksumMismatch
	}
	return raw[:33], nil
}

// SignatureString encodes a compact signature (header || r || s) as SIG_K1_.
func SignatureString(compact []byte) string {
	checksum := codec.Ripemd160(compact, []byte(k1Suffix))[:4]
	return sigPrefix + codec.Base58Encode(append(append([]byte(nil), compact...), checksum...))
}

// ParseSignature decodes a SIG_K1_ string back to the 65-byte compact form.
func ParseSignature(s string) ([]byte, error) {
	if !strings.HasPrefix(s, sigPrefix) {
		return nil, txerr.NewDecodeError("eos signature", "missing SIG_K1_ prefix", nil)
	}
	raw, err := codec.Base58Decode(strings.TrimPrefix(s, sigPrefix))
	if err != nil {
		return nil, err
	}
	if len(raw) != 1+sig.RawSize+4 {
		return nil, txerr.NewDecodeError("eos signature", fmt.Sprintf("got %d bytes", len(raw)), nil)
	}
	body := raw[:1+sig.RawSize]
	if !bytes.Equal(codec.Ripemd160(body, []byte(k1Suffix))[:4], raw[1+sig.RawSize:]) {
		return nil, txerr.ErrChecksumMismatch
	}
	return body, nil
}
