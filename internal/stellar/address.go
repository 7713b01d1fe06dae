package stellar

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/stellar/go/strkey"

	"github.com/vultisig/coinengine/internal/txerr"
)

const PubKeySize = 32

// AddressFromPubKey returns the G... account id of an ed25519 key.
func AddressFromPubKey(pubKey []byte) (string, error) {
	if len(pubKey) != PubKeySize {
		return "", fmt.Errorf("%w: ed25519 key must be %d bytes, got %d", txerr.ErrInvalidPublicKey, PubKeySize, len(pubKey))
	}
	if _, err := new(edwards25519.Point).SetBytes(pubKey); err != nil {
		return "", fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	address, err := strkey.Encode(strkey.VersionByteAccountID, pubKey)
	if err != nil {
		return "", fmt.Errorf("failed to encode account id: %w", err)
	}
	return address, nil
}

// ValidateAddress checks the strkey version byte and CRC16 and that the
// embedded key is a curve point.
func ValidateAddress(addr string) bool {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, addr)
	if err != nil || len(raw) != PubKeySize {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
