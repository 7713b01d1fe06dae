package evm

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	ecommon "github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/txerr"
)

// AddressFromPubKey derives the EIP-55 checksummed address of a compressed or
// uncompressed secp256k1 public key.
func AddressFromPubKey(pubKey []byte) (ecommon.Address, error) {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return ecommon.Address{}, fmt.Errorf("%w: %v", txerr.ErrInvalidPublicKey, err)
	}
	hash := codec.Keccak256(pub.SerializeUncompressed()[1:])
	return ecommon.BytesToAddress(hash[12:]), nil
}

// ValidateAddress accepts 0x-prefixed 20-byte hex addresses. Mixed-case input
// must carry a valid EIP-55 checksum.
func ValidateAddress(s string) bool {
	if !ecommon.IsHexAddress(s) || !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return ecommon.HexToAddress(s).Hex() == s
}
