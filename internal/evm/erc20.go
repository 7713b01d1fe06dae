package evm

import (
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/coinengine/internal/codec"
)

var transferSelector = codec.Keccak256([]byte("transfer(address,uint256)"))[:4]

// Token is an ERC-20 contract the wallet sends instead of ether.
type Token struct {
	Contract ecommon.Address
	Symbol   string
	Decimals int32
}

// transferData is the calldata of transfer(to, amount).
func transferData(to ecommon.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, ecommon.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, ecommon.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
