package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/vultisig/coinengine/internal/codec"
)

var (
	balanceOfSelector = codec.Keccak256([]byte("balanceOf(address)"))[:4]
	decimalsSelector  = codec.Keccak256([]byte("decimals()"))[:4]
)

// rpcClient is the subset of *ethclient.Client the service uses.
type rpcClient interface {
	BalanceAt(ctx context.Context, account ecommon.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account ecommon.Address) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *etypes.Transaction) error
}

// RPCService reads account state from and broadcasts to an Ethereum node.
type RPCService struct {
	rpc rpcClient
}

func NewRPCService(rpc rpcClient) *RPCService {
	return &RPCService{rpc: rpc}
}

// Account fetches balance, pending nonce and, when token is set, the token balance.
func (s *RPCService) Account(ctx context.Context, owner ecommon.Address, token *Token) (Account, error) {
	balance, err := s.rpc.BalanceAt(ctx, owner, nil)
	if err != nil {
		return Account{}, fmt.Errorf("failed to get native balance: %w", err)
	}
	nonce, err := s.rpc.PendingNonceAt(ctx, owner)
	if err != nil {
		return Account{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	acc := Account{Balance: balance, TxCount: nonce, TokenBalance: new(big.Int)}
	if token != nil {
		acc.TokenBalance, err = s.ERC20Balance(ctx, token.Contract, owner)
		if err != nil {
			return Account{}, err
		}
	}
	return acc, nil
}

func (s *RPCService) ERC20Balance(ctx context.Context, tokenAddress, owner ecommon.Address) (*big.Int, error) {
	data := append(append([]byte(nil), balanceOfSelector...), ecommon.LeftPadBytes(owner.Bytes(), 32)...)
	out, err := s.rpc.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get ERC20 balance: %w", err)
	}
	if len(out) != 32 {
		return nil, fmt.Errorf("failed to get ERC20 balance: unexpected %d byte result", len(out))
	}
	return new(big.Int).SetBytes(out), nil
}

// Decimals fetches the decimals of an ERC20 token.
func (s *RPCService) Decimals(ctx context.Context, tokenAddress ecommon.Address) (uint8, error) {
	var zero ecommon.Address
	if tokenAddress == zero {
		return 0, fmt.Errorf("token address cannot be zero")
	}

	out, err := s.rpc.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: decimalsSelector}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get decimals for token %s: %w", tokenAddress.Hex(), err)
	}
	if len(out) != 32 || new(big.Int).SetBytes(out).BitLen() > 8 {
		return 0, fmt.Errorf("failed to get decimals for token %s: malformed result", tokenAddress.Hex())
	}
	return out[31], nil
}

// SuggestFee returns gas price times gasLimit.
func (s *RPCService) SuggestFee(ctx context.Context, gasLimit uint64) (*big.Int, error) {
	price, err := s.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit)), nil
}

// Broadcast submits a signed legacy transaction and returns its hash.
func (s *RPCService) Broadcast(ctx context.Context, signed []byte) (string, error) {
	var tx etypes.Transaction
	if err := tx.UnmarshalBinary(signed); err != nil {
		return "", fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	if err := s.rpc.SendTransaction(ctx, &tx); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	return tx.Hash().Hex(), nil
}
