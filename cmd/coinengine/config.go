package main

import (
	"fmt"
	"math/big"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/vultisig/coinengine/internal/binance"
	"github.com/vultisig/coinengine/internal/blockchair"
	"github.com/vultisig/coinengine/internal/cardano"
	"github.com/vultisig/coinengine/internal/chain"
	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/eos"
	"github.com/vultisig/coinengine/internal/evm"
	"github.com/vultisig/coinengine/internal/stellar"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/util"
)

type config struct {
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	Network    string `envconfig:"NETWORK" default:"mainnet"`
	Blockchair blockchairConfig
	Ethereum   ethereumConfig
	Cardano    cardanoConfig
	EOS        eosConfig
	Stellar    stellarConfig
	Binance    binanceConfig
	Metrics    metricsConfig
}

type blockchairConfig struct {
	URL string `envconfig:"URL"`
}

type ethereumConfig struct {
	RPCURL        string `envconfig:"RPC_URL"`
	ChainID       int64  `envconfig:"CHAIN_ID" default:"1"`
	GasLimit      uint64 `envconfig:"GAS_LIMIT"`
	TokenGasLimit uint64 `envconfig:"TOKEN_GAS_LIMIT"`
	TokenContract string `envconfig:"TOKEN_CONTRACT"`
	TokenSymbol   string `envconfig:"TOKEN_SYMBOL"`
	TokenDecimals int32  `envconfig:"TOKEN_DECIMALS" default:"18"`
}

type cardanoConfig struct {
	FeeA      uint64 `envconfig:"FEE_A"`
	FeeB      string `envconfig:"FEE_B"`
	MinOutput uint64 `envconfig:"MIN_OUTPUT"`
	TTL       uint64 `envconfig:"TTL"`
	SubmitURL string `envconfig:"SUBMIT_URL"`
}

type eosConfig struct {
	ChainID    string        `envconfig:"CHAIN_ID"`
	Contract   string        `envconfig:"CONTRACT"`
	Symbol     string        `envconfig:"SYMBOL"`
	Precision  uint8         `envconfig:"PRECISION"`
	Permission string        `envconfig:"PERMISSION"`
	Expiration time.Duration `envconfig:"EXPIRATION"`
}

type stellarConfig struct {
	Passphrase string        `envconfig:"PASSPHRASE"`
	Timeout    time.Duration `envconfig:"TIMEOUT"`
}

type binanceConfig struct {
	ChainID string `envconfig:"CHAIN_ID"`
	Denom   string `envconfig:"DENOM"`
}

type metricsConfig struct {
	Port string `envconfig:"PORT"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}

func (c config) network() (types.Network, error) {
	return types.ParseNetwork(c.Network)
}

func (c config) blockchair() (*blockchair.Client, error) {
	net, err := c.network()
	if err != nil {
		return nil, err
	}
	return blockchair.NewClient(util.FirstNonEmpty(c.Blockchair.URL, blockchair.DefaultURL), net), nil
}

// token returns the configured ERC-20 token, or nil for ether sends.
func (c config) token() (*evm.Token, error) {
	if c.Ethereum.TokenContract == "" {
		return nil, nil
	}
	if !ecommon.IsHexAddress(c.Ethereum.TokenContract) {
		return nil, fmt.Errorf("invalid token contract: %s", c.Ethereum.TokenContract)
	}
	return &evm.Token{
		Contract: ecommon.HexToAddress(c.Ethereum.TokenContract),
		Symbol:   c.Ethereum.TokenSymbol,
		Decimals: c.Ethereum.TokenDecimals,
	}, nil
}

func (c config) settings() (chain.Settings, error) {
	net, err := c.network()
	if err != nil {
		return chain.Settings{}, err
	}
	token, err := c.token()
	if err != nil {
		return chain.Settings{}, err
	}

	var feeB decimal.Decimal
	if c.Cardano.FeeB != "" {
		feeB, err = decimal.NewFromString(c.Cardano.FeeB)
		if err != nil {
			return chain.Settings{}, fmt.Errorf("invalid cardano fee coefficient: %w", err)
		}
	}

	var eosChainID []byte
	if c.EOS.ChainID != "" {
		eosChainID, err = codec.HexToBytes(c.EOS.ChainID)
		if err != nil {
			return chain.Settings{}, fmt.Errorf("invalid eos chain id: %w", err)
		}
	}

	return chain.Settings{
		Network: net,
		EVM: evm.Config{
			ChainID:       big.NewInt(c.Ethereum.ChainID),
			GasLimit:      c.Ethereum.GasLimit,
			TokenGasLimit: c.Ethereum.TokenGasLimit,
			Token:         token,
		},
		Cardano: cardano.Config{
			FeeA:      c.Cardano.FeeA,
			FeeB:      feeB,
			MinOutput: c.Cardano.MinOutput,
			TTL:       c.Cardano.TTL,
		},
		EOS: eos.Config{
			ChainID:    eosChainID,
			Contract:   c.EOS.Contract,
			Symbol:     c.EOS.Symbol,
			Precision:  c.EOS.Precision,
			Permission: c.EOS.Permission,
			Expiration: c.EOS.Expiration,
		},
		Stellar: stellar.Config{
			Passphrase: c.Stellar.Passphrase,
			Timeout:    c.Stellar.Timeout,
		},
		Binance: binance.Config{
			ChainID: c.Binance.ChainID,
			Denom:   c.Binance.Denom,
		},
	}, nil
}
