package types

import (
	"fmt"
	"strings"
)

// Chain is the closed set of chains the engine can build transactions for.
type Chain int

const (
	Bitcoin Chain = iota + 1
	BitcoinCash
	Litecoin
	Ethereum
	Cardano
	CardanoShelley
	EOS
	Stellar
	Binance
)

var chainNames = map[Chain]string{
	Bitcoin:        "bitcoin",
	BitcoinCash:    "bitcoincash",
	Litecoin:       "litecoin",
	Ethereum:       "ethereum",
	Cardano:        "cardano",
	CardanoShelley: "cardano-shelley",
	EOS:            "eos",
	Stellar:        "stellar",
	Binance:        "binance",
}

func (c Chain) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return fmt.Sprintf("chain(%d)", int(c))
}

// ParseChain accepts the lower-case chain name.
func ParseChain(s string) (Chain, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for c, name := range chainNames {
		if name == want {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unsupported chain: %q", s)
}

// AllChains returns every supported chain in declaration order.
func AllChains() []Chain {
	return []Chain{Bitcoin, BitcoinCash, Litecoin, Ethereum, Cardano, CardanoShelley, EOS, Stellar, Binance}
}

// IsUTXO reports whether the chain uses the Bitcoin-family input selection.
func (c Chain) IsUTXO() bool {
	return c == Bitcoin || c == BitcoinCash || c == Litecoin
}

// Network selects mainnet or testnet parameters where a chain has both.
type Network int

const (
	Mainnet Network = iota
	Testnet
)

func (n Network) String() string {
	if n == Testnet {
		return "testnet"
	}
	return "mainnet"
}

func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mainnet", "main":
		return Mainnet, nil
	case "testnet", "test":
		return Testnet, nil
	default:
		return Mainnet, fmt.Errorf("unknown network: %q", s)
	}
}
