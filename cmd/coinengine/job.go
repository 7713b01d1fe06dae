package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/vultisig/coinengine/internal/binance"
	"github.com/vultisig/coinengine/internal/cardano"
	"github.com/vultisig/coinengine/internal/chain"
	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/eos"
	"github.com/vultisig/coinengine/internal/stellar"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/util"
	"github.com/vultisig/coinengine/internal/utxo"
	"github.com/vultisig/coinengine/internal/utxo/address"
)

// job is a send described in a JSON file. Amount and Fee are in coin units
// ("0.001"); account balances are in base units.
type job struct {
	Chain       string `json:"chain"`
	PubKey      string `json:"pub_key"`
	Method      string `json:"method"`
	Target      string `json:"target"`
	Amount      string `json:"amount"`
	Fee         string `json:"fee"`
	FeeIncluded bool   `json:"fee_included"`
	Memo        string `json:"memo"`
	// Fetch loads account state from the configured providers instead of
	// the snapshot below.
	Fetch bool `json:"fetch"`

	UTXOs   []jobUTXO   `json:"utxos"`
	EVM     *jobEVM     `json:"evm"`
	Cardano *jobCardano `json:"cardano"`
	EOS     *jobEOS     `json:"eos"`
	Stellar *jobStellar `json:"stellar"`
	Binance *jobBinance `json:"binance"`
}

type jobUTXO struct {
	TxID          string `json:"txid"`
	Index         uint32 `json:"index"`
	Value         uint64 `json:"value"`
	Confirmations int64  `json:"confirmations"`
}

type jobEVM struct {
	Balance      string `json:"balance"`
	TxCount      uint64 `json:"tx_count"`
	TokenBalance string `json:"token_balance"`
}

type jobCardano struct {
	Inputs []struct {
		TxHash string `json:"tx_hash"`
		Index  uint32 `json:"index"`
		Amount uint64 `json:"amount"`
	} `json:"inputs"`
	Slot uint64 `json:"slot"`
}

type jobEOS struct {
	Name          string    `json:"name"`
	Balance       string    `json:"balance"`
	HeadBlockID   string    `json:"head_block_id"`
	HeadBlockTime time.Time `json:"head_block_time"`
}

type jobStellar struct {
	Sequence     int64     `json:"sequence"`
	Balance      string    `json:"balance"`
	Reserve      string    `json:"reserve"`
	TargetFunded bool      `json:"target_funded"`
	Now          time.Time `json:"now"`
}

type jobBinance struct {
	AccountNumber int64  `json:"account_number"`
	Sequence      int64  `json:"sequence"`
	Balance       string `json:"balance"`
}

func loadJob(path string) (job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return job{}, fmt.Errorf("failed to read job file: %w", err)
	}
	var j job
	if err = json.Unmarshal(data, &j); err != nil {
		return job{}, fmt.Errorf("failed to parse job file: %w", err)
	}
	return j, nil
}

func parseMethod(s string) (types.SigningMethod, error) {
	switch s {
	case "", "hash":
		return types.SignHash, nil
	case "raw":
		return types.SignRaw, nil
	default:
		return 0, fmt.Errorf("unknown signing method: %q", s)
	}
}

func (j job) wallet() (chain.Wallet, error) {
	c, err := types.ParseChain(j.Chain)
	if err != nil {
		return chain.Wallet{}, err
	}
	method, err := parseMethod(j.Method)
	if err != nil {
		return chain.Wallet{}, err
	}
	pub, err := codec.HexToBytes(j.PubKey)
	if err != nil {
		return chain.Wallet{}, fmt.Errorf("invalid public key: %w", err)
	}
	return chain.Wallet{Chain: c, PubKey: pub, Method: method}, nil
}

// amountDecimals is the number of decimals the job's amounts are written in.
func amountDecimals(c types.Chain, s chain.Settings) (int32, error) {
	switch {
	case c == types.Ethereum && s.EVM.Token != nil:
		return s.EVM.Token.Decimals, nil
	case c == types.EOS && s.EOS.Symbol != "":
		return int32(s.EOS.Precision), nil
	default:
		return util.GetNativeDecimals(c)
	}
}

func (j job) request(c types.Chain, s chain.Settings) (types.SendRequest, error) {
	decimals, err := amountDecimals(c, s)
	if err != nil {
		return types.SendRequest{}, err
	}
	req := types.SendRequest{
		Amount:      new(big.Int),
		Fee:         new(big.Int),
		FeeIncluded: j.FeeIncluded,
		Target:      j.Target,
		Memo:        j.Memo,
	}
	if j.Amount != "" {
		if req.Amount, err = util.ToBaseUnits(j.Amount, decimals); err != nil {
			return types.SendRequest{}, err
		}
	}
	if j.Fee != "" {
		feeDecimals := decimals
		if c == types.Ethereum {
			feeDecimals = util.NativeDecimals[types.Ethereum]
		}
		if req.Fee, err = util.ToBaseUnits(j.Fee, feeDecimals); err != nil {
			return types.SendRequest{}, err
		}
	}
	return req, nil
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %q", s)
	}
	return v, nil
}

// state converts the snapshot for c. Missing sections give empty state.
func (j job) state(w chain.Wallet, s chain.Settings) (chain.State, error) {
	var (
		st  chain.State
		err error
	)
	switch w.Chain {
	case types.Bitcoin, types.BitcoinCash, types.Litecoin:
		if len(j.UTXOs) == 0 {
			return st, nil
		}
		script, err := spendScript(w, s.Network)
		if err != nil {
			return st, err
		}
		st.UTXOs, err = j.unspentOutputs(script)
		return st, err
	case types.Ethereum:
		if j.EVM == nil {
			return st, nil
		}
		st.EVM.TxCount = j.EVM.TxCount
		if st.EVM.Balance, err = parseBig(j.EVM.Balance); err != nil {
			return st, err
		}
		st.EVM.TokenBalance, err = parseBig(j.EVM.TokenBalance)
		return st, err
	case types.Cardano, types.CardanoShelley:
		if j.Cardano == nil {
			return st, nil
		}
		st.Cardano.Slot = j.Cardano.Slot
		for _, in := range j.Cardano.Inputs {
			h, err := codec.HexToBytes(in.TxHash)
			if err != nil || len(h) != 32 {
				return st, fmt.Errorf("invalid cardano input hash %q", in.TxHash)
			}
			st.Cardano.Inputs = append(st.Cardano.Inputs, cardano.Input{TxHash: [32]byte(h), Index: in.Index, Amount: in.Amount})
		}
		return st, nil
	case types.EOS:
		if j.EOS == nil {
			return st, nil
		}
		st.EOS = eos.Account{Name: j.EOS.Name, HeadBlockTime: j.EOS.HeadBlockTime}
		if st.EOS.Balance, err = parseBig(j.EOS.Balance); err != nil {
			return st, err
		}
		st.EOS.HeadBlockID, err = codec.HexToBytes(j.EOS.HeadBlockID)
		return st, err
	case types.Stellar:
		if j.Stellar == nil {
			return st, nil
		}
		st.Stellar = stellar.Account{Sequence: j.Stellar.Sequence, TargetFunded: j.Stellar.TargetFunded, Now: j.Stellar.Now}
		if st.Stellar.Balance, err = parseBig(j.Stellar.Balance); err != nil {
			return st, err
		}
		st.Stellar.Reserve, err = parseBig(j.Stellar.Reserve)
		return st, err
	case types.Binance:
		if j.Binance == nil {
			return st, nil
		}
		st.Binance = binance.Account{AccountNumber: j.Binance.AccountNumber, Sequence: j.Binance.Sequence}
		st.Binance.Balance, err = parseBig(j.Binance.Balance)
		return st, err
	default:
		return st, fmt.Errorf("unsupported chain: %s", w.Chain)
	}
}

// spendScript is the P2PKH script locking the wallet's outputs.
func spendScript(w chain.Wallet, net types.Network) ([]byte, error) {
	from, err := address.FromPubKey(w.Chain, net, w.PubKey)
	if err != nil {
		return nil, err
	}
	return from.PayToAddrScript()
}

func toJobUTXOs(outs []utxo.UnspentOutput) []jobUTXO {
	res := make([]jobUTXO, 0, len(outs))
	for _, u := range outs {
		res = append(res, jobUTXO{
			TxID:          u.TxID.String(),
			Index:         u.Index,
			Value:         u.Value,
			Confirmations: u.Confirmations,
		})
	}
	return res
}

func (j job) unspentOutputs(script []byte) ([]utxo.UnspentOutput, error) {
	out := make([]utxo.UnspentOutput, 0, len(j.UTXOs))
	for _, u := range j.UTXOs {
		h, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("invalid txid %q: %w", u.TxID, err)
		}
		out = append(out, utxo.UnspentOutput{
			TxID:          *h,
			Index:         u.Index,
			Value:         u.Value,
			Confirmations: u.Confirmations,
			SpendScript:   script,
		})
	}
	return out, nil
}
