package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/coinengine/internal/btc"
	"github.com/vultisig/coinengine/internal/chain"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/utxo"
)

const (
	generatorAddr = "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH"
	fundingTxID   = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
)

func newBlockchairTestConfig(t *testing.T, handler http.HandlerFunc) config {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := testConfig()
	cfg.Blockchair.URL = srv.URL
	return cfg
}

func generatorKey() *btcec.PrivateKey {
	var b [32]byte
	b[31] = 1
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv
}

func TestFeeCmd_AmountRange(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"negative amount", []string{"--amount=-0.001"}, txerr.ErrAmountBelowMinimum},
		{"amount past uint64", []string{"--amount", "184467440737.09551616"}, txerr.ErrAmountBelowMinimum},
		{"negative extra fee", []string{"--amount=0.001", "--extra-fee=-0.0001"}, txerr.ErrFeeOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newBlockchairTestConfig(t, func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("unexpected request %s", r.URL.Path)
			})
			_, err := runWith(t, cfg, append([]string{"fee", "bitcoin", generatorAddr}, tt.args...)...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFeeCmd(t *testing.T) {
	cfg := newBlockchairTestConfig(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bitcoin/dashboards/address/"+generatorAddr, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{generatorAddr: map[string]any{
				"address": map[string]any{"balance": 100000},
				"utxo": []map[string]any{
					{"block_id": 100, "transaction_hash": fundingTxID, "index": 0, "value": 100000},
				},
			}},
			"context": map[string]any{"code": 200, "state": 105},
		})
	})

	out, err := runWith(t, cfg, "fee", "bitcoin", generatorAddr, "--amount", "0.0002")
	require.NoError(t, err)

	var got feeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "0.001", got.Balance)
	assert.Equal(t, 1, got.Inputs)
	assert.Equal(t, "0.0002", got.AmountForRecipient)
	assert.Equal(t, "0.0001", got.Fee)
	assert.Equal(t, "0.0007", got.Change)
}

func TestOutputsCmd(t *testing.T) {
	script, err := spendScript(generatorWallet(t), types.Mainnet)
	require.NoError(t, err)

	msg := wire.NewMsgTx(1)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{7}, 1), nil, nil))
	msg.AddTxOut(wire.NewTxOut(12345, script))
	var buf bytes.Buffer
	require.NoError(t, msg.Serialize(&buf))
	txID := msg.TxHash().String()

	cfg := newBlockchairTestConfig(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{%q:{"raw_transaction":%q}}}`, txID, hex.EncodeToString(buf.Bytes()))
	})
	out, err := runWith(t, cfg, "outputs", "bitcoin", txID, generatorAddr)
	require.NoError(t, err)

	var got []jobUTXO
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, jobUTXO{TxID: txID, Index: 0, Value: 12345}, got[0])

	_, err = run(t, "outputs", "ethereum", txID, generatorAddr)
	require.Error(t, err)
}

func generatorWallet(t *testing.T) chain.Wallet {
	t.Helper()
	j := job{Chain: "bitcoin", PubKey: generatorPub}
	w, err := j.wallet()
	require.NoError(t, err)
	return w
}

func TestRemainingOutputs(t *testing.T) {
	w := generatorWallet(t)
	script, err := spendScript(w, types.Mainnet)
	require.NoError(t, err)

	available := []utxo.UnspentOutput{
		{TxID: chainhash.Hash{1}, Index: 0, Value: 100000, Confirmations: 6, SpendScript: script},
		{TxID: chainhash.Hash{2}, Index: 3, Value: 60000, Confirmations: 2, SpendScript: script},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	b, err := btc.NewBuilder(types.Bitcoin, types.Mainnet, w.PubKey, available, logger)
	require.NoError(t, err)

	tx, err := b.Build(types.SendRequest{Amount: big.NewInt(20000), Target: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"})
	require.NoError(t, err)
	require.Positive(t, tx.Plan.Change)

	var raw []byte
	for _, d := range tx.DigestsToSign() {
		raw = append(raw, ecdsa.SignCompact(generatorKey(), d, true)[1:]...)
	}
	signed, err := tx.AssembleSigned(raw)
	require.NoError(t, err)

	remaining, err := remainingOutputs(available, tx, signed, script)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, chainhash.Hash{2}.String(), remaining[0].TxID)
	assert.Equal(t, uint64(60000), remaining[0].Value)

	msg := wire.NewMsgTx(1)
	require.NoError(t, msg.Deserialize(bytes.NewReader(signed)))
	change := remaining[1]
	assert.Equal(t, msg.TxHash().String(), change.TxID)
	assert.Equal(t, uint32(1), change.Index)
	assert.Equal(t, tx.Plan.Change, change.Value)
	assert.Zero(t, change.Confirmations)
}
