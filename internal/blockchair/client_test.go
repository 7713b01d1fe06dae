package blockchair

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/coinengine/internal/provider"
	"github.com/vultisig/coinengine/internal/signer"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/utxo/address"
)

var (
	_ provider.UTXOProvider    = (*Client)(nil)
	_ provider.BalanceProvider = (*Client)(nil)
	_ signer.Broadcaster       = (*Client)(nil)
)

const (
	testAddr = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	testTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, types.Mainnet)
}

func TestUnspentOutputs(t *testing.T) {
	var pages int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bitcoin/dashboards/address/"+testAddr, r.URL.Path)
		pages++
		utxos := make([]map[string]any, 0)
		if r.URL.Query().Get("offset") == "0" {
			for i := 0; i < pageLimit; i++ {
				utxos = append(utxos, map[string]any{"block_id": 100, "transaction_hash": testTxID, "index": i, "value": 1000})
			}
		} else {
			utxos = append(utxos, map[string]any{"block_id": -1, "transaction_hash": testTxID, "index": 99, "value": 7})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":    map[string]any{testAddr: map[string]any{"utxo": utxos}},
			"context": map[string]any{"code": 200, "state": 105},
		})
	})

	outs, err := c.UnspentOutputs(context.Background(), types.Bitcoin, testAddr)
	require.NoError(t, err)
	require.Len(t, outs, pageLimit+1)
	assert.Equal(t, 2, pages)

	assert.Equal(t, testTxID, outs[0].TxID.String())
	assert.Equal(t, int64(6), outs[0].Confirmations)
	assert.Equal(t, uint64(1000), outs[0].Value)
	assert.NotEmpty(t, outs[0].SpendScript)

	last := outs[len(outs)-1]
	assert.Equal(t, uint32(99), last.Index)
	assert.Equal(t, int64(0), last.Confirmations)
}

func TestUnspentOutputs_Errors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"data":null,"context":{"code":429,"error":"limit reached"}}`))
	})

	_, err := c.UnspentOutputs(context.Background(), types.Bitcoin, "not-an-address")
	require.ErrorIs(t, err, txerr.ErrInvalidAddress)

	_, err = c.UnspentOutputs(context.Background(), types.Bitcoin, testAddr)
	require.ErrorContains(t, err, "limit reached")

	_, err = c.UnspentOutputs(context.Background(), types.Ethereum, testAddr)
	require.Error(t, err)
}

func TestBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{%q:{"address":{"balance":6850000000}}},"context":{"code":200}}`, testAddr)
	})
	b, err := c.Balance(context.Background(), types.Bitcoin, testAddr)
	require.NoError(t, err)
	assert.Equal(t, "6850000000", b.String())

	b, err = c.Balance(context.Background(), types.Bitcoin, "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Int64())
}

func TestGetRawTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/litecoin/raw/transaction/"+testTxID, r.URL.Path)
		fmt.Fprintf(w, `{"data":{%q:{"raw_transaction":"0100"}}}`, testTxID)
	})
	raw, err := c.GetRawTransaction(context.Background(), types.Litecoin, testTxID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, raw)

	_, err = c.GetRawTransaction(context.Background(), types.Litecoin, strings.Repeat("0", 64))
	require.Error(t, err)
}

func TestOutputsTo(t *testing.T) {
	own, err := address.NewFromString(types.Bitcoin, types.Mainnet, testAddr)
	require.NoError(t, err)
	ownScript, err := own.PayToAddrScript()
	require.NoError(t, err)
	other, err := address.NewFromString(types.Bitcoin, types.Mainnet, "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2")
	require.NoError(t, err)
	otherScript, err := other.PayToAddrScript()
	require.NoError(t, err)

	msg := wire.NewMsgTx(1)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil))
	msg.AddTxOut(wire.NewTxOut(40000, otherScript))
	msg.AddTxOut(wire.NewTxOut(55000, ownScript))
	var buf bytes.Buffer
	require.NoError(t, msg.Serialize(&buf))
	txID := msg.TxHash().String()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bitcoin/raw/transaction/"+txID, r.URL.Path)
		fmt.Fprintf(w, `{"data":{%q:{"raw_transaction":%q}}}`, txID, hex.EncodeToString(buf.Bytes()))
	})

	outs, err := c.OutputsTo(context.Background(), types.Bitcoin, txID, testAddr)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, txID, outs[0].TxID.String())
	assert.Equal(t, uint32(1), outs[0].Index)
	assert.Equal(t, uint64(55000), outs[0].Value)
	assert.Equal(t, ownScript, outs[0].SpendScript)

	_, err = c.OutputsTo(context.Background(), types.Bitcoin, txID, "not-an-address")
	require.ErrorIs(t, err, txerr.ErrInvalidAddress)
}

func TestOutputsTo_WrongTransaction(t *testing.T) {
	own, err := address.NewFromString(types.Bitcoin, types.Mainnet, testAddr)
	require.NoError(t, err)
	ownScript, err := own.PayToAddrScript()
	require.NoError(t, err)

	msg := wire.NewMsgTx(1)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{2}, 0), nil, nil))
	msg.AddTxOut(wire.NewTxOut(1000, ownScript))
	var buf bytes.Buffer
	require.NoError(t, msg.Serialize(&buf))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{%q:{"raw_transaction":%q}}}`, testTxID, hex.EncodeToString(buf.Bytes()))
	})
	_, err = c.OutputsTo(context.Background(), types.Bitcoin, testTxID, testAddr)
	require.ErrorIs(t, err, txerr.ErrChecksumMismatch)
}

func TestBroadcast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bitcoin-cash/push/transaction", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deadbeef", body["data"])
		fmt.Fprintf(w, `{"data":{"transaction_hash":%q}}`, testTxID)
	})
	id, err := c.Broadcast(context.Background(), types.BitcoinCash, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.Equal(t, testTxID, id)
}

func TestChainPath(t *testing.T) {
	c := NewClient(DefaultURL, types.Testnet)
	p, err := c.chainPath(types.Bitcoin)
	require.NoError(t, err)
	assert.Equal(t, "bitcoin/testnet", p)

	_, err = c.chainPath(types.Litecoin)
	require.Error(t, err)
}
