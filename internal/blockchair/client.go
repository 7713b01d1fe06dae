package blockchair

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/tidwall/gjson"

	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/utxo"
	"github.com/vultisig/coinengine/internal/utxo/address"
)

const (
	DefaultURL     = "https://api.blockchair.com"
	requestTimeout = 30 * time.Second
	pageLimit      = 50
)

// Client talks to the Blockchair REST API for the Bitcoin family.
type Client struct {
	url  string
	net  types.Network
	http *http.Client
}

func NewClient(url string, net types.Network) *Client {
	return &Client{
		url:  url,
		net:  net,
		http: &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) chainPath(chain types.Chain) (string, error) {
	var path string
	switch chain {
	case types.Bitcoin:
		path = "bitcoin"
	case types.BitcoinCash:
		path = "bitcoin-cash"
	case types.Litecoin:
		path = "litecoin"
	default:
		return "", fmt.Errorf("blockchair does not serve %s", chain)
	}
	if c.net == types.Testnet {
		if chain != types.Bitcoin {
			return "", fmt.Errorf("blockchair has no %s testnet", chain)
		}
		path += "/testnet"
	}
	return path, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any) (gjson.Result, error) {
	u := c.url + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("%s: status %d: %s", path, res.StatusCode, gjson.GetBytes(raw, "context.error").String())
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, txerr.NewDecodeError("json", "invalid blockchair response", nil)
	}
	return gjson.ParseBytes(raw), nil
}

// dataFor returns data[key] without interpreting key as a path.
func dataFor(r gjson.Result, key string) (gjson.Result, bool) {
	var found gjson.Result
	r.Get("data").ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
			return false
		}
		return true
	})
	return found, found.Exists()
}

type Utxo struct {
	BlockID         int64
	TransactionHash string
	Index           uint32
	Value           uint64
}

// GetAllUnspent fetches all UTXOs for an address, following pagination. It
// also returns the chain height the answer was computed at.
func (c *Client) GetAllUnspent(ctx context.Context, chain types.Chain, addr string) ([]Utxo, int64, error) {
	path, err := c.chainPath(chain)
	if err != nil {
		return nil, 0, err
	}

	var (
		all    []Utxo
		height int64
		offset int
	)
	for {
		res, err := c.call(ctx, http.MethodGet, path+"/dashboards/address/"+url.PathEscape(addr), url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {"0," + strconv.Itoa(pageLimit)},
		}, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch address info: %w", err)
		}
		height = res.Get("context.state").Int()

		val, ok := dataFor(res, addr)
		if !ok {
			break
		}
		batch := val.Get("utxo").Array()
		for _, u := range batch {
			all = append(all, Utxo{
				BlockID:         u.Get("block_id").Int(),
				TransactionHash: u.Get("transaction_hash").String(),
				Index:           uint32(u.Get("index").Uint()),
				Value:           u.Get("value").Uint(),
			})
		}
		if len(batch) < pageLimit {
			break
		}
		offset += pageLimit
	}
	return all, height, nil
}

// UnspentOutputs returns the address's outputs ready for selection.
// Mempool outputs have zero confirmations.
func (c *Client) UnspentOutputs(ctx context.Context, chain types.Chain, addr string) ([]utxo.UnspentOutput, error) {
	a, err := address.NewFromString(chain, c.net, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", txerr.ErrInvalidAddress, addr)
	}
	script, err := a.PayToAddrScript()
	if err != nil {
		return nil, fmt.Errorf("failed to build script: %w", err)
	}

	utxos, height, err := c.GetAllUnspent(ctx, chain, addr)
	if err != nil {
		return nil, err
	}

	out := make([]utxo.UnspentOutput, 0, len(utxos))
	for _, u := range utxos {
		hash, err := chainhash.NewHashFromStr(u.TransactionHash)
		if err != nil {
			return nil, txerr.NewDecodeError("txid", u.TransactionHash, err)
		}
		var conf int64
		if u.BlockID > 0 && height >= u.BlockID {
			conf = height - u.BlockID + 1
		}
		out = append(out, utxo.UnspentOutput{
			TxID:          *hash,
			Index:         u.Index,
			Value:         u.Value,
			Confirmations: conf,
			SpendScript:   script,
		})
	}
	return out, nil
}

func (c *Client) Balance(ctx context.Context, chain types.Chain, addr string) (*big.Int, error) {
	path, err := c.chainPath(chain)
	if err != nil {
		return nil, err
	}
	res, err := c.call(ctx, http.MethodGet, path+"/dashboards/address/"+url.PathEscape(addr), url.Values{"limit": {"0,0"}}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch address info: %w", err)
	}
	val, ok := dataFor(res, addr)
	if !ok {
		return new(big.Int), nil
	}
	balance, ok := new(big.Int).SetString(val.Get("address.balance").Raw, 10)
	if !ok {
		return nil, txerr.NewDecodeError("json", "balance is not an integer", nil)
	}
	return balance, nil
}

// GetRawTransaction returns raw transaction bytes.
func (c *Client) GetRawTransaction(ctx context.Context, chain types.Chain, txHash string) ([]byte, error) {
	path, err := c.chainPath(chain)
	if err != nil {
		return nil, err
	}
	res, err := c.call(ctx, http.MethodGet, path+"/raw/transaction/"+url.PathEscape(txHash), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get raw tx: %w", err)
	}
	data, ok := dataFor(res, txHash)
	if !ok {
		return nil, fmt.Errorf("failed to get tx from response, hash=%s", txHash)
	}
	raw, err := hex.DecodeString(data.Get("raw_transaction").String())
	if err != nil {
		return nil, txerr.NewDecodeError("hex", "raw_transaction", err)
	}
	return raw, nil
}

// OutputsTo returns the outputs of txHash paying to addr. Confirmations are
// left at zero; the raw transaction does not carry them.
func (c *Client) OutputsTo(ctx context.Context, chain types.Chain, txHash, addr string) ([]utxo.UnspentOutput, error) {
	a, err := address.NewFromString(chain, c.net, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", txerr.ErrInvalidAddress, addr)
	}
	script, err := a.PayToAddrScript()
	if err != nil {
		return nil, fmt.Errorf("failed to build script: %w", err)
	}
	raw, err := c.GetRawTransaction(ctx, chain, txHash)
	if err != nil {
		return nil, err
	}
	outs, err := utxo.ParseUnspentOutputs(raw, script, 0)
	if err != nil {
		return nil, err
	}
	if len(outs) > 0 && outs[0].TxID.String() != txHash {
		return nil, fmt.Errorf("%w: got tx %s, asked for %s", txerr.ErrChecksumMismatch, outs[0].TxID, txHash)
	}
	return outs, nil
}

// Broadcast pushes a signed transaction and returns its hash.
func (c *Client) Broadcast(ctx context.Context, chain types.Chain, payload []byte) (string, error) {
	path, err := c.chainPath(chain)
	if err != nil {
		return "", err
	}
	res, err := c.call(ctx, http.MethodPost, path+"/push/transaction", nil, map[string]string{
		"data": hex.EncodeToString(payload),
	})
	if err != nil {
		return "", fmt.Errorf("failed to push tx: %w", err)
	}

	txHash := res.Get("data.transaction_hash").String()
	if txHash == "" {
		return "", txerr.NewDecodeError("json", "missing transaction_hash", nil)
	}
	hash, err := chainhash.NewHashFromStr(txHash)
	if err != nil {
		return "", fmt.Errorf("failed to parse tx hash: %w", err)
	}
	return hash.String(), nil
}
