package cardano

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/util"
)

const submitTimeout = 30 * time.Second

// Submitter posts signed transactions to a submit endpoint that takes
// {"signedTx": <base64>} and answers with the transaction hash.
type Submitter struct {
	url  string
	http *http.Client
}

func NewSubmitter(url string) *Submitter {
	return &Submitter{
		url:  url,
		http: &http.Client{Timeout: submitTimeout},
	}
}

func (s *Submitter) Broadcast(ctx context.Context, chain types.Chain, payload []byte) (string, error) {
	if chain != types.Cardano && chain != types.CardanoShelley {
		return "", fmt.Errorf("cardano submitter does not serve %s", chain)
	}
	body, err := json.Marshal(map[string]string{"signedTx": EncodeBase64(payload)})
	if err != nil {
		return "", fmt.Errorf("failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit tx: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit: status %d: %s", res.StatusCode, util.FirstNonEmpty(gjson.GetBytes(raw, "Left").String(), string(raw)))
	}
	if !gjson.ValidBytes(raw) {
		return "", txerr.NewDecodeError("json", "invalid submit response", nil)
	}
	if left := gjson.GetBytes(raw, "Left"); left.Exists() {
		return "", fmt.Errorf("submit rejected: %s", left.String())
	}

	txHash := util.FirstNonEmpty(gjson.GetBytes(raw, "Right.txHash").String(), gjson.GetBytes(raw, "txHash").String())
	if b, err := codec.HexToBytes(txHash); err != nil || len(b) != 32 {
		return "", txerr.NewDecodeError("json", "missing or malformed txHash", err)
	}
	return txHash, nil
}
