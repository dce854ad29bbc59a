/*
This file is used to fetch a wallet's normal transaction history from an
Etherscan-compatible explorer API.

The analyzer needs the full ascending history to compute age, volume, and the
balance walk; a wallet with no recorded transactions is a defined signal, not
an error.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/creditlens/wcs/internal/logger"
	"github.com/creditlens/wcs/internal/types"
)

var historyLogger = logger.GetForComponent("history_retriever")

var ErrExplorerAPI = errors.New("explorer API request failed")
var ErrMalformedHistory = errors.New("explorer returned malformed history")

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
	RETRY_BACKOFF   = 2 * time.Second
)

// ExplorerClient fetches transaction lists from an Etherscan-compatible API.
type ExplorerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewExplorerClient creates a client for the given API base URL and key.
func NewExplorerClient(baseURL, apiKey string) *ExplorerClient {
	return &ExplorerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: TIMEOUT_SECONDS * time.Second,
		},
	}
}

type explorerTxListResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTx struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	GasPrice  string `json:"gasPrice"`
	TimeStamp string `json:"timeStamp"`
}

// TransactionHistory returns the wallet's normal transactions sorted
// ascending by the explorer. An empty slice with a nil error is the explicit
// no-history signal; every other anomaly is an error.
func (c *ExplorerClient) TransactionHistory(ctx context.Context, address string) ([]types.TransactionRecord, error) {
	query := url.Values{}
	query.Set("module", "account")
	query.Set("action", "txlist")
	query.Set("address", address)
	query.Set("startblock", "0")
	query.Set("endblock", "99999999")
	query.Set("sort", "asc")
	query.Set("apikey", c.apiKey)
	requestURL := c.baseURL + "?" + query.Encode()

	body, err := c.getWithRetries(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	var resp explorerTxListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHistory, err)
	}

	// Etherscan reports "no transactions found" as a status-0 response with
	// an empty result array. That is the defined empty-history signal.
	if resp.Status == "0" {
		if strings.Contains(strings.ToLower(resp.Message), "no transactions") {
			historyLogger.Debug().Str("address", address).Msg("Explorer reports no transaction history")
			return []types.TransactionRecord{}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrExplorerAPI, resp.Message)
	}

	var rawTxs []explorerTx
	if err := json.Unmarshal(resp.Result, &rawTxs); err != nil {
		return nil, fmt.Errorf("%w: result is not a transaction list: %w", ErrMalformedHistory, err)
	}

	records := make([]types.TransactionRecord, 0, len(rawTxs))
	for i, tx := range rawTxs {
		record, err := parseExplorerTx(tx)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrMalformedHistory, i, err)
		}
		records = append(records, record)
	}

	historyLogger.Debug().
		Str("address", address).
		Int("txCount", len(records)).
		Msg("Transaction history fetched")

	return records, nil
}

func parseExplorerTx(tx explorerTx) (types.TransactionRecord, error) {
	valueWei, ok := new(big.Int).SetString(tx.Value, 10)
	if !ok {
		return types.TransactionRecord{}, fmt.Errorf("value %q is not an integer", tx.Value)
	}

	timestamp, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		return types.TransactionRecord{}, fmt.Errorf("timestamp %q is not an integer", tx.TimeStamp)
	}
	if timestamp <= 0 {
		return types.TransactionRecord{}, fmt.Errorf("timestamp %d is not positive", timestamp)
	}

	record := types.TransactionRecord{
		From:      strings.ToLower(tx.From),
		To:        strings.ToLower(tx.To),
		ValueWei:  valueWei,
		Timestamp: timestamp,
	}

	if tx.GasPrice != "" {
		gasPriceWei, ok := new(big.Int).SetString(tx.GasPrice, 10)
		if !ok {
			return types.TransactionRecord{}, fmt.Errorf("gas price %q is not an integer", tx.GasPrice)
		}
		record.GasPriceWei = gasPriceWei
	}

	return record, nil
}

// getWithRetries performs a GET with bounded retries. The retry budget covers
// transport-level failures only; API-level errors are surfaced to the caller
// without another attempt.
func (c *ExplorerClient) getWithRetries(ctx context.Context, requestURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExplorerAPI, err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
			} else if resp.StatusCode != http.StatusOK {
				lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			} else {
				return body, nil
			}
		}

		historyLogger.Warn().
			Int("attempt", attempt).
			Err(lastErr).
			Msg("Explorer request failed")

		if attempt < MAX_RETRIES {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrExplorerAPI, ctx.Err())
			case <-time.After(RETRY_BACKOFF):
			}
		}
	}
	return nil, fmt.Errorf("%w: %d attempts: %w", ErrExplorerAPI, MAX_RETRIES, lastErr)
}
