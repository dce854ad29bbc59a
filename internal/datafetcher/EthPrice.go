/*
This file is used to fetch the current ETH/USD rate for fiat rendering of the
loan limit. Price data is strictly optional: when the provider is missing or
unreachable the analysis proceeds and fiat values are reported unavailable.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/creditlens/wcs/internal/logger"
)

var priceLogger = logger.GetForComponent("price_retriever")

var ErrPriceUnavailable = errors.New("price data unavailable")

// DefaultPriceURL is the CoinGecko simple-price endpoint for ETH in USD.
const DefaultPriceURL = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"

// PriceClient fetches the ETH/USD conversion rate.
type PriceClient struct {
	url        string
	httpClient *http.Client
}

// NewPriceClient creates a price client; an empty URL selects the default
// endpoint.
func NewPriceClient(url string) *PriceClient {
	if url == "" {
		url = DefaultPriceURL
	}
	return &PriceClient{
		url: url,
		httpClient: &http.Client{
			Timeout: TIMEOUT_SECONDS * time.Second,
		},
	}
}

type simplePriceResponse struct {
	Ethereum struct {
		USD float64 `json:"usd"`
	} `json:"ethereum"`
}

// EthUsdPrice returns the current ETH price in USD. A single attempt: the
// caller treats failure as "fiat unavailable", so retrying here buys nothing.
func (c *PriceClient) EthUsdPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d", ErrPriceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}

	var parsed simplePriceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}

	price := parsed.Ethereum.USD
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: implausible price %f", ErrPriceUnavailable, price)
	}

	priceLogger.Debug().Float64("ethUsd", price).Msg("ETH price fetched")
	return price, nil
}
