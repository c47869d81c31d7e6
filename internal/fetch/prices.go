package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/kol-feed-api/internal/types"
)

// PriceClient fetches token prices from the price service
type PriceClient struct {
	client *Client
	apiKey string
	chain  string
}

// NewPriceClient creates a new price client for Solana tokens
func NewPriceClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *PriceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PriceClient{
		client: NewClient(types.UpstreamPrices, strings.TrimRight(baseURL, "/"), timeout, opts...),
		apiKey: apiKey,
		chain:  "solana",
	}
}

// Client exposes the underlying upstream client
func (c *PriceClient) Client() *Client {
	return c.client
}

// TokenPrice returns the data member of the price service's response for a
// token. Responses whose envelope reports success=false are upstream failures.
func (c *PriceClient) TokenPrice(ctx context.Context, address string, checkLiquidity bool) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("check_liquidity", strconv.FormatBool(checkLiquidity))

	header := http.Header{}
	header.Set("X-API-KEY", c.apiKey)
	header.Set("x-chain", c.chain)

	body, err := c.client.Get(ctx, "/defi/price", params, header)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("error decoding price response for %s: %w", address, err)
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, c.client.fail(ctx, &UpstreamError{
			Upstream:   types.UpstreamPrices,
			StatusCode: http.StatusOK,
			Message:    upstreamMessage(body),
		}, false)
	}
	if len(envelope.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return envelope.Data, nil
}
