package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/kol-feed-api/internal/types"
)

// DefaultWalletTxLimit is the number of transactions requested per wallet
const DefaultWalletTxLimit = 50

// IndexerClient fetches parsed wallet transaction history from the indexer
type IndexerClient struct {
	client *Client
	apiKey string
}

// NewIndexerClient creates a new indexer client
func NewIndexerClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *IndexerClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &IndexerClient{
		client: NewClient(types.UpstreamIndexer, strings.TrimRight(baseURL, "/"), timeout, opts...),
		apiKey: apiKey,
	}
}

// Client exposes the underlying upstream client
func (c *IndexerClient) Client() *Client {
	return c.client
}

// WalletTransactions returns the indexer's JSON for a wallet's recent
// transactions without interpreting it.
func (c *IndexerClient) WalletTransactions(ctx context.Context, address string, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultWalletTxLimit
	}
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.client.Get(ctx, "/addresses/"+url.PathEscape(address)+"/transactions", params, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("indexer returned malformed JSON for %s", address)
	}
	return json.RawMessage(body), nil
}
