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

	"github.com/sirupsen/logrus"

	"github.com/yourorg/kol-feed-api/internal/model"
	"github.com/yourorg/kol-feed-api/internal/types"
)

// Default table names in the datastore
const (
	DefaultTransactionsTable = "webhook_transactions"
	DefaultProfilesTable     = "kol_profiles"
)

// TransactionQuery filters a transaction listing. Zero values disable a filter.
type TransactionQuery struct {
	// Only rows with block_time at or after Since
	Since time.Time
	// Only rows whose from_address equals Wallet
	Wallet string
	Limit  int
}

// DataStoreClient reads KOL transactions and profiles from a PostgREST
// style REST interface at {baseURL}/rest/v1/{table}.
type DataStoreClient struct {
	client            *Client
	apiKey            string
	transactionsTable string
	profilesTable     string
}

// DataStoreConfig configures a DataStoreClient
type DataStoreConfig struct {
	BaseURL           string
	APIKey            string
	TransactionsTable string
	ProfilesTable     string
	Timeout           time.Duration
}

// NewDataStoreClient creates a new datastore client
func NewDataStoreClient(cfg DataStoreConfig, opts ...Option) *DataStoreClient {
	if cfg.TransactionsTable == "" {
		cfg.TransactionsTable = DefaultTransactionsTable
	}
	if cfg.ProfilesTable == "" {
		cfg.ProfilesTable = DefaultProfilesTable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DataStoreClient{
		client:            NewClient(types.UpstreamDataStore, strings.TrimRight(cfg.BaseURL, "/"), cfg.Timeout, opts...),
		apiKey:            cfg.APIKey,
		transactionsTable: cfg.TransactionsTable,
		profilesTable:     cfg.ProfilesTable,
	}
}

// Client exposes the underlying upstream client
func (d *DataStoreClient) Client() *Client {
	return d.client
}

// RecentTransactions lists transactions newest first
func (d *DataStoreClient) RecentTransactions(ctx context.Context, q TransactionQuery) ([]model.Transaction, error) {
	params := url.Values{}
	params.Set("select", "*")
	if !q.Since.IsZero() {
		params.Set("block_time", "gte."+q.Since.UTC().Format(time.RFC3339))
	}
	if q.Wallet != "" {
		params.Set("from_address", "eq."+q.Wallet)
	}
	params.Set("order", "block_time.desc")
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var rows []model.Transaction
	if err := d.query(ctx, d.transactionsTable, params, &rows); err != nil {
		return nil, err
	}
	logrus.Debugf("Received %d transactions from datastore", len(rows))
	return rows, nil
}

// Profiles lists every KOL profile
func (d *DataStoreClient) Profiles(ctx context.Context) ([]model.KOLProfile, error) {
	params := url.Values{}
	params.Set("select", "*")

	var rows []model.KOLProfile
	if err := d.query(ctx, d.profilesTable, params, &rows); err != nil {
		return nil, err
	}
	logrus.Debugf("Received %d profiles from datastore", len(rows))
	return rows, nil
}

// ProfileByWallet looks up the profile for a wallet. It returns nil without
// an error when no profile exists.
func (d *DataStoreClient) ProfileByWallet(ctx context.Context, wallet string) (*model.KOLProfile, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("wallet_address", "eq."+wallet)
	params.Set("limit", "1")

	var rows []model.KOLProfile
	if err := d.query(ctx, d.profilesTable, params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (d *DataStoreClient) query(ctx context.Context, table string, params url.Values, out interface{}) error {
	header := http.Header{}
	header.Set("apikey", d.apiKey)
	header.Set("Authorization", "Bearer "+d.apiKey)

	body, err := d.client.Get(ctx, "/rest/v1/"+table, params, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding %s rows: %w", table, err)
	}
	return nil
}
