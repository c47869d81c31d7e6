package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "BCagckXeMChUKrHEd6fKFA1uiWDtcmCXMsqaheLiUPJd"

func newDataStoreServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *DataStoreClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewDataStoreClient(DataStoreConfig{BaseURL: server.URL + "/", APIKey: "service-key", Timeout: time.Second})
}

func TestDataStore_RecentTransactions(t *testing.T) {
	since := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client := newDataStoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/webhook_transactions", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, "gte.2024-05-01T12:00:00Z", q.Get("block_time"))
		assert.Equal(t, "eq."+testWallet, q.Get("from_address"))
		assert.Equal(t, "block_time.desc", q.Get("order"))
		assert.Equal(t, "100", q.Get("limit"))
		_, _ = w.Write([]byte(`[
			{"id":1,"transaction_signature":"sig1","from_address":"` + testWallet + `","token_mint":"mint","token_symbol":"BONK",
			 "amount":"1500.5","usd_value":250000,"transaction_type":"SWAP","block_time":"2024-05-01T12:30:00+00:00"}
		]`))
	})

	txs, err := client.RecentTransactions(context.Background(), TransactionQuery{Since: since, Wallet: testWallet, Limit: 100})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "sig1", txs[0].Signature)
	assert.Equal(t, "250000", txs[0].USDValue.String())
	assert.Equal(t, "1500.5", txs[0].Amount.String())
}

func TestDataStore_OmitsUnsetFilters(t *testing.T) {
	client := newDataStoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Empty(t, q.Get("block_time"))
		assert.Empty(t, q.Get("from_address"))
		assert.Empty(t, q.Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	})

	txs, err := client.RecentTransactions(context.Background(), TransactionQuery{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestDataStore_Profiles(t *testing.T) {
	client := newDataStoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/kol_profiles", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"a","wallet_address":"` + testWallet + `","name":"Ansem","total_pnl":1234.5,"win_rate":61.2}]`))
	})

	profiles, err := client.Profiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Ansem", profiles[0].DisplayName())
	assert.Equal(t, "1234.5", profiles[0].PnL().String())
}

func TestDataStore_ProfileByWallet(t *testing.T) {
	client := newDataStoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("limit"))
		if q.Get("wallet_address") == "eq."+testWallet {
			_, _ = w.Write([]byte(`[{"wallet_address":"` + testWallet + `"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	profile, err := client.ProfileByWallet(context.Background(), testWallet)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, testWallet, profile.WalletAddress)

	missing, err := client.ProfileByWallet(context.Background(), "So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDataStore_MalformedPayload(t *testing.T) {
	client := newDataStoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := client.Profiles(context.Background())
	require.Error(t, err)
	assert.False(t, IsUpstream(err), "Decoding failures are internal errors")
}
