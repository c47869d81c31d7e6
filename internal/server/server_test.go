package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/yourorg/kol-feed-api/internal/cache"
	"github.com/yourorg/kol-feed-api/internal/circuitbreaker"
	"github.com/yourorg/kol-feed-api/internal/dashboard"
	"github.com/yourorg/kol-feed-api/internal/fetch"
	"github.com/yourorg/kol-feed-api/internal/model"
	"github.com/yourorg/kol-feed-api/internal/types"
	"github.com/yourorg/kol-feed-api/internal/validation"
)

const (
	walletA = "BCagckXeMChUKrHEd6fKFA1uiWDtcmCXMsqaheLiUPJd"
	tokenA  = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// memCache is an in-process cache.Cache
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.entries[key]
	return b, ok
}

func (c *memCache) Set(_ context.Context, key string, blob []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = blob
	c.ttls[key] = ttl
}

func (c *memCache) Available() bool { return true }

type countingStore struct {
	mu        sync.Mutex
	txs       []model.Transaction
	profiles  []model.KOLProfile
	err       error
	txCalls   int
	profCalls int
}

func (s *countingStore) RecentTransactions(context.Context, fetch.TransactionQuery) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCalls++
	return s.txs, s.err
}

func (s *countingStore) Profiles(context.Context) ([]model.KOLProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profCalls++
	return s.profiles, s.err
}

func (s *countingStore) ProfileByWallet(_ context.Context, wallet string) (*model.KOLProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profCalls++
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.profiles {
		if s.profiles[i].WalletAddress == wallet {
			p := s.profiles[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (s *countingStore) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCalls, s.profCalls
}

type stubIndexer struct{ calls int }

func (i *stubIndexer) WalletTransactions(context.Context, string, int) (json.RawMessage, error) {
	i.calls++
	return json.RawMessage(`[{"signature":"5h3k"}]`), nil
}

type stubPrices struct{ err error }

func (p *stubPrices) TokenPrice(context.Context, string, bool) (json.RawMessage, error) {
	if p.err != nil {
		return nil, p.err
	}
	return json.RawMessage(`{"value":0.25}`), nil
}

func seededStore() *countingStore {
	name := "alpha"
	pnl := decimal.NewFromInt(1500)
	return &countingStore{
		profiles: []model.KOLProfile{{WalletAddress: walletA, Name: &name, TotalPnL: &pnl}},
		txs: []model.Transaction{{
			ID:              "1",
			FromAddress:     walletA,
			TokenSymbol:     "WIF",
			Amount:          decimal.NewFromInt(42),
			USDValue:        decimal.NewFromInt(250_000),
			TransactionType: "SWAP",
			BlockTime:       model.Timestamp{Time: fixedNow.Add(-90 * time.Second)},
		}},
	}
}

type testEnv struct {
	store   *countingStore
	indexer *stubIndexer
	prices  *stubPrices
	cache   *memCache
	server  *Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   seededStore(),
		indexer: &stubIndexer{},
		prices:  &stubPrices{},
		cache:   newMemCache(),
	}
	svc := dashboard.NewService(env.store, env.indexer, env.prices).WithClock(func() time.Time { return fixedNow })
	env.server = New(svc, env.cache, opts)
	return env
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	return e.do(t, http.MethodGet, path)
}

func (e *testEnv) do(t *testing.T, method, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func decode(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}

func TestKOLFeed_CacheIdempotence(t *testing.T) {
	env := newTestEnv(t, Options{})

	first, body1 := env.get(t, "/api/kol-feed")
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "MISS", first.Header.Get(headerCache))

	second, body2 := env.get(t, "/api/kol-feed")
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "HIT", second.Header.Get(headerCache))
	assert.Equal(t, body1, body2, "Cached bodies must be byte-identical")

	txCalls, profCalls := env.store.calls()
	assert.Equal(t, 1, txCalls)
	assert.Equal(t, 1, profCalls)

	assert.Equal(t, KOLFeedTTL, env.cache.ttls["kol-feed?limit=50&sortBy=time&timeRange=24h&type=all"])

	resp := decode(t, body1)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(3600), resp["cacheDuration"])
	trade := resp["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "alpha", trade["kolName"])
	assert.Equal(t, "1m", trade["timeAgo"])
	assert.Equal(t, "+$1,500.00", trade["pnl"])
}

func TestKOLFeed_KeyIgnoresDefaultsAndOrder(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.get(t, "/api/kol-feed?sortBy=time&timeRange=24h")
	resp, _ := env.get(t, "/api/kol-feed?limit=50&type=ALL&timeRange=24h")
	assert.Equal(t, "HIT", resp.Header.Get(headerCache))

	resp, _ = env.get(t, "/api/kol-feed?limit=10")
	assert.Equal(t, "MISS", resp.Header.Get(headerCache))
}

func TestCachePrefix(t *testing.T) {
	env := newTestEnv(t, Options{CachePrefix: "kol"})
	env.get(t, "/api/insider-scan")

	_, ok := env.cache.entries["kol:insider-scan?alertLevel=all&timeRange=1h"]
	assert.True(t, ok)
	assert.Equal(t, InsiderScanTTL, env.cache.ttls["kol:insider-scan?alertLevel=all&timeRange=1h"])
}

func TestTransactions(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, body := env.get(t, "/api/transactions?type=SWAP")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode(t, body)
	assert.Equal(t, float64(1), out["count"])
	assert.Equal(t, "SWAP", out["type"])
	assert.Equal(t, "24h", out["timeRange"])
}

func TestTransactions_AllInAnyCaseSharesKey(t *testing.T) {
	env := newTestEnv(t, Options{})

	env.get(t, "/api/transactions?type=all")
	resp, body := env.get(t, "/api/transactions?type=ALL")
	assert.Equal(t, "HIT", resp.Header.Get(headerCache))
	out := decode(t, body)
	assert.Equal(t, float64(1), out["count"])
	assert.Equal(t, "all", out["type"])
}

func TestTrader_NotFound(t *testing.T) {
	env := newTestEnv(t, Options{})
	const unknown = "So11111111111111111111111111111111111111112"

	resp, body := env.get(t, "/api/trader/"+unknown)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"trader not found"}`, body)

	env.get(t, "/api/trader/"+unknown)
	txCalls, profCalls := env.store.calls()
	assert.Equal(t, 0, txCalls, "No transaction fetch for an unknown trader")
	assert.Equal(t, 2, profCalls, "Not-found outcomes are not cached")
}

func TestTrader_Found(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, body := env.get(t, "/api/trader/"+walletA)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decode(t, body)["data"].(map[string]interface{})
	stats := data["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["totalTrades"])
	assert.Equal(t, float64(1), stats["buyCount"])
	profile := data["profile"].(map[string]interface{})
	assert.Equal(t, "alpha", profile["name"])
	assert.Equal(t, false, profile["verified"])
}

func TestInvalidAddress(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, path := range []string{
		"/api/trader/not-base58!",
		"/api/wallet/0x12ab/transactions",
		"/api/token/abc/price",
	} {
		resp, body := env.get(t, path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, false, decode(t, body)["success"])
	}
	assert.Zero(t, env.indexer.calls)
}

func TestPassThroughEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, body := env.get(t, "/api/wallet/"+walletA+"/transactions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"address":"`+walletA+`","data":[{"signature":"5h3k"}]}`, body)

	resp, body = env.get(t, "/api/token/"+tokenA+"/price")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"address":"`+tokenA+`","data":{"value":0.25}}`, body)
	assert.Equal(t, TokenPriceTTL, env.cache.ttls["token-price?address="+tokenA])
}

func TestUpstreamFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.store.err = &fetch.UpstreamError{Upstream: types.UpstreamDataStore, StatusCode: 503, Message: "maintenance"}

	resp, body := env.get(t, "/api/insider-scan")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	out := decode(t, body)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "maintenance")
	assert.Empty(t, env.cache.entries, "Failures are never cached")
}

func TestHealth(t *testing.T) {
	cb := circuitbreaker.New(types.UpstreamDataStore.String(), circuitbreaker.Thresholds{MaxConsecutiveFailures: 1})
	cb.RecordFailure("status 500")
	env := newTestEnv(t, Options{
		CacheEnabled:  true,
		Breakers:      []*circuitbreaker.CircuitBreaker{cb},
		MissingConfig: []string{"BIRDEYE_API_KEY"},
	})

	resp, body := env.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(headerCache))

	out := decode(t, body)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, map[string]interface{}{"enabled": true, "connected": true}, out["cache"])
	upstreams := out["upstreams"].(map[string]interface{})
	assert.Equal(t, "open", upstreams["datastore"])
	assert.Equal(t, "disabled", upstreams["indexer"])
	assert.Equal(t, []interface{}{"BIRDEYE_API_KEY"}, out["missingConfig"])
	assert.NotEmpty(t, out["endpoints"])
}

func TestHealth_WithoutCache(t *testing.T) {
	svc := dashboard.NewService(seededStore(), &stubIndexer{}, &stubPrices{})
	srv := New(svc, nil, Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	out := decode(t, rec.Body.String())
	assert.Equal(t, map[string]interface{}{"enabled": false, "connected": false}, out["cache"])
	assert.Equal(t, []interface{}{}, out["missingConfig"])
}

func TestRoutingErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, body := env.get(t, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"not found"}`, body)

	resp, body = env.do(t, http.MethodPost, "/api/kol-feed")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, false, decode(t, body)["success"])
}

func TestRequestIDAndCORS(t *testing.T) {
	env := newTestEnv(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Len(t, rec.Header().Get(headerRequestID), 36)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimiter: rate.NewLimiter(rate.Every(time.Hour), 1)})

	resp, _ := env.get(t, "/api/transactions")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.get(t, "/api/transactions")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"rate limit exceeded"}`, body)

	resp, _ = env.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "Health is not rate limited")
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveUpstreamFailure(types.UpstreamIndexer)
	env := newTestEnv(t, Options{Metrics: metrics})

	env.get(t, "/api/kol-feed")
	env.get(t, "/api/kol-feed")

	resp, body := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `kolfeed_requests_total{route="/api/kol-feed",status="200"} 2`)
	assert.Contains(t, body, `kolfeed_cache_lookups_total{operation="kol-feed",result="hit"} 1`)
	assert.Contains(t, body, `kolfeed_upstream_errors_total{upstream="indexer"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_UnmatchedPathsShareOneLabel(t *testing.T) {
	env := newTestEnv(t, Options{Metrics: NewMetrics()})

	env.get(t, "/random/1")
	env.get(t, "/random/2")

	_, body := env.get(t, "/metrics")
	assert.Contains(t, body, `kolfeed_requests_total{route="unmatched",status="404"} 2`)
	assert.NotContains(t, body, "/random/")
}

// panickingDashboard fails every KOL feed with a runtime fault
type panickingDashboard struct {
	Dashboard
}

func (panickingDashboard) KOLFeed(context.Context, validation.FeedParams) (*dashboard.KOLFeedResponse, error) {
	var resp *dashboard.KOLFeedResponse
	_ = resp.Data[0]
	return resp, nil
}

func TestPanicReturnsJSONError(t *testing.T) {
	c := newMemCache()
	srv := New(panickingDashboard{}, c, Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/kol-feed", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":false,"error":"internal error"}`, rec.Body.String())
	assert.Empty(t, c.entries)
}

func TestMetricsDisabled(t *testing.T) {
	env := newTestEnv(t, Options{})
	resp, _ := env.get(t, "/metrics")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(dashboard.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(dashboard.ErrInvalidAddress))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&fetch.UpstreamError{Upstream: types.UpstreamPrices}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

var _ cache.Cache = (*memCache)(nil)
