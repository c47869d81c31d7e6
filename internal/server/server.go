// Package server exposes the dashboard operations over HTTP. Responses of
// successful operations are cached by operation and normalized parameters.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/kol-feed-api/internal/cache"
	"github.com/yourorg/kol-feed-api/internal/circuitbreaker"
	"github.com/yourorg/kol-feed-api/internal/dashboard"
	"github.com/yourorg/kol-feed-api/internal/validation"
)

// Cache lifetimes per operation
const (
	TransactionsTTL = 300 * time.Second
	KOLFeedTTL      = 3600 * time.Second
	InsiderScanTTL  = 180 * time.Second
	WalletTxTTL     = 300 * time.Second
	TokenPriceTTL   = 60 * time.Second
	TraderTTL       = 300 * time.Second
)

// Cache key operation names
const (
	opTransactions = "transactions"
	opKOLFeed      = "kol-feed"
	opInsiderScan  = "insider-scan"
	opWalletTxs    = "wallet-transactions"
	opTokenPrice   = "token-price"
	opTrader       = "trader"
)

// Dashboard is the set of operations served over HTTP
type Dashboard interface {
	Transactions(ctx context.Context, p validation.TransactionParams) (*dashboard.TransactionsResponse, error)
	KOLFeed(ctx context.Context, p validation.FeedParams) (*dashboard.KOLFeedResponse, error)
	InsiderScan(ctx context.Context, p validation.InsiderParams) (*dashboard.InsiderResponse, error)
	WalletTransactions(ctx context.Context, address string) (*dashboard.RawResponse, error)
	TokenPrice(ctx context.Context, address string) (*dashboard.RawResponse, error)
	TraderProfile(ctx context.Context, address string) (*dashboard.TraderResponse, error)
}

// Options configures a Server
type Options struct {
	// Prepended to every cache key
	CachePrefix string
	// Whether caching was requested in configuration
	CacheEnabled bool
	Params       validation.Options
	// Nil disables /metrics
	Metrics *Metrics
	// Nil disables rate limiting
	RateLimiter *rate.Limiter
	Breakers    []*circuitbreaker.CircuitBreaker
	// Required configuration keys missing at startup
	MissingConfig []string
}

// Server routes HTTP requests to dashboard operations
type Server struct {
	dashboard Dashboard
	cache     cache.Cache
	opts      Options
	metrics   *Metrics
	limiter   *rate.Limiter
	router    chi.Router
}

// New creates a server. A nil cache disables caching.
func New(d Dashboard, c cache.Cache, opts Options) *Server {
	if c == nil {
		c = cache.Noop{}
	}
	if opts.Params == (validation.Options{}) {
		opts.Params = validation.DefaultOptions()
	}
	s := &Server{
		dashboard: d,
		cache:     c,
		opts:      opts,
		metrics:   opts.Metrics,
		limiter:   opts.RateLimiter,
	}
	s.metrics.RegisterBreakers(opts.Breakers)
	s.router = s.routes()

	logrus.WithFields(logrus.Fields{
		"cache_enabled":   opts.CacheEnabled,
		"cache_connected": c.Available(),
		"metrics":         opts.Metrics != nil,
		"rate_limit":      opts.RateLimiter != nil,
		"breakers":        len(opts.Breakers),
	}).Info("Server initialized")
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{headerRequestID, headerCache},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/api/transactions", s.handleTransactions)
		r.Get("/api/kol-feed", s.handleKOLFeed)
		r.Get("/api/insider-scan", s.handleInsiderScan)
		r.Get("/api/wallet/{address}/transactions", s.handleWalletTransactions)
		r.Get("/api/token/{address}/price", s.handleTokenPrice)
		r.Get("/api/trader/{address}", s.handleTrader)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}
