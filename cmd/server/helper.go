package main

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/kol-feed-api/internal/cache"
	"github.com/yourorg/kol-feed-api/internal/circuitbreaker"
	"github.com/yourorg/kol-feed-api/internal/config"
	"github.com/yourorg/kol-feed-api/internal/dashboard"
	"github.com/yourorg/kol-feed-api/internal/fetch"
	"github.com/yourorg/kol-feed-api/internal/server"
	"github.com/yourorg/kol-feed-api/internal/types"
)

// app holds the wired components of a running service
type app struct {
	server *server.Server
	cache  cache.Cache
}

// Close releases the cache connection
func (a *app) Close() {
	if rc, ok := a.cache.(*cache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			logrus.Warnf("Error closing cache: %v", err)
		}
	}
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	// Set log formatter based on environment
	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set log level based on environment
	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// newApp builds upstream clients, breakers, cache and server from cfg
func newApp(ctx context.Context, cfg config.Config) *app {
	var metrics *server.Metrics
	if cfg.EnableMetrics {
		metrics = server.NewMetrics()
	}

	breakers := make(map[types.Upstream]*circuitbreaker.CircuitBreaker)
	var breakerList []*circuitbreaker.CircuitBreaker
	if cfg.EnableCircuitBreaker {
		for _, u := range types.AllUpstreams {
			cb := circuitbreaker.New(u.String(), circuitbreaker.Thresholds{
				MaxConsecutiveFailures: cfg.CircuitFailureThreshold,
			}).WithResetDelay(cfg.CircuitResetDelay).
				WithTripCallback(func(name, reason string) {
					logrus.Warnf("Circuit breaker tripped for %s: %s", name, reason)
				})
			breakers[u] = cb
			breakerList = append(breakerList, cb)
		}
	}

	optsFor := func(u types.Upstream) []fetch.Option {
		opts := []fetch.Option{fetch.WithFailureHook(metrics.ObserveUpstreamFailure)}
		if cb, ok := breakers[u]; ok {
			opts = append(opts, fetch.WithBreaker(cb))
		}
		return opts
	}

	store := fetch.NewDataStoreClient(fetch.DataStoreConfig{
		BaseURL:           cfg.DataStoreURL,
		APIKey:            cfg.DataStoreKey,
		TransactionsTable: cfg.TransactionsTable,
		ProfilesTable:     cfg.ProfilesTable,
		Timeout:           cfg.DataStoreTimeout,
	}, optsFor(types.UpstreamDataStore)...)
	indexer := fetch.NewIndexerClient(cfg.IndexerBaseURL, cfg.IndexerAPIKey(), cfg.IndexerTimeout, optsFor(types.UpstreamIndexer)...)
	prices := fetch.NewPriceClient(cfg.PricesBaseURL, cfg.PricesAPIKey, cfg.PricesTimeout, optsFor(types.UpstreamPrices)...)

	var c cache.Cache = cache.Noop{}
	if cfg.CacheEnabled {
		c = cache.Open(ctx, cfg.RedisURL)
	} else {
		logrus.Info("Cache disabled by configuration")
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		logrus.Infof("Rate limiting initialized: %v req/s, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	svc := dashboard.NewService(store, indexer, prices)
	srv := server.New(svc, c, server.Options{
		CachePrefix:   cfg.CachePrefix,
		CacheEnabled:  cfg.CacheEnabled,
		Metrics:       metrics,
		RateLimiter:   limiter,
		Breakers:      breakerList,
		MissingConfig: cfg.Missing,
	})

	return &app{server: srv, cache: c}
}
