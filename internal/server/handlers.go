package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/kol-feed-api/internal/cache"
	"github.com/yourorg/kol-feed-api/internal/dashboard"
	"github.com/yourorg/kol-feed-api/internal/fetch"
	"github.com/yourorg/kol-feed-api/internal/validation"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	p := validation.NormalizeTransactionParams(r.URL.Query())
	s.cached(w, r, opTransactions, p.Values(), TransactionsTTL, func(ctx context.Context) (interface{}, error) {
		return s.dashboard.Transactions(ctx, p)
	})
}

func (s *Server) handleKOLFeed(w http.ResponseWriter, r *http.Request) {
	p := validation.NormalizeFeedParams(r.URL.Query(), s.opts.Params)
	s.cached(w, r, opKOLFeed, p.Values(), KOLFeedTTL, func(ctx context.Context) (interface{}, error) {
		return s.dashboard.KOLFeed(ctx, p)
	})
}

func (s *Server) handleInsiderScan(w http.ResponseWriter, r *http.Request) {
	p := validation.NormalizeInsiderParams(r.URL.Query())
	s.cached(w, r, opInsiderScan, p.Values(), InsiderScanTTL, func(ctx context.Context) (interface{}, error) {
		return s.dashboard.InsiderScan(ctx, p)
	})
}

func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	s.cached(w, r, opWalletTxs, url.Values{"address": {address}}, WalletTxTTL, func(ctx context.Context) (interface{}, error) {
		return s.dashboard.WalletTransactions(ctx, address)
	})
}

func (s *Server) handleTokenPrice(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	s.cached(w, r, opTokenPrice, url.Values{"address": {address}}, TokenPriceTTL, func(ctx context.Context) (interface{}, error) {
		return s.dashboard.TokenPrice(ctx, address)
	})
}

func (s *Server) handleTrader(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	s.cached(w, r, opTrader, url.Values{"address": {address}}, TraderTTL, func(ctx context.Context) (interface{}, error) {
		return s.dashboard.TraderProfile(ctx, address)
	})
}

// cached serves a stored body for the operation and parameters when one
// exists. Otherwise it computes the result, stores it for ttl and writes the
// same bytes. Failed results are never stored.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, operation string, params url.Values, ttl time.Duration, compute func(ctx context.Context) (interface{}, error)) {
	key := cache.Key(s.opts.CachePrefix, operation, params)

	if blob, ok := s.cache.Get(r.Context(), key); ok {
		s.metrics.observeCache(operation, true)
		w.Header().Set(headerCache, "HIT")
		writeBlob(w, http.StatusOK, blob)
		return
	}
	s.metrics.observeCache(operation, false)

	// Upstream work outlives a disconnected client
	ctx := context.WithoutCancel(r.Context())
	result, err := compute(ctx)
	if err != nil {
		s.fail(w, r, operation, err)
		return
	}

	blob, err := json.Marshal(result)
	if err != nil {
		s.fail(w, r, operation, err)
		return
	}
	s.cache.Set(ctx, key, blob, ttl)

	w.Header().Set(headerCache, "MISS")
	writeBlob(w, http.StatusOK, blob)
}

// fail maps err to a status code and writes the error body
func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := statusFor(err)
	entry := logrus.WithFields(logrus.Fields{
		"operation": operation,
		"path":      r.URL.Path,
		"status":    status,
	}).WithError(err)

	switch {
	case status < http.StatusInternalServerError:
		entry.Info("Request rejected")
	case fetch.IsUpstream(err):
		entry.Warn("Upstream failure")
	default:
		entry.Error("Internal failure")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrInvalidAddress):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeBlob(w http.ResponseWriter, status int, blob []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(blob)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	blob, err := json.Marshal(v)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode response")
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	writeBlob(w, status, blob)
}

func writeError(w http.ResponseWriter, status int, message string) {
	blob, _ := json.Marshal(errorResponse{Success: false, Error: message})
	writeBlob(w, status, blob)
}
