package server

import (
	"net/http"
	"time"

	"github.com/yourorg/kol-feed-api/internal/types"
)

// endpoints is the discovery list reported by the health check
var endpoints = []string{
	"GET /api/health",
	"GET /api/transactions?timeRange=24h&type=all",
	"GET /api/kol-feed?timeRange=24h&type=all&sortBy=time&limit=50",
	"GET /api/insider-scan?timeRange=1h&alertLevel=all",
	"GET /api/wallet/{address}/transactions",
	"GET /api/token/{address}/price",
	"GET /api/trader/{address}",
}

type healthResponse struct {
	Success       bool              `json:"success"`
	Status        string            `json:"status"`
	Message       string            `json:"message"`
	Timestamp     string            `json:"timestamp"`
	Cache         cacheStatus       `json:"cache"`
	Upstreams     map[string]string `json:"upstreams"`
	MissingConfig []string          `json:"missingConfig"`
	Endpoints     []string          `json:"endpoints"`
}

type cacheStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// handleHealth reports liveness, cache connectivity and breaker states. It
// never touches an upstream and is never cached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	upstreams := make(map[string]string, len(types.AllUpstreams))
	for _, u := range types.AllUpstreams {
		upstreams[u.String()] = "disabled"
	}
	for _, cb := range s.opts.Breakers {
		upstreams[cb.Name()] = cb.GetState().String()
	}

	missing := s.opts.MissingConfig
	if missing == nil {
		missing = []string{}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Status:    "ok",
		Message:   "KOL feed API is running",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Cache: cacheStatus{
			Enabled:   s.opts.CacheEnabled,
			Connected: s.cache.Available(),
		},
		Upstreams:     upstreams,
		MissingConfig: missing,
		Endpoints:     endpoints,
	})
}
