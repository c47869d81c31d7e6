package dashboard

import (
	"encoding/json"

	"github.com/yourorg/kol-feed-api/internal/model"
)

// TransactionsResponse is the body of the transaction listing
type TransactionsResponse struct {
	Success   bool                `json:"success"`
	Data      []model.Transaction `json:"data"`
	Count     int                 `json:"count"`
	TimeRange string              `json:"timeRange"`
	Type      string              `json:"type"`
}

// KOLFeedResponse is the body of the KOL feed
type KOLFeedResponse struct {
	Success       bool              `json:"success"`
	Data          []model.TradeView `json:"data"`
	Count         int               `json:"count"`
	TimeRange     string            `json:"timeRange"`
	Type          string            `json:"type"`
	SortBy        string            `json:"sortBy"`
	Limit         int               `json:"limit"`
	CachedAt      string            `json:"cachedAt"`
	CacheDuration int               `json:"cacheDuration"`
}

// InsiderResponse is the body of the insider scan
type InsiderResponse struct {
	Success    bool                    `json:"success"`
	Data       []model.InsiderActivity `json:"data"`
	Count      int                     `json:"count"`
	TimeRange  string                  `json:"timeRange"`
	AlertLevel string                  `json:"alertLevel"`
}

// RawResponse wraps upstream JSON passed through untouched
type RawResponse struct {
	Success bool            `json:"success"`
	Address string          `json:"address"`
	Data    json.RawMessage `json:"data"`
}

// TraderResponse is the body of a trader profile
type TraderResponse struct {
	Success bool               `json:"success"`
	Data    model.TraderReport `json:"data"`
}
