// Package dashboard implements the dashboard operations on top of the
// upstream clients and the aggregation engine.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/kol-feed-api/internal/aggregate"
	"github.com/yourorg/kol-feed-api/internal/fetch"
	"github.com/yourorg/kol-feed-api/internal/model"
	"github.com/yourorg/kol-feed-api/internal/validation"
)

// Upstream fetch sizes
const (
	TransactionListLimit = 50
	InsiderScanLimit     = 100
	TraderTxLimit        = 100
	WalletTxLimit        = fetch.DefaultWalletTxLimit
)

var (
	// ErrNotFound is returned when a trader has no profile
	ErrNotFound = errors.New("trader not found")
	// ErrInvalidAddress is returned for malformed wallet or token addresses
	ErrInvalidAddress = validation.ErrInvalidAddress
)

// DataStore reads transactions and profiles
type DataStore interface {
	RecentTransactions(ctx context.Context, q fetch.TransactionQuery) ([]model.Transaction, error)
	Profiles(ctx context.Context) ([]model.KOLProfile, error)
	ProfileByWallet(ctx context.Context, wallet string) (*model.KOLProfile, error)
}

// Indexer returns raw wallet transaction history
type Indexer interface {
	WalletTransactions(ctx context.Context, address string, limit int) (json.RawMessage, error)
}

// PriceSource returns raw token price data
type PriceSource interface {
	TokenPrice(ctx context.Context, address string, checkLiquidity bool) (json.RawMessage, error)
}

// Service runs dashboard operations. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	store   DataStore
	indexer Indexer
	prices  PriceSource
	now     func() time.Time
}

// NewService creates a new dashboard service
func NewService(store DataStore, indexer Indexer, prices PriceSource) *Service {
	return &Service{
		store:   store,
		indexer: indexer,
		prices:  prices,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for relative times and cutoffs
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Transactions lists the most recent transactions, optionally filtered by type
func (s *Service) Transactions(ctx context.Context, p validation.TransactionParams) (*TransactionsResponse, error) {
	txs, err := s.store.RecentTransactions(ctx, fetch.TransactionQuery{Limit: TransactionListLimit})
	if err != nil {
		return nil, err
	}
	txs = aggregate.FilterTransactions(txs, p.Type)
	return &TransactionsResponse{
		Success:   true,
		Data:      txs,
		Count:     len(txs),
		TimeRange: p.TimeRange,
		Type:      p.Type,
	}, nil
}

// KOLFeed builds the KOL trade feed for the requested window
func (s *Service) KOLFeed(ctx context.Context, p validation.FeedParams) (*KOLFeedResponse, error) {
	now := s.now()

	profiles, err := s.store.Profiles(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.RecentTransactions(ctx, fetch.TransactionQuery{
		Since: aggregate.Cutoff(p.TimeRange, now),
		Limit: 2 * p.Limit,
	})
	if err != nil {
		return nil, err
	}

	views := aggregate.KOLFeed(txs, profiles, aggregate.FeedOptions{
		Type:   p.Type,
		SortBy: p.SortBy,
		Limit:  p.Limit,
	}, now)

	logrus.WithFields(logrus.Fields{
		"profiles":     len(profiles),
		"transactions": len(txs),
		"trades":       len(views),
	}).Debug("Built KOL feed")

	return &KOLFeedResponse{
		Success:       true,
		Data:          views,
		Count:         len(views),
		TimeRange:     p.TimeRange,
		Type:          p.Type,
		SortBy:        p.SortBy,
		Limit:         p.Limit,
		CachedAt:      now.UTC().Format(time.RFC3339),
		CacheDuration: aggregate.FeedCacheDuration,
	}, nil
}

// InsiderScan flags large recent transactions
func (s *Service) InsiderScan(ctx context.Context, p validation.InsiderParams) (*InsiderResponse, error) {
	txs, err := s.store.RecentTransactions(ctx, fetch.TransactionQuery{Limit: InsiderScanLimit})
	if err != nil {
		return nil, err
	}
	activities := aggregate.InsiderScan(txs, p.AlertLevel, s.now())
	return &InsiderResponse{
		Success:    true,
		Data:       activities,
		Count:      len(activities),
		TimeRange:  p.TimeRange,
		AlertLevel: p.AlertLevel,
	}, nil
}

// WalletTransactions proxies the indexer's history for a wallet
func (s *Service) WalletTransactions(ctx context.Context, address string) (*RawResponse, error) {
	address, err := validation.ValidateAddress(address)
	if err != nil {
		return nil, err
	}
	raw, err := s.indexer.WalletTransactions(ctx, address, WalletTxLimit)
	if err != nil {
		return nil, err
	}
	return &RawResponse{Success: true, Address: address, Data: raw}, nil
}

// TokenPrice proxies the price service's data for a token
func (s *Service) TokenPrice(ctx context.Context, address string) (*RawResponse, error) {
	address, err := validation.ValidateAddress(address)
	if err != nil {
		return nil, err
	}
	raw, err := s.prices.TokenPrice(ctx, address, true)
	if err != nil {
		return nil, err
	}
	return &RawResponse{Success: true, Address: address, Data: raw}, nil
}

// TraderProfile builds the report for one KOL. Wallets without a profile
// yield ErrNotFound and no transaction lookup.
func (s *Service) TraderProfile(ctx context.Context, address string) (*TraderResponse, error) {
	address, err := validation.ValidateAddress(address)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.ProfileByWallet(ctx, address)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	txs, err := s.store.RecentTransactions(ctx, fetch.TransactionQuery{
		Since:  now.Add(-aggregate.TraderWindow),
		Wallet: address,
		Limit:  TraderTxLimit,
	})
	if err != nil {
		return nil, err
	}

	return &TraderResponse{
		Success: true,
		Data:    aggregate.TraderReport(*profile, txs, now),
	}, nil
}
