// Package aggregate joins transactions with KOL profiles and shapes them into
// feed, insider and trader views. Every function is pure given its inputs,
// including the "now" instant.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourorg/kol-feed-api/internal/model"
)

const (
	// FeedCacheDuration is the informational cache lifetime echoed by the feed
	FeedCacheDuration = 3600

	// MaxInsiderResults caps the insider scan output
	MaxInsiderResults = 50
	// MaxTraderTrades caps the trades listed in a trader report
	MaxTraderTrades = 20
	// TraderWindow is how far back a trader report looks
	TraderWindow = 30 * 24 * time.Hour
)

// Sort orders understood by KOLFeed
const (
	SortByTime   = "time"
	SortByPnL    = "pnl"
	SortByVolume = "volume"
)

// FilterAll disables type and alert-level filters
const FilterAll = "all"

var (
	// InsiderThreshold is the USD value a transaction must exceed to be flagged
	InsiderThreshold = decimal.NewFromInt(100_000)
	// HighConfidenceThreshold is the USD value above which confidence is high
	HighConfidenceThreshold = decimal.NewFromInt(500_000)
)

var timeRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Cutoff resolves a time range label to the earliest block time it covers.
// Unrecognized labels fall back to 24h.
func Cutoff(timeRange string, now time.Time) time.Time {
	d, ok := timeRanges[timeRange]
	if !ok {
		d = timeRanges["24h"]
	}
	return now.Add(-d)
}

// TimeAgo labels the time elapsed between t and now: "45s", "12m", "3h" and,
// when withDays is set, "2d" from one day on. Values are truncated, and
// timestamps in the future count as zero.
func TimeAgo(now, t time.Time, withDays bool) string {
	secs := int64(now.Sub(t) / time.Second)
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	case !withDays || secs < 86400:
		return fmt.Sprintf("%dh", secs/3600)
	default:
		return fmt.Sprintf("%dd", secs/86400)
	}
}

// FilterTransactions keeps transactions whose type equals txType, preserving
// order. An empty filter or "all" in any case keeps everything.
func FilterTransactions(txs []model.Transaction, txType string) []model.Transaction {
	keepAll := txType == "" || strings.EqualFold(txType, FilterAll)
	out := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if keepAll || tx.TransactionType == txType {
			out = append(out, tx)
		}
	}
	return out
}

// IndexProfiles indexes profiles by wallet address. Later duplicates win.
func IndexProfiles(profiles []model.KOLProfile) map[string]model.KOLProfile {
	index := make(map[string]model.KOLProfile, len(profiles))
	for _, p := range profiles {
		index[p.WalletAddress] = p
	}
	return index
}

// NewTradeView derives the view of tx made by the KOL behind profile. PnL and
// percentage come from the profile's cumulative figures.
func NewTradeView(tx model.Transaction, profile model.KOLProfile, now time.Time, withDays bool) model.TradeView {
	token := tx.TokenSymbol
	if token == "" {
		token = "Unknown"
	}
	handle := tx.FromAddress
	if profile.TwitterHandle != nil && *profile.TwitterHandle != "" {
		handle = *profile.TwitterHandle
	} else if len(handle) > 8 {
		handle = handle[:8]
	}
	return model.TradeView{
		ID:            transactionID(tx),
		Category:      tx.Category(),
		TimeAgo:       TimeAgo(now, tx.BlockTime.Time, withDays),
		KOLName:       profile.DisplayName(),
		KOLAvatar:     profile.Avatar(),
		WalletAddress: tx.FromAddress,
		TwitterHandle: handle,
		Token:         token,
		TokenContract: tx.TokenMint,
		Amount:        tx.Amount,
		PnL:           profile.PnL(),
		PnLPercentage: profile.WinRatePercent(),
		BlockTime:     tx.BlockTime.Time,
	}
}

// transactionID is the row id, or the signature for rows without one
func transactionID(tx model.Transaction) string {
	if tx.ID != "" {
		return string(tx.ID)
	}
	return tx.Signature
}

// FeedOptions selects and orders the KOL feed
type FeedOptions struct {
	// "buy", "sell" or "all"
	Type string
	// "time", "pnl" or "volume"
	SortBy string
	Limit  int
}

// KOLFeed joins txs (newest first) with profiles. Transactions from wallets
// without a profile are dropped.
func KOLFeed(txs []model.Transaction, profiles []model.KOLProfile, opts FeedOptions, now time.Time) []model.TradeView {
	index := IndexProfiles(profiles)

	views := make([]model.TradeView, 0, len(txs))
	for _, tx := range txs {
		profile, ok := index[tx.FromAddress]
		if !ok {
			continue
		}
		if opts.Type != "" && opts.Type != FilterAll && string(tx.Category()) != opts.Type {
			continue
		}
		views = append(views, NewTradeView(tx, profile, now, false))
	}

	switch opts.SortBy {
	case SortByPnL:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].PnL.GreaterThan(views[j].PnL)
		})
	case SortByVolume:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Volume().GreaterThan(views[j].Volume())
		})
	}

	if opts.Limit > 0 && len(views) > opts.Limit {
		views = views[:opts.Limit]
	}
	return views
}

// InsiderScan flags transactions above InsiderThreshold, keeping the input
// order. alertLevel "high" or "medium" keeps only that confidence.
func InsiderScan(txs []model.Transaction, alertLevel string, now time.Time) []model.InsiderActivity {
	out := make([]model.InsiderActivity, 0)
	for _, tx := range txs {
		if !tx.USDValue.GreaterThan(InsiderThreshold) {
			continue
		}
		confidence := model.ConfidenceMedium
		if tx.USDValue.GreaterThan(HighConfidenceThreshold) {
			confidence = model.ConfidenceHigh
		}
		if alertLevel != "" && alertLevel != FilterAll && confidence != alertLevel {
			continue
		}
		activity := model.ActivityWhaleMove
		if tx.TransactionType == "SWAP" {
			activity = model.ActivityLargeBuy
		}
		out = append(out, model.InsiderActivity{
			ID:              transactionID(tx),
			Signature:       tx.Signature,
			Type:            activity,
			Wallet:          tx.FromAddress,
			WalletName:      model.ShortAddress(tx.FromAddress),
			Token:           tx.TokenMint,
			TokenSymbol:     tx.TokenSymbol,
			ContractAddress: tx.TokenMint,
			Amount:          tx.Amount,
			Value:           tx.USDValue,
			Confidence:      confidence,
			BlockTime:       tx.BlockTime.Time,
			TimeAgo:         TimeAgo(now, tx.BlockTime.Time, false),
		})
		if len(out) == MaxInsiderResults {
			break
		}
	}
	return out
}

// TraderStats summarizes every transaction in txs
func TraderStats(txs []model.Transaction) model.TraderStats {
	stats := model.TraderStats{TotalTrades: len(txs), TotalVolume: decimal.Zero}
	for _, tx := range txs {
		if tx.Category() == model.CategoryBuy {
			stats.BuyCount++
		}
		stats.TotalVolume = stats.TotalVolume.Add(tx.Amount)
	}
	stats.SellCount = stats.TotalTrades - stats.BuyCount
	return stats
}

// TraderReport builds the report for profile from its transactions, newest
// first. Only the most recent MaxTraderTrades become trade views; statistics
// cover all of txs.
func TraderReport(profile model.KOLProfile, txs []model.Transaction, now time.Time) model.TraderReport {
	recent := txs
	if len(recent) > MaxTraderTrades {
		recent = recent[:MaxTraderTrades]
	}
	trades := make([]model.TradeView, 0, len(recent))
	for _, tx := range recent {
		trades = append(trades, NewTradeView(tx, profile, now, true))
	}
	return model.TraderReport{
		Profile: model.NewTraderProfile(profile),
		Trades:  trades,
		Stats:   TraderStats(txs),
	}
}
