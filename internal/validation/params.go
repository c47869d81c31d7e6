// Package validation normalizes and validates inbound request parameters.
//
// Every recognized parameter resolves to a concrete value here, so that two
// requests asking for the same thing produce identical parameter sets and
// therefore identical cache keys.
package validation

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Parameter defaults
const (
	DefaultTimeRange        = "24h"
	DefaultInsiderTimeRange = "1h"
	DefaultType             = "all"
	DefaultSortBy           = "time"
	DefaultAlertLevel       = "all"
	DefaultLimit            = 50
	MaxLimit                = 500
)

// ErrInvalidAddress is returned for path addresses that are not base58 public keys
var ErrInvalidAddress = errors.New("invalid address")

// Options holds limits applied during normalization
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultOptions returns the standard normalization limits
func DefaultOptions() Options {
	return Options{
		DefaultLimit: DefaultLimit,
		MaxLimit:     MaxLimit,
	}
}

// TransactionParams are the effective filters of the transaction listing
type TransactionParams struct {
	TimeRange string
	Type      string
}

// Values returns the parameters in url.Values form
func (p TransactionParams) Values() url.Values {
	return url.Values{
		"timeRange": {p.TimeRange},
		"type":      {p.Type},
	}
}

// FeedParams are the effective filters of the KOL feed
type FeedParams struct {
	TimeRange string
	Type      string
	SortBy    string
	Limit     int
}

// Values returns the parameters in url.Values form
func (p FeedParams) Values() url.Values {
	return url.Values{
		"timeRange": {p.TimeRange},
		"type":      {p.Type},
		"sortBy":    {p.SortBy},
		"limit":     {strconv.Itoa(p.Limit)},
	}
}

// InsiderParams are the effective filters of the insider scan
type InsiderParams struct {
	TimeRange  string
	AlertLevel string
}

// Values returns the parameters in url.Values form
func (p InsiderParams) Values() url.Values {
	return url.Values{
		"timeRange":  {p.TimeRange},
		"alertLevel": {p.AlertLevel},
	}
}

// NormalizeTransactionParams resolves the listing filters. The type is matched
// verbatim against upstream transaction types, so only whitespace is trimmed.
// "all" is recognized in any case.
func NormalizeTransactionParams(q url.Values) TransactionParams {
	txType := trimOr(q.Get("type"), DefaultType)
	if strings.EqualFold(txType, DefaultType) {
		txType = DefaultType
	}
	return TransactionParams{
		TimeRange: lowerOr(q.Get("timeRange"), DefaultTimeRange),
		Type:      txType,
	}
}

// NormalizeFeedParams resolves the KOL feed filters
func NormalizeFeedParams(q url.Values, opts Options) FeedParams {
	return FeedParams{
		TimeRange: lowerOr(q.Get("timeRange"), DefaultTimeRange),
		Type:      lowerOr(q.Get("type"), DefaultType),
		SortBy:    lowerOr(q.Get("sortBy"), DefaultSortBy),
		Limit:     ParseLimit(q.Get("limit"), opts),
	}
}

// NormalizeInsiderParams resolves the insider scan filters
func NormalizeInsiderParams(q url.Values) InsiderParams {
	return InsiderParams{
		TimeRange:  lowerOr(q.Get("timeRange"), DefaultInsiderTimeRange),
		AlertLevel: lowerOr(q.Get("alertLevel"), DefaultAlertLevel),
	}
}

// ParseLimit parses a positive limit, falling back to the default and
// capping at the maximum.
func ParseLimit(raw string, opts Options) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return opts.DefaultLimit
	}
	if opts.MaxLimit > 0 && n > opts.MaxLimit {
		return opts.MaxLimit
	}
	return n
}

// ValidateAddress checks that s is a base58-encoded Solana public key.
// Addresses end up inside upstream filter expressions and URL paths, so
// anything else is rejected before an upstream call is made.
func ValidateAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidAddress
	}
	if _, err := solana.PublicKeyFromBase58(s); err != nil {
		return "", ErrInvalidAddress
	}
	return s, nil
}

func trimOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func lowerOr(value, fallback string) string {
	return strings.ToLower(trimOr(value, fallback))
}
