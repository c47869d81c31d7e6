// Package model defines the upstream records and the derived views served by the dashboard API.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the buy/sell classification of a transaction
type Category string

const (
	CategoryBuy  Category = "buy"
	CategorySell Category = "sell"
)

// Classify applies the canonical buy rule: the upper-cased transaction type
// is SWAP or BUY. Everything else is a sell.
func Classify(transactionType string) Category {
	switch strings.ToUpper(strings.TrimSpace(transactionType)) {
	case "SWAP", "BUY":
		return CategoryBuy
	default:
		return CategorySell
	}
}

// ID accepts both string and numeric identifiers from upstream rows.
type ID string

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(b)
	return nil
}

// Timestamp parses the timestamp layouts the data store emits, with or
// without a zone offset. Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a single upstream timestamp value.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Transaction is a row of the data store's transaction table.
type Transaction struct {
	ID              ID              `json:"id"`
	Signature       string          `json:"transaction_signature"`
	FromAddress     string          `json:"from_address"`
	TokenMint       string          `json:"token_mint"`
	TokenSymbol     string          `json:"token_symbol"`
	Amount          decimal.Decimal `json:"amount"`
	USDValue        decimal.Decimal `json:"usd_value"`
	TransactionType string          `json:"transaction_type"`
	BlockTime       Timestamp       `json:"block_time"`
}

// Category classifies the transaction as a buy or a sell
func (t Transaction) Category() Category {
	return Classify(t.TransactionType)
}

// MarshalJSON emits numeric fields as JSON numbers, matching the upstream row.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID              ID          `json:"id"`
		Signature       string      `json:"transaction_signature"`
		FromAddress     string      `json:"from_address"`
		TokenMint       string      `json:"token_mint"`
		TokenSymbol     string      `json:"token_symbol"`
		Amount          json.Number `json:"amount"`
		USDValue        json.Number `json:"usd_value"`
		TransactionType string      `json:"transaction_type"`
		BlockTime       Timestamp   `json:"block_time"`
	}{
		ID:              t.ID,
		Signature:       t.Signature,
		FromAddress:     t.FromAddress,
		TokenMint:       t.TokenMint,
		TokenSymbol:     t.TokenSymbol,
		Amount:          json.Number(t.Amount.String()),
		USDValue:        json.Number(t.USDValue.String()),
		TransactionType: t.TransactionType,
		BlockTime:       t.BlockTime,
	})
}

// KOLProfile is a row of the data store's profile table. Optional columns are pointers.
type KOLProfile struct {
	ID               ID               `json:"id"`
	WalletAddress    string           `json:"wallet_address"`
	Name             *string          `json:"name"`
	AvatarURL        *string          `json:"avatar_url"`
	TwitterHandle    *string          `json:"twitter_handle"`
	Bio              *string          `json:"bio"`
	TotalPnL         *decimal.Decimal `json:"total_pnl"`
	WinRate          *decimal.Decimal `json:"win_rate"`
	TotalVolume      *decimal.Decimal `json:"total_volume"`
	TwitterFollowers *int64           `json:"twitter_followers"`
	Verified         *bool            `json:"verified"`
	Rank             *int             `json:"rank"`
	CreatedAt        *Timestamp       `json:"created_at"`
	UpdatedAt        *Timestamp       `json:"updated_at"`
}

// DefaultAvatarURL is served for profiles without an avatar.
const DefaultAvatarURL = "https://images.pexels.com/photos/220453/pexels-photo-220453.jpeg"

// ShortAddress truncates an address to its first 8 characters plus an ellipsis
func ShortAddress(address string) string {
	if len(address) > 8 {
		address = address[:8]
	}
	return address + "..."
}

func stringOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}

func decimalOrZero(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}

// DisplayName returns the profile name, or the truncated address
func (p KOLProfile) DisplayName() string {
	return stringOr(p.Name, ShortAddress(p.WalletAddress))
}

// Avatar returns the avatar URL, or the default avatar
func (p KOLProfile) Avatar() string {
	return stringOr(p.AvatarURL, DefaultAvatarURL)
}

// PnL returns the cumulative PnL, zero when unknown
func (p KOLProfile) PnL() decimal.Decimal {
	return decimalOrZero(p.TotalPnL)
}

// WinRatePercent returns the win rate percentage, zero when unknown
func (p KOLProfile) WinRatePercent() decimal.Decimal {
	return decimalOrZero(p.WinRate)
}

// TradeView is the per-(transaction, profile) view shown in feeds.
// Numeric fields stay numeric until MarshalJSON.
type TradeView struct {
	ID            string
	Category      Category
	TimeAgo       string
	KOLName       string
	KOLAvatar     string
	WalletAddress string
	TwitterHandle string
	Token         string
	TokenContract string
	Amount        decimal.Decimal
	PnL           decimal.Decimal
	PnLPercentage decimal.Decimal
	BlockTime     time.Time
}

// Bought is the bought amount; zero for sells
func (v TradeView) Bought() decimal.Decimal {
	if v.Category == CategoryBuy {
		return v.Amount
	}
	return decimal.Zero
}

// Sold is the sold amount; zero for buys
func (v TradeView) Sold() decimal.Decimal {
	if v.Category == CategorySell {
		return v.Amount
	}
	return decimal.Zero
}

// Volume is bought plus sold
func (v TradeView) Volume() decimal.Decimal {
	return v.Bought().Add(v.Sold())
}

// MarshalJSON implements json.Marshaler
func (v TradeView) MarshalJSON() ([]byte, error) {
	holding := "sold all"
	if v.Category == CategoryBuy {
		holding = FormatUSD(v.Amount)
	}
	blockTime := Timestamp{Time: v.BlockTime}
	return json.Marshal(struct {
		ID            string    `json:"id"`
		LastTx        string    `json:"lastTx"`
		TimeAgo       string    `json:"timeAgo"`
		KOLName       string    `json:"kolName"`
		KOLAvatar     string    `json:"kolAvatar"`
		WalletAddress string    `json:"walletAddress"`
		TwitterHandle string    `json:"twitterHandle"`
		Token         string    `json:"token"`
		TokenContract string    `json:"tokenContract"`
		Bought        string    `json:"bought"`
		Sold          string    `json:"sold"`
		Holding       string    `json:"holding"`
		PnL           string    `json:"pnl"`
		PnLPercentage string    `json:"pnlPercentage"`
		IsProfit      bool      `json:"isProfit"`
		Timestamp     Timestamp `json:"timestamp"`
		BlockTime     Timestamp `json:"blockTime"`
	}{
		ID:            v.ID,
		LastTx:        string(v.Category),
		TimeAgo:       v.TimeAgo,
		KOLName:       v.KOLName,
		KOLAvatar:     v.KOLAvatar,
		WalletAddress: v.WalletAddress,
		TwitterHandle: v.TwitterHandle,
		Token:         v.Token,
		TokenContract: v.TokenContract,
		Bought:        FormatUSD(v.Bought()),
		Sold:          FormatUSD(v.Sold()),
		Holding:       holding,
		PnL:           FormatSignedUSD(v.PnL),
		PnLPercentage: FormatSignedPercent(v.PnLPercentage),
		IsProfit:      !isNegative(v.PnL),
		Timestamp:     blockTime,
		BlockTime:     blockTime,
	})
}

// Insider activity types and confidence levels
const (
	ActivityLargeBuy  = "large_buy"
	ActivityWhaleMove = "whale_move"

	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)

// InsiderActivity is a large transaction flagged by the insider scan
type InsiderActivity struct {
	ID              string
	Signature       string
	Type            string
	Wallet          string
	WalletName      string
	Token           string
	TokenSymbol     string
	ContractAddress string
	Amount          decimal.Decimal
	Value           decimal.Decimal
	Confidence      string
	BlockTime       time.Time
	TimeAgo         string
}

// Description is the human readable summary of the activity
func (a InsiderActivity) Description() string {
	if a.Type == ActivityLargeBuy {
		return "Large buy of " + FormatUSD(a.Value) + " detected"
	}
	return "Whale movement of " + FormatUSD(a.Value) + " detected"
}

// MarshalJSON implements json.Marshaler
func (a InsiderActivity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID              string      `json:"id"`
		Signature       string      `json:"signature"`
		Type            string      `json:"type"`
		Wallet          string      `json:"wallet"`
		WalletName      string      `json:"walletName"`
		Token           string      `json:"token"`
		TokenSymbol     string      `json:"tokenSymbol"`
		ContractAddress string      `json:"contractAddress"`
		Amount          json.Number `json:"amount"`
		Value           string      `json:"value"`
		ValueUSD        json.Number `json:"valueUsd"`
		Confidence      string      `json:"confidence"`
		Description     string      `json:"description"`
		Timestamp       Timestamp   `json:"timestamp"`
		TimeAgo         string      `json:"timeAgo"`
	}{
		ID:              a.ID,
		Signature:       a.Signature,
		Type:            a.Type,
		Wallet:          a.Wallet,
		WalletName:      a.WalletName,
		Token:           a.Token,
		TokenSymbol:     a.TokenSymbol,
		ContractAddress: a.ContractAddress,
		Amount:          json.Number(a.Amount.String()),
		Value:           FormatUSD(a.Value),
		ValueUSD:        json.Number(a.Value.String()),
		Confidence:      a.Confidence,
		Description:     a.Description(),
		Timestamp:       Timestamp{Time: a.BlockTime},
		TimeAgo:         a.TimeAgo,
	})
}

// TraderProfile is a KOL profile with every optional field resolved to a value.
type TraderProfile struct {
	WalletAddress string
	Name          string
	AvatarURL     string
	TwitterHandle string
	Bio           string
	TotalPnL      decimal.Decimal
	WinRate       decimal.Decimal
	TotalVolume   decimal.Decimal
	Followers     int64
	Verified      bool
	Rank          int
	CreatedAt     *Timestamp
	UpdatedAt     *Timestamp
}

// NewTraderProfile maps a profile row, applying the default for every missing field
func NewTraderProfile(p KOLProfile) TraderProfile {
	tp := TraderProfile{
		WalletAddress: p.WalletAddress,
		Name:          p.DisplayName(),
		AvatarURL:     p.Avatar(),
		TwitterHandle: stringOr(p.TwitterHandle, ""),
		Bio:           stringOr(p.Bio, ""),
		TotalPnL:      p.PnL(),
		WinRate:       p.WinRatePercent(),
		TotalVolume:   decimalOrZero(p.TotalVolume),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.TwitterFollowers != nil {
		tp.Followers = *p.TwitterFollowers
	}
	if p.Verified != nil {
		tp.Verified = *p.Verified
	}
	if p.Rank != nil {
		tp.Rank = *p.Rank
	}
	return tp
}

// MarshalJSON implements json.Marshaler
func (p TraderProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		WalletAddress string      `json:"walletAddress"`
		Name          string      `json:"name"`
		AvatarURL     string      `json:"avatarUrl"`
		TwitterHandle string      `json:"twitterHandle"`
		Bio           string      `json:"bio"`
		TotalPnL      json.Number `json:"totalPnl"`
		TotalPnLLabel string      `json:"totalPnlFormatted"`
		WinRate       json.Number `json:"winRate"`
		TotalVolume   json.Number `json:"totalVolume"`
		Followers     int64       `json:"followers"`
		Verified      bool        `json:"verified"`
		Rank          int         `json:"rank"`
		CreatedAt     *Timestamp  `json:"createdAt"`
		UpdatedAt     *Timestamp  `json:"updatedAt"`
	}{
		WalletAddress: p.WalletAddress,
		Name:          p.Name,
		AvatarURL:     p.AvatarURL,
		TwitterHandle: p.TwitterHandle,
		Bio:           p.Bio,
		TotalPnL:      json.Number(p.TotalPnL.String()),
		TotalPnLLabel: FormatSignedUSD(p.TotalPnL),
		WinRate:       json.Number(p.WinRate.String()),
		TotalVolume:   json.Number(p.TotalVolume.String()),
		Followers:     p.Followers,
		Verified:      p.Verified,
		Rank:          p.Rank,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
}

// TraderStats summarizes a trader's fetched transactions
type TraderStats struct {
	TotalTrades int
	BuyCount    int
	SellCount   int
	TotalVolume decimal.Decimal
}

// MarshalJSON implements json.Marshaler
func (s TraderStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalTrades int         `json:"totalTrades"`
		BuyCount    int         `json:"buyCount"`
		SellCount   int         `json:"sellCount"`
		TotalVolume json.Number `json:"totalVolume"`
	}{s.TotalTrades, s.BuyCount, s.SellCount, json.Number(s.TotalVolume.String())})
}

// TraderReport bundles a profile, its recent trades and summary statistics
type TraderReport struct {
	Profile TraderProfile `json:"profile"`
	Trades  []TradeView   `json:"trades"`
	Stats   TraderStats   `json:"stats"`
}

// formatGrouped renders d with two decimals and comma thousands separators, without sign.
func formatGrouped(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + frac
}

// isNegative reports whether d renders as a negative two-decimal value
func isNegative(d decimal.Decimal) bool {
	return d.Round(2).IsNegative()
}

// FormatUSD renders an amount as "$1,234.56", or "-$1,234.56" when negative.
func FormatUSD(d decimal.Decimal) string {
	if isNegative(d) {
		return "-$" + formatGrouped(d)
	}
	return "$" + formatGrouped(d)
}

// FormatSignedUSD renders a signed amount as "+$1,234.56" or "-$1,234.56". Zero gets a plus.
func FormatSignedUSD(d decimal.Decimal) string {
	if isNegative(d) {
		return "-$" + formatGrouped(d)
	}
	return "+$" + formatGrouped(d)
}

// FormatSignedPercent renders a percentage as "+12.50%" or "-3.00%"
func FormatSignedPercent(d decimal.Decimal) string {
	if isNegative(d) {
		return "-" + formatGrouped(d) + "%"
	}
	return "+" + formatGrouped(d) + "%"
}
