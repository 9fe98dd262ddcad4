package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/etnz/tradesim"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MockPrice is an entry of the mock prices file.
type MockPrice struct {
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency,omitempty"`
	Name      string          `json:"name,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// Offline serves quotes from a JSON file of mock prices:
//
//	{"AAPL": {"price": 100.0, "updated_at": "2026-01-30T10:00:00"}}
//
// The file is read on every call so that it can be edited while the
// simulator runs. Offline markets are always open.
type Offline struct {
	Path     string
	Currency string // used when an entry has none
	Now      func() time.Time
	log      zerolog.Logger
}

// NewOffline returns the offline provider reading path.
func NewOffline(path, currency string, log zerolog.Logger) *Offline {
	return &Offline{Path: path, Currency: currency, Now: time.Now, log: log.With().Str("provider", "offline").Logger()}
}

// LoadMockPrices reads the mock prices file at path.
func LoadMockPrices(path string) (map[string]MockPrice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]MockPrice)
	if err := json.Unmarshal(data, &prices); err != nil {
		return nil, fmt.Errorf("invalid mock prices file %q: %w", path, err)
	}
	normalized := make(map[string]MockPrice, len(prices))
	for t, p := range prices {
		normalized[strings.ToUpper(strings.TrimSpace(t))] = p
	}
	return normalized, nil
}

// LatestQuote implements tradesim.QuoteFetcher.
func (o *Offline) LatestQuote(_ context.Context, ticker string) (tradesim.Quote, error) {
	prices, err := LoadMockPrices(o.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return tradesim.Quote{}, fmt.Errorf("offline %s: %w: no mock prices file %q", ticker, ErrNetwork, o.Path)
	}
	if err != nil {
		return tradesim.Quote{}, fmt.Errorf("offline %s: %w: %v", ticker, ErrNetwork, err)
	}
	p, ok := prices[ticker]
	if !ok || !p.Price.IsPositive() {
		return tradesim.Quote{}, fmt.Errorf("offline %s: %w: no mock price", ticker, ErrInvalidTicker)
	}
	cur := p.Currency
	if cur == "" {
		cur = o.Currency
	}
	q := tradesim.Quote{
		Ticker:      ticker,
		Price:       tradesim.M(p.Price, cur),
		Timestamp:   parseUpdatedAt(p.UpdatedAt, o.Now()),
		MarketOpen:  true,
		MarketState: "OFFLINE",
		Name:        p.Name,
		Source:      "offline",
	}
	o.log.Debug().Str("ticker", ticker).Str("price", p.Price.String()).Msg("quote")
	return q, nil
}

// parseUpdatedAt accepts RFC 3339 and naive timestamps, taken as UTC.
func parseUpdatedAt(s string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}
