package tradesim

import (
	"context"
	"time"
)

// Quote is the latest observed price of a ticker, as reported by a market-data
// provider. It is never persisted.
type Quote struct {
	Ticker      string
	Price       Money
	Timestamp   time.Time
	MarketOpen  bool
	MarketState string // provider specific, e.g. "REGULAR", "PRE", "POST", "CLOSED"
	Name        string // optional long name of the instrument
	Source      string // provider that produced the quote
}

// Currency returns the currency the quote is priced in.
func (q Quote) Currency() string { return q.Price.Currency() }

// MarshalJSON implements the json.Marshaler interface for Quote.
func (q Quote) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("ticker", q.Ticker)
	w.Append("price", q.Price)
	w.Append("currency", q.Currency())
	w.Append("timestamp", q.Timestamp.UTC().Format(time.RFC3339))
	w.Append("market_open", q.MarketOpen)
	w.Optional("market_state", q.MarketState)
	w.Optional("name", q.Name)
	w.Optional("source", q.Source)
	return w.MarshalJSON()
}

// QuoteFetcher is the market-data capability the trading engine consumes.
//
// Implementations report failures by wrapping ErrQuoteInvalidTicker,
// ErrQuoteNetwork or ErrQuoteMarketClosed, and bound the call with their own
// timeout.
type QuoteFetcher interface {
	LatestQuote(ctx context.Context, ticker string) (Quote, error)
}

// QuoteFetcherFunc adapts a function to the QuoteFetcher interface.
type QuoteFetcherFunc func(ctx context.Context, ticker string) (Quote, error)

// LatestQuote calls f.
func (f QuoteFetcherFunc) LatestQuote(ctx context.Context, ticker string) (Quote, error) {
	return f(ctx, ticker)
}

// MarketHours reports whether ticker can be traded at a market price at the
// given instant.
type MarketHours func(ticker string, at time.Time) bool
