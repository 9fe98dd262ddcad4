// Package quote provides the market-data collaborators of the trading engine:
// live providers (Yahoo chart API, EODHD real-time API, Tradegate Exchange by
// ISIN), an offline provider
// reading mock prices from a JSON file, a TTL cache, a live-to-offline
// fallback and an exchange-hours calendar.
//
// Every provider implements tradesim.QuoteFetcher and reports failures by
// wrapping ErrInvalidTicker, ErrNetwork or ErrMarketClosed.
package quote

import (
	"time"

	"github.com/etnz/tradesim"
)

// Failures reported by providers.
var (
	ErrInvalidTicker = tradesim.ErrQuoteInvalidTicker
	ErrNetwork       = tradesim.ErrQuoteNetwork
	ErrMarketClosed  = tradesim.ErrQuoteMarketClosed
)

const (
	// DefaultTimeout bounds a single quote request.
	DefaultTimeout = 10 * time.Second
	// MaxTimeout is the largest accepted request timeout.
	MaxTimeout = 15 * time.Second
)
