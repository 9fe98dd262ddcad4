package tradesim

import (
	"context"
	"time"
)

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// EUR is a helper for test to create euro money from const
func EUR(v float64) Money { return M(v, "EUR") }

// fixedQuotes is a QuoteFetcher serving prices from a map, always open.
type fixedQuotes map[string]Money

func (f fixedQuotes) LatestQuote(_ context.Context, ticker string) (Quote, error) {
	p, ok := f[ticker]
	if !ok {
		return Quote{}, ErrQuoteInvalidTicker
	}
	return Quote{Ticker: ticker, Price: p, Timestamp: testNow, MarketOpen: true, MarketState: "REGULAR"}, nil
}

var testNow = time.Date(2025, time.March, 14, 15, 0, 0, 0, time.UTC)

// clock returns a Now function ticking one minute per call from testNow.
func clock() func() time.Time {
	t := testNow
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}
