package tradesim

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentQuotes bounds the number of quotes fetched at once.
const maxConcurrentQuotes = 4

// LatestPrices fetches the latest price of every ticker concurrently.
//
// It never fails as a whole: tickers whose quote cannot be fetched are absent
// from prices and reported in failed with their error.
func LatestPrices(ctx context.Context, fetcher QuoteFetcher, tickers []string) (prices map[string]Money, failed map[string]error) {
	prices = make(map[string]Money, len(tickers))
	failed = make(map[string]error)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for _, ticker := range tickers {
		g.Go(func() error {
			q, err := fetcher.LatestQuote(ctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[ticker] = err
				return nil
			}
			prices[ticker] = q.Price
			return nil
		})
	}
	g.Wait()
	return prices, failed
}
