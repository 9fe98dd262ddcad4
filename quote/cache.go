package quote

import (
	"context"
	"sync"
	"time"

	"github.com/etnz/tradesim"
)

type cachedQuote struct {
	quote   tradesim.Quote
	fetched time.Time
}

// Cache keeps successful quotes of a provider for a TTL.
type Cache struct {
	next tradesim.QuoteFetcher
	ttl  time.Duration
	Now  func() time.Time

	mu     sync.RWMutex
	quotes map[string]cachedQuote
}

// NewCache returns a cache in front of next.
func NewCache(next tradesim.QuoteFetcher, ttl time.Duration) *Cache {
	return &Cache{next: next, ttl: ttl, Now: time.Now, quotes: make(map[string]cachedQuote)}
}

// LatestQuote implements tradesim.QuoteFetcher.
func (c *Cache) LatestQuote(ctx context.Context, ticker string) (tradesim.Quote, error) {
	c.mu.RLock()
	cached, ok := c.quotes[ticker]
	c.mu.RUnlock()
	if ok && c.Now().Sub(cached.fetched) < c.ttl {
		return cached.quote, nil
	}

	q, err := c.next.LatestQuote(ctx, ticker)
	if err != nil {
		return q, err
	}
	c.mu.Lock()
	c.quotes[ticker] = cachedQuote{quote: q, fetched: c.Now()}
	c.mu.Unlock()
	return q, nil
}

// Purge forgets every cached quote.
func (c *Cache) Purge() {
	c.mu.Lock()
	clear(c.quotes)
	c.mu.Unlock()
}
