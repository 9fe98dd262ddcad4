package tradesim

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestQuote_MarshalJSON(t *testing.T) {
	q := Quote{
		Ticker:     "AAPL",
		Price:      USD(189.5),
		Timestamp:  time.Date(2025, time.March, 14, 15, 0, 0, 0, time.UTC),
		MarketOpen: true,
		Source:     "yahoo",
	}
	got, err := json.Marshal(q)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"ticker":"AAPL","price":189.5,"currency":"USD","timestamp":"2025-03-14T15:00:00Z","market_open":true,"source":"yahoo"}`
	if string(got) != want {
		t.Errorf("json.Marshal(quote):\ngot  %s\nwant %s", got, want)
	}
}

func TestLatestPrices(t *testing.T) {
	quotes := fixedQuotes{"AAPL": USD(100), "MSFT": USD(300), "NVDA": USD(900)}
	prices, failed := LatestPrices(context.Background(), quotes, []string{"AAPL", "MSFT", "NVDA", "NOPE"})

	if len(prices) != 3 {
		t.Fatalf("LatestPrices() returned %d prices, want 3", len(prices))
	}
	if !prices["MSFT"].Equal(USD(300)) {
		t.Errorf("prices[MSFT] = %v, want 300", prices["MSFT"])
	}
	if err, ok := failed["NOPE"]; !ok || !errors.Is(err, ErrQuoteInvalidTicker) {
		t.Errorf("failed[NOPE] = %v, want ErrQuoteInvalidTicker", err)
	}
}

func TestQuoteFetcherFunc(t *testing.T) {
	var f QuoteFetcher = QuoteFetcherFunc(func(_ context.Context, ticker string) (Quote, error) {
		return Quote{Ticker: ticker, Price: USD(1)}, nil
	})
	q, err := f.LatestQuote(context.Background(), "X")
	if err != nil || q.Ticker != "X" {
		t.Errorf("LatestQuote() = %v, %v", q, err)
	}
}
