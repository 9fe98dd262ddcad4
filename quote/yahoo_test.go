package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/etnz/tradesim"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2023-11-17 15:00 UTC, a Friday, 10:00 in New York.
var now = time.Date(2023, time.November, 17, 15, 0, 0, 0, time.UTC)

func chartJSON(currency string, price float64, regularStart, regularEnd int64) string {
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"currency":%q,"symbol":"X","regularMarketPrice":%v,
"regularMarketTime":1700233200,"longName":"Example Corp",
"currentTradingPeriod":{"pre":{"start":%d,"end":%d},"regular":{"start":%d,"end":%d},"post":{"start":%d,"end":%d}}}}],"error":null}}`,
		currency, price, regularStart-3600, regularStart, regularStart, regularEnd, regularEnd, regularEnd+3600)
}

func yahooServer(t *testing.T, handler http.HandlerFunc) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	y := NewYahoo(time.Second, zerolog.Nop())
	y.BaseURL = srv.URL
	y.Now = func() time.Time { return now }
	return y
}

func TestYahoo_LatestQuote(t *testing.T) {
	open := now.Add(-30 * time.Minute).Unix()
	y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		fmt.Fprint(w, chartJSON("USD", 189.84, open, open+6*3600+1800))
	})

	q, err := y.LatestQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Ticker)
	assert.True(t, q.Price.Equal(tradesim.M(189.84, "USD")))
	assert.Equal(t, "USD", q.Currency())
	assert.True(t, q.MarketOpen)
	assert.Equal(t, "REGULAR", q.MarketState)
	assert.Equal(t, "Example Corp", q.Name)
	assert.Equal(t, time.Unix(1700233200, 0).UTC(), q.Timestamp)
}

func TestYahoo_MarketStates(t *testing.T) {
	tests := []struct {
		name  string
		start int64 // regular session start relative to now
		state string
		open  bool
	}{
		{"pre-market", 1800, "PRE", false},
		{"after hours", -6*3600 - 3600, "POST", false},
		{"closed", -24 * 3600, "CLOSED", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start := now.Unix() + tc.start
			y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, chartJSON("USD", 10, start, start+6*3600+1800))
			})
			q, err := y.LatestQuote(context.Background(), "MSFT")
			require.NoError(t, err)
			assert.Equal(t, tc.state, q.MarketState)
			assert.Equal(t, tc.open, q.MarketOpen)
		})
	}
}

func TestYahoo_CryptoAlwaysOpen(t *testing.T) {
	start := now.Unix() - 24*3600
	y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON("USD", 36000.5, start, start+3600))
	})
	q, err := y.LatestQuote(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.True(t, q.MarketOpen)
}

func TestYahoo_Pence(t *testing.T) {
	open := now.Add(-time.Hour).Unix()
	y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartJSON("GBp", 1234.5, open, open+8*3600))
	})
	q, err := y.LatestQuote(context.Background(), "VOD.L")
	require.NoError(t, err)
	assert.Equal(t, "GBP", q.Currency())
	assert.True(t, q.Price.Equal(tradesim.M(12.345, "GBP")), "price = %s", q.Price)
}

func TestYahoo_LastCloseFallback(t *testing.T) {
	y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{"currency":"USD"},
"indicators":{"quote":[{"close":[10.5, 11.25, null]}]}}],"error":null}}`)
	})
	q, err := y.LatestQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(tradesim.M(11.25, "USD")))
}

func TestYahoo_Failures(t *testing.T) {
	t.Run("unknown ticker", func(t *testing.T) {
		y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
		})
		_, err := y.LatestQuote(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrInvalidTicker)
	})
	t.Run("error in body", func(t *testing.T) {
		y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
		})
		_, err := y.LatestQuote(context.Background(), "NOPE")
		assert.ErrorIs(t, err, ErrInvalidTicker)
	})
	t.Run("server error", func(t *testing.T) {
		y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := y.LatestQuote(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrNetwork)
	})
	t.Run("garbage", func(t *testing.T) {
		y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>`)
		})
		_, err := y.LatestQuote(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrNetwork)
	})
	t.Run("timeout", func(t *testing.T) {
		y := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		y.Client.Timeout = 50 * time.Millisecond
		_, err := y.LatestQuote(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrNetwork)
	})
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		y := NewYahoo(time.Second, zerolog.Nop())
		y.BaseURL = srv.URL
		_, err := y.LatestQuote(context.Background(), "AAPL")
		assert.ErrorIs(t, err, ErrNetwork)
	})
}
