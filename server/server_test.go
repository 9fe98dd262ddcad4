package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/quote"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testQuotes serves fixed USD prices. "DOWN" simulates an unreachable provider.
func testQuotes(prices map[string]float64) tradesim.QuoteFetcher {
	return tradesim.QuoteFetcherFunc(func(_ context.Context, ticker string) (tradesim.Quote, error) {
		if ticker == "DOWN" {
			return tradesim.Quote{}, fmt.Errorf("test: %w", tradesim.ErrQuoteNetwork)
		}
		p, ok := prices[ticker]
		if !ok {
			return tradesim.Quote{}, fmt.Errorf("test: %w", tradesim.ErrQuoteInvalidTicker)
		}
		return tradesim.Quote{Ticker: ticker, Price: tradesim.M(p, "USD"), MarketOpen: true}, nil
	})
}

type fixture struct {
	srv   *Server
	txs   *tradesim.TransactionLog
	snaps *tradesim.SnapshotStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		txs:   tradesim.NewTransactionLog(filepath.Join(dir, "transactions.json"), "USD"),
		snaps: tradesim.NewSnapshotStore(filepath.Join(dir, "snapshots.csv"), "USD"),
	}
	trader := tradesim.NewTrader(tradesim.NewPortfolio(tradesim.M(100000, "USD")), tradesim.TraderOptions{
		Quotes:       testQuotes(map[string]float64{"AAPL": 150, "MSFT": 300}),
		Transactions: f.txs,
		Snapshots:    f.snaps,
		Logger:       zerolog.Nop(),
	})
	srv, err := New(Config{
		Log:          zerolog.Nop(),
		Trader:       trader,
		Transactions: f.txs,
		Snapshots:    f.snaps,
		Markets:      quote.DefaultMarkets(),
	})
	require.NoError(t, err)
	f.srv = srv
	return f
}

// do performs a request and decodes the JSON response.
func (f *fixture) do(t *testing.T, method, path, body string) (int, any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var out any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func obj(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected a JSON object, got %T", v)
	return m
}

func TestHealthAndMarkets(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", obj(t, body)["status"])

	code, body = f.do(t, http.MethodGet, "/api/markets", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, obj(t, body)["stocks"], "AAPL")
	assert.Contains(t, obj(t, body)["crypto"], "BTC-USD")
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/quote/aapl", "")
	require.Equal(t, http.StatusOK, code)
	q := obj(t, body)
	assert.Equal(t, "AAPL", q["ticker"])
	assert.Equal(t, 150.0, q["price"])
	assert.Equal(t, "USD", q["currency"])

	tests := []struct {
		path string
		code int
		kind string
	}{
		{"/api/quote/NOPE", http.StatusBadRequest, "data-fetch"},
		{"/api/quote/DOWN", http.StatusServiceUnavailable, "data-fetch"},
		{"/api/quote/" + strings.Repeat("A", 30), http.StatusBadRequest, "validation"},
	}
	for _, tc := range tests {
		code, body := f.do(t, http.MethodGet, tc.path, "")
		assert.Equal(t, tc.code, code, tc.path)
		assert.Equal(t, tc.kind, obj(t, body)["kind"], tc.path)
	}
}

func TestTrade(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/trade", `{"action":"buy","ticker":"AAPL","quantity":10}`)
	require.Equal(t, http.StatusOK, code, body)
	res := obj(t, body)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "PERSISTED", res["state"])
	assert.NotEmpty(t, res["order_id"])
	assert.Empty(t, res["warnings"])

	tx := obj(t, res["transaction"])
	assert.Equal(t, "BUY", tx["side"])
	assert.Equal(t, "AAPL", tx["ticker"])
	assert.Equal(t, 150.0, tx["price"])
	assert.Equal(t, 1500.0, tx["total"])
	assert.Equal(t, 98500.0, tx["cash_after"])
	assert.Equal(t, 98500.0, obj(t, res["portfolio"])["cash"])

	code, body = f.do(t, http.MethodPost, "/api/trade", `{"action":"sell","ticker":"AAPL","quantity":"4","order_type":"limit","limit_price":140}`)
	require.Equal(t, http.StatusOK, code, body)
	tx = obj(t, obj(t, body)["transaction"])
	assert.Equal(t, "SELL", tx["side"])
	assert.Equal(t, 140.0, tx["price"], "a reachable limit executes at the limit price")

	txs, err := f.txs.Read()
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	snaps, err := f.snaps.Read()
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestTrade_Rejected(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		code int
		kind string
	}{
		{"bad body", `{"action":`, http.StatusBadRequest, "validation"},
		{"bad action", `{"action":"hold","ticker":"AAPL","quantity":1}`, http.StatusBadRequest, "validation"},
		{"zero quantity", `{"action":"buy","ticker":"AAPL","quantity":0}`, http.StatusBadRequest, "validation"},
		{"missing quantity", `{"action":"buy","ticker":"AAPL"}`, http.StatusBadRequest, "validation"},
		{"bad order type", `{"action":"buy","ticker":"AAPL","quantity":1,"order_type":"stop"}`, http.StatusBadRequest, "validation"},
		{"limit without price", `{"action":"buy","ticker":"AAPL","quantity":1,"order_type":"limit"}`, http.StatusBadRequest, "validation"},
		{"insufficient funds", `{"action":"buy","ticker":"AAPL","quantity":1000}`, http.StatusConflict, "insufficient-funds"},
		{"insufficient holdings", `{"action":"sell","ticker":"AAPL","quantity":1}`, http.StatusConflict, "insufficient-holdings"},
		{"limit not reachable", `{"action":"buy","ticker":"AAPL","quantity":1,"order_type":"limit","limit_price":100}`, http.StatusConflict, "limit-not-reachable"},
		{"unknown ticker", `{"action":"buy","ticker":"NOPE","quantity":1}`, http.StatusBadRequest, "data-fetch"},
		{"provider down", `{"action":"buy","ticker":"DOWN","quantity":1}`, http.StatusServiceUnavailable, "data-fetch"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := f.do(t, http.MethodPost, "/api/trade", tc.body)
			assert.Equal(t, tc.code, code)
			res := obj(t, body)
			assert.Equal(t, tc.kind, res["kind"])
			assert.NotEmpty(t, res["error"])
		})
	}

	txs, err := f.txs.Read()
	require.NoError(t, err)
	assert.Empty(t, txs, "rejected orders leave no history")
}

func TestPortfolioTransactionsAndPL(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{
		`{"action":"buy","ticker":"AAPL","quantity":10}`,
		`{"action":"buy","ticker":"MSFT","quantity":2}`,
		`{"action":"sell","ticker":"AAPL","quantity":5}`,
	} {
		code, res := f.do(t, http.MethodPost, "/api/trade", body)
		require.Equal(t, http.StatusOK, code, res)
	}

	code, body := f.do(t, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, code)
	p := obj(t, body)
	assert.Equal(t, 98650.0, p["cash"])
	assert.Equal(t, 1350.0, p["holdings_value"])
	assert.Equal(t, 100000.0, p["total_value"])
	holdings := p["holdings"].([]any)
	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", obj(t, holdings[0])["ticker"])
	assert.Equal(t, 150.0, obj(t, holdings[0])["current_price"])

	code, body = f.do(t, http.MethodGet, "/api/transactions?tail=2", "")
	require.Equal(t, http.StatusOK, code)
	txs := body.([]any)
	require.Len(t, txs, 2)
	assert.Equal(t, "MSFT", obj(t, txs[0])["ticker"])

	code, body = f.do(t, http.MethodGet, "/api/pl", "")
	require.Equal(t, http.StatusOK, code)
	pl := obj(t, body)
	assert.Equal(t, "average", pl["method"])
	assert.Equal(t, 0.0, pl["total"])
	assert.Len(t, pl["tickers"], 2)

	code, body = f.do(t, http.MethodGet, "/api/snapshots", "")
	require.Equal(t, http.StatusOK, code)
	snaps := obj(t, body)
	assert.Len(t, snaps["snapshots"], 3)
	assert.Equal(t, 3.0, obj(t, snaps["stats"])["count"])
}

func TestEmptyHistory(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body)

	code, body = f.do(t, http.MethodGet, "/api/snapshots", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, obj(t, body)["snapshots"])
}

func TestSnapshotJob(t *testing.T) {
	f := newFixture(t)
	f.srv.snapshotJob()
	snaps, err := f.snaps.Read()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].TotalValue.Equal(tradesim.M(100000, "USD")))
}

func TestNew_BadSchedule(t *testing.T) {
	_, err := New(Config{Log: zerolog.Nop(), SnapshotSchedule: "whenever"})
	assert.Error(t, err)

	s, err := New(Config{Log: zerolog.Nop(), SnapshotSchedule: "@every 1h"})
	require.NoError(t, err)
	assert.NotNil(t, s.cron)
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>tradesim</title>")
}
