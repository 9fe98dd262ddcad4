package tradesim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTransactions struct{ mock.Mock }

func (m *mockTransactions) Append(tx Transaction) error { return m.Called(tx).Error(0) }

type mockSnapshots struct{ mock.Mock }

func (m *mockSnapshots) Append(s Snapshot) error { return m.Called(s).Error(0) }

// fileTrader returns a Trader wired to real files in a temporary directory.
func fileTrader(t *testing.T, cash Money, quotes QuoteFetcher) (*Trader, *TransactionLog, *SnapshotStore, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "portfolio.json")
	txs := NewTransactionLog(filepath.Join(dir, "transactions.json"), cash.Currency())
	snaps := NewSnapshotStore(filepath.Join(dir, "snapshots.csv"), cash.Currency())
	trader := NewTrader(NewPortfolio(cash), TraderOptions{
		Quotes:             quotes,
		Transactions:       txs,
		Snapshots:          snaps,
		Autosave:           func(p *Portfolio) error { return SavePortfolio(path, p) },
		EnforceMarketHours: true,
		Logger:             zerolog.Nop(),
		Now:                clock(),
	})
	return trader, txs, snaps, path
}

func order(side Side, ticker string, q float64) Order {
	return Order{Side: side, Ticker: ticker, Quantity: Q(q)}
}

func TestTrader_Scenario(t *testing.T) {
	quotes := fixedQuotes{"AAPL": USD(150)}
	trader, txs, snaps, path := fileTrader(t, USD(100000), quotes)
	ctx := context.Background()

	res, err := trader.Execute(ctx, order(Buy, "aapl", 10))
	require.NoError(t, err)
	assert.Equal(t, Persisted, res.State)
	assert.True(t, res.Executed())
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "AAPL", res.Transaction.Ticker)
	assert.True(t, res.Transaction.Total.Equal(USD(1500)))
	assert.True(t, res.Transaction.CashAfter.Equal(USD(98500)), "cash after = %s", res.Transaction.CashAfter)

	p := trader.Portfolio()
	h, ok := p.Holding("AAPL")
	require.True(t, ok)
	assert.True(t, h.Quantity.Equal(Q(10)))
	assert.True(t, h.AverageCost.Equal(USD(150)))

	quotes["AAPL"] = USD(200)
	res, err = trader.Execute(ctx, order(Sell, "AAPL", 4))
	require.NoError(t, err)
	assert.True(t, res.Transaction.CashAfter.Equal(USD(99300)))

	p = trader.Portfolio()
	h, _ = p.Holding("AAPL")
	assert.True(t, h.Quantity.Equal(Q(6)))
	assert.True(t, h.AverageCost.Equal(USD(150)))

	history, err := txs.Read()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, Buy, history[0].Side)
	assert.Equal(t, Sell, history[1].Side)

	s := Summarize(history, p, trader.LastPrices(), AverageCost)
	assert.True(t, s.Realized.Equal(USD(200)), "realized = %s", s.Realized)

	series, err := snaps.Read()
	require.NoError(t, err)
	require.Len(t, series, 2)
	// 99300 + 6 * 200
	assert.True(t, series[1].TotalValue.Equal(USD(100500)), "total = %s", series[1].TotalValue)

	saved, err := LoadPortfolio(path, USD(0))
	require.NoError(t, err)
	assert.True(t, saved.Equal(p))
}

func TestTrader_AppendOnlyHistory(t *testing.T) {
	trader, txs, snaps, _ := fileTrader(t, USD(10000), fixedQuotes{"AAPL": USD(10), "MSFT": USD(20)})
	ctx := context.Background()
	orders := []Order{
		order(Buy, "AAPL", 5), order(Buy, "MSFT", 3), order(Sell, "AAPL", 2),
		order(Sell, "MSFT", 3), order(Buy, "AAPL", 1),
	}
	for _, o := range orders {
		_, err := trader.Execute(ctx, o)
		require.NoError(t, err)
	}
	history, err := txs.Read()
	require.NoError(t, err)
	require.Len(t, history, len(orders))
	for i, o := range orders {
		assert.Equal(t, o.Side, history[i].Side)
		assert.Equal(t, o.Ticker, history[i].Ticker)
		if i > 0 {
			assert.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
		}
	}
	series, err := snaps.Read()
	require.NoError(t, err)
	assert.Len(t, series, len(orders))
}

func TestTrader_Rejections(t *testing.T) {
	ctx := context.Background()
	networkDown := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{}, fmt.Errorf("GET chart/%s: %w", ticker, ErrQuoteNetwork)
	})
	timeout := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{}, context.DeadlineExceeded
	})
	closed := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{Ticker: ticker, Price: USD(150), MarketOpen: false, MarketState: "POST"}, nil
	})
	providerClosed := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{}, ErrQuoteMarketClosed
	})
	zeroPrice := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{Ticker: ticker, Price: USD(0), MarketOpen: true}, nil
	})
	euro := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{Ticker: ticker, Price: EUR(10), MarketOpen: true}, nil
	})
	open := fixedQuotes{"AAPL": USD(150)}

	tests := []struct {
		name   string
		quotes QuoteFetcher
		order  Order
		kind   Kind
	}{
		{"empty ticker", open, order(Buy, " ", 1), Validation},
		{"bad ticker", open, order(Buy, "AA$L", 1), Validation},
		{"zero quantity", open, order(Buy, "AAPL", 0), Validation},
		{"negative quantity", open, order(Sell, "AAPL", -1), Validation},
		{"unknown side", open, Order{Side: "HOLD", Ticker: "AAPL", Quantity: Q(1)}, Validation},
		{"negative limit", open, Order{Side: Buy, Ticker: "AAPL", Quantity: Q(1), Limit: USD(-1)}, Validation},
		{"network failure", networkDown, order(Buy, "AAPL", 1), DataFetch},
		{"timeout", timeout, order(Buy, "AAPL", 1), DataFetch},
		{"unknown ticker", open, order(Buy, "ZZZZ", 1), DataFetch},
		{"zero price", zeroPrice, order(Buy, "AAPL", 1), DataFetch},
		{"foreign currency", euro, order(Buy, "SAP.DE", 1), Validation},
		{"market closed", closed, order(Buy, "AAPL", 1), MarketClosed},
		{"provider reports closed", providerClosed, order(Buy, "AAPL", 1), MarketClosed},
		{"insufficient funds", open, order(Buy, "AAPL", 1000), InsufficientFunds},
		{"sell not held", open, order(Sell, "TSLA", 1), InsufficientHoldings},
		{"limit buy not reachable", open, Order{Side: Buy, Ticker: "AAPL", Quantity: Q(1), Limit: USD(149.99)}, LimitNotReachable},
		{"limit sell not reachable", open, Order{Side: Sell, Ticker: "AAPL", Quantity: Q(1), Limit: USD(150.01)}, LimitNotReachable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			txs := new(mockTransactions)
			snaps := new(mockSnapshots)
			saves := 0
			p := NewPortfolio(USD(100000))
			before := p.Clone()
			trader := NewTrader(p, TraderOptions{
				Quotes:             tc.quotes,
				Transactions:       txs,
				Snapshots:          snaps,
				Autosave:           func(*Portfolio) error { saves++; return nil },
				EnforceMarketHours: true,
				Logger:             zerolog.Nop(),
				Now:                clock(),
			})

			res, err := trader.Execute(ctx, tc.order)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err), "error: %v", err)
			assert.Equal(t, Rejected, res.State)
			assert.False(t, res.Executed())
			assert.True(t, trader.Portfolio().Equal(before), "portfolio mutated")
			txs.AssertNotCalled(t, "Append", mock.Anything)
			snaps.AssertNotCalled(t, "Append", mock.Anything)
			assert.Zero(t, saves)
		})
	}
}

func TestTrader_NetworkFailureLeavesFilesUntouched(t *testing.T) {
	down := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{}, ErrQuoteNetwork
	})
	trader, txs, snaps, path := fileTrader(t, USD(100000), down)
	_, err := trader.Execute(context.Background(), order(Buy, "AAPL", 1))
	require.ErrorIs(t, err, ErrDataFetch)
	assert.ErrorIs(t, err, ErrQuoteNetwork)

	history, err := txs.Read()
	require.NoError(t, err)
	assert.Empty(t, history)
	series, err := snaps.Read()
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.NoFileExists(t, path)
}

func TestTrader_LimitOrders(t *testing.T) {
	ctx := context.Background()
	closed := QuoteFetcherFunc(func(ctx context.Context, ticker string) (Quote, error) {
		return Quote{Ticker: ticker, Price: USD(100), MarketOpen: false, MarketState: "CLOSED"}, nil
	})
	trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{
		Quotes:             closed,
		EnforceMarketHours: true,
		Logger:             zerolog.Nop(),
	})

	// limit orders are not gated by market hours and execute at the limit.
	res, err := trader.Execute(ctx, Order{Side: Buy, Ticker: "AAPL", Quantity: Q(2), Limit: USD(101)})
	require.NoError(t, err)
	assert.True(t, res.Transaction.Price.Equal(USD(101)))
	assert.True(t, trader.Portfolio().Cash().Equal(USD(798)))

	res, err = trader.Execute(ctx, Order{Side: Sell, Ticker: "AAPL", Quantity: Q(1), Limit: USD(99)})
	require.NoError(t, err)
	assert.True(t, res.Transaction.Price.Equal(USD(99)))

	_, err = trader.Execute(ctx, order(Sell, "AAPL", 1))
	assert.ErrorIs(t, err, ErrMarketClosed)
	assert.Contains(t, err.Error(), "CLOSED")
}

func TestTrader_MarketHours(t *testing.T) {
	ctx := context.Background()
	var allowed bool
	trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{
		Quotes:             fixedQuotes{"AAPL": USD(10)},
		MarketHours:        func(string, time.Time) bool { return allowed },
		EnforceMarketHours: true,
		Logger:             zerolog.Nop(),
	})
	_, err := trader.Execute(ctx, order(Buy, "AAPL", 1))
	assert.ErrorIs(t, err, ErrMarketClosed)

	allowed = true
	_, err = trader.Execute(ctx, order(Buy, "AAPL", 1))
	assert.NoError(t, err)

	lenient := NewTrader(NewPortfolio(USD(1000)), TraderOptions{
		Quotes:      fixedQuotes{"AAPL": USD(10)},
		MarketHours: func(string, time.Time) bool { return false },
		Logger:      zerolog.Nop(),
	})
	_, err = lenient.Execute(ctx, order(Buy, "AAPL", 1))
	assert.NoError(t, err, "hours are only enforced on demand")
}

func TestTrader_HistoryPolicies(t *testing.T) {
	ctx := context.Background()
	diskFull := fileError("append transaction", errors.New("no space left on device"))

	t.Run("best-effort", func(t *testing.T) {
		txs := new(mockTransactions)
		txs.On("Append", mock.Anything).Return(diskFull).Once()
		snaps := new(mockSnapshots)
		snaps.On("Append", mock.Anything).Return(nil).Once()
		trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{
			Quotes: fixedQuotes{"AAPL": USD(10)}, Transactions: txs, Snapshots: snaps, Logger: zerolog.Nop(),
		})
		res, err := trader.Execute(ctx, order(Buy, "AAPL", 1))
		require.NoError(t, err)
		assert.Equal(t, Persisted, res.State)
		require.Len(t, res.Warnings, 1)
		assert.ErrorIs(t, res.Warnings[0], ErrFile)
		assert.True(t, trader.Portfolio().Cash().Equal(USD(990)))
		txs.AssertExpectations(t)
		snaps.AssertExpectations(t)
	})

	t.Run("retry", func(t *testing.T) {
		txs := new(mockTransactions)
		txs.On("Append", mock.Anything).Return(diskFull).Twice()
		txs.On("Append", mock.Anything).Return(nil).Once()
		trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{
			Quotes: fixedQuotes{"AAPL": USD(10)}, Transactions: txs,
			HistoryPolicy: Retry, HistoryRetries: 2, Logger: zerolog.Nop(),
		})
		res, err := trader.Execute(ctx, order(Buy, "AAPL", 1))
		require.NoError(t, err)
		assert.Empty(t, res.Warnings)
		txs.AssertNumberOfCalls(t, "Append", 3)
	})

	t.Run("strict", func(t *testing.T) {
		snaps := new(mockSnapshots)
		snaps.On("Append", mock.Anything).Return(errors.New("read-only file system"))
		saved := false
		trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{
			Quotes: fixedQuotes{"AAPL": USD(10)}, Snapshots: snaps,
			Autosave:      func(*Portfolio) error { saved = true; return nil },
			HistoryPolicy: Strict, Logger: zerolog.Nop(),
		})
		res, err := trader.Execute(ctx, order(Buy, "AAPL", 1))
		require.ErrorIs(t, err, ErrFile)
		assert.True(t, res.Executed())
		assert.Equal(t, Logged, res.State)
		assert.True(t, saved, "the portfolio is still saved")
		assert.True(t, trader.Portfolio().Cash().Equal(USD(990)))
	})
}

func TestTrader_AutosaveFailure(t *testing.T) {
	trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{
		Quotes:   fixedQuotes{"AAPL": USD(10)},
		Autosave: func(*Portfolio) error { return fileError("save portfolio", errors.New("permission denied")) },
		Logger:   zerolog.Nop(),
	})
	res, err := trader.Execute(context.Background(), order(Buy, "AAPL", 3))
	require.ErrorIs(t, err, ErrFile)
	assert.True(t, res.Executed(), "the trade stands")
	assert.True(t, res.Transaction.CashAfter.Equal(USD(970)))
	assert.True(t, trader.Portfolio().Cash().Equal(USD(970)))
}

func TestTrader_QuoteAndRefresh(t *testing.T) {
	ctx := context.Background()
	quotes := fixedQuotes{"AAPL": USD(10), "MSFT": USD(20)}
	trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{Quotes: quotes, Logger: zerolog.Nop()})

	q, err := trader.Quote(ctx, "msft")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", q.Ticker)

	_, err = trader.Quote(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrDataFetch)
	assert.ErrorIs(t, err, ErrQuoteInvalidTicker)

	_, err = trader.Quote(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = trader.Execute(ctx, order(Buy, "AAPL", 2))
	require.NoError(t, err)
	quotes["AAPL"] = USD(12)
	prices, failed := trader.RefreshPrices(ctx)
	assert.Empty(t, failed)
	assert.True(t, prices["AAPL"].Equal(USD(12)))

	snap, err := trader.TakeSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.TotalValue.Equal(USD(1004)), "total = %s", snap.TotalValue)
}

func TestTrader_SellRecordsCostBasis(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cash": 0, "currency": "USD", "holdings": {"AAPL": {"quantity": 10, "average_cost": 100}}}`), 0o644))
	p, err := LoadPortfolio(path, USD(0))
	require.NoError(t, err)

	txs := NewTransactionLog(filepath.Join(dir, "transactions.json"), "USD")
	trader := NewTrader(p, TraderOptions{
		Quotes:       fixedQuotes{"AAPL": USD(120)},
		Transactions: txs,
		Logger:       zerolog.Nop(),
		Now:          clock(),
	})
	res, err := trader.Execute(context.Background(), order(Sell, "AAPL", 5))
	require.NoError(t, err)
	assert.True(t, res.Transaction.CostBasis.Equal(USD(100)), "cost basis = %s", res.Transaction.CostBasis)

	history, err := txs.Read()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Equal(res.Transaction))

	s := Summarize(history, trader.Portfolio(), nil, AverageCost)
	assert.True(t, s.Realized.Equal(USD(100)), "realized = %s", s.Realized)

	// the recorded basis still applies once the position is closed.
	_, err = trader.Execute(context.Background(), order(Sell, "AAPL", 5))
	require.NoError(t, err)
	history, err = txs.Read()
	require.NoError(t, err)
	s = Summarize(history, trader.Portfolio(), nil, AverageCost)
	assert.True(t, s.Realized.Equal(USD(200)), "realized = %s", s.Realized)
	assert.Empty(t, s.Unmatched)
}

func TestTrader_RefreshRejectsInvalidPrices(t *testing.T) {
	ctx := context.Background()
	quotes := fixedQuotes{"AAPL": USD(10), "MSFT": USD(20)}
	trader := NewTrader(NewPortfolio(USD(1000)), TraderOptions{Quotes: quotes, Logger: zerolog.Nop()})
	for _, ticker := range []string{"AAPL", "MSFT"} {
		_, err := trader.Execute(ctx, order(Buy, ticker, 1))
		require.NoError(t, err)
	}

	quotes["AAPL"] = USD(0)
	quotes["MSFT"] = EUR(25)
	prices, failed := trader.RefreshPrices(ctx)
	assert.ErrorIs(t, failed["AAPL"], ErrDataFetch)
	assert.ErrorIs(t, failed["MSFT"], ErrValidation)
	// previous prices are kept.
	assert.True(t, prices["AAPL"].Equal(USD(10)), "AAPL = %s", prices["AAPL"])
	assert.True(t, prices["MSFT"].Equal(USD(20)), "MSFT = %s", prices["MSFT"])

	snap, err := trader.TakeSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.TotalValue.Equal(USD(1000)), "total = %s", snap.TotalValue)
}
