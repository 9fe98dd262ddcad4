package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/config"
	"github.com/etnz/tradesim/renderer"
)

// The actions below are shared by the commands and the shell. They return
// markdown and leave the printing to the caller.

func (a *app) quote(ctx context.Context, ticker string) (string, error) {
	q, err := a.trader.Quote(ctx, ticker)
	if err != nil {
		return "", err
	}
	return renderer.RenderQuote(q), nil
}

// trade executes a buy or a sell. A limit is parsed in the portfolio currency,
// an empty one places a market order.
func (a *app) trade(ctx context.Context, side tradesim.Side, ticker, quantity, limit string) (tradesim.Result, error) {
	qty, err := tradesim.ParseQuantity(quantity)
	if err != nil {
		return tradesim.Result{}, err
	}
	order := tradesim.Order{Side: side, Ticker: ticker, Quantity: qty}
	if limit != "" {
		if order.Limit, err = tradesim.ParsePrice(limit, a.trader.Portfolio().Currency()); err != nil {
			return tradesim.Result{}, err
		}
	}
	res, err := a.trader.Execute(ctx, order)
	for _, w := range res.Warnings {
		fmt.Fprintf(a.stderr, "Warning: %v\n", w)
	}
	return res, err
}

// portfolio refreshes the prices of the holdings and values the portfolio.
func (a *app) portfolio(ctx context.Context) string {
	prices, failed := a.trader.RefreshPrices(ctx)
	a.warnPrices(failed)
	return renderer.RenderPortfolio(renderer.NewPortfolio(a.trader.Portfolio(), prices))
}

func (a *app) history(tail int) (string, error) {
	txs, err := a.txs.Read()
	if err != nil {
		return "", err
	}
	return renderer.RenderHistory(tradesim.Tail(txs, tail)), nil
}

func (a *app) pl(ctx context.Context, method tradesim.CostBasisMethod) (string, error) {
	txs, err := a.txs.Read()
	if err != nil {
		return "", err
	}
	prices, failed := a.trader.RefreshPrices(ctx)
	a.warnPrices(failed)
	return renderer.RenderPL(tradesim.Summarize(txs, a.trader.Portfolio(), prices, method)), nil
}

func (a *app) snapshots(tail int) (string, error) {
	snaps, err := a.snaps.Read()
	if err != nil {
		return "", err
	}
	return renderer.RenderSnapshots(renderer.NewSnapshotHistory(tradesim.Tail(snaps, tail))), nil
}

// report builds the trading report of the trades since the given duration,
// or of all history when since is zero.
func (a *app) report(ctx context.Context, since time.Duration) (string, error) {
	txs, err := a.txs.Read()
	if err != nil {
		return "", err
	}
	snaps, err := a.snaps.Read()
	if err != nil {
		return "", err
	}
	prices, failed := a.trader.RefreshPrices(ctx)
	a.warnPrices(failed)

	now := time.Now()
	var from time.Time
	if since > 0 {
		from = now.Add(-since)
	}
	p := a.trader.Portfolio()
	r := tradesim.NewReport(now, from, txs, snaps, p, prices, a.cfg.Method())
	return renderer.RenderReport(renderer.NewReport(r, p, prices)), nil
}

// save writes the portfolio to path, the data directory portfolio when empty.
func (a *app) save(path string) (string, error) {
	if path == "" {
		return a.cfg.Path(config.PortfolioFile), a.trader.Save()
	}
	return path, tradesim.SavePortfolio(path, a.trader.Portfolio())
}

// load replaces the portfolio with the one saved at path, and persists it in
// the data directory. The transaction and snapshot histories of the replaced
// portfolio are archived, and a snapshot of the loaded one starts the new
// history. It returns the archived files.
func (a *app) load(ctx context.Context, path string) ([]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &tradesim.Error{Kind: tradesim.File, Op: "load portfolio", Msg: fmt.Sprintf("%q does not exist", path)}
	}
	p, err := tradesim.LoadPortfolio(path, a.cfg.Cash())
	if err != nil {
		return nil, err
	}
	a.trader.Replace(p)
	if err := a.trader.Save(); err != nil {
		return nil, err
	}

	now := time.Now()
	var archived []string
	for _, archive := range []func(time.Time) (string, error){a.txs.Archive, a.snaps.Archive} {
		name, err := archive(now)
		if err != nil {
			return archived, err
		}
		if name != "" {
			archived = append(archived, name)
		}
	}
	a.log.Info().Str("portfolio", path).Strs("archived", archived).Msg("portfolio loaded")

	if _, err := a.trader.TakeSnapshot(ctx); err != nil {
		return archived, err
	}
	return archived, nil
}

func printArchived(w io.Writer, archived []string) {
	for _, name := range archived {
		fmt.Fprintf(w, "Previous history archived to %s\n", name)
	}
}
