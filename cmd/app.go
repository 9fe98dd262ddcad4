// Package cmd implements the command line interface of the trading simulator.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/config"
	"github.com/etnz/tradesim/quote"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&quoteCmd{}, "market")

	c.Register(&tradeCmd{side: tradesim.Buy}, "trading")
	c.Register(&tradeCmd{side: tradesim.Sell}, "trading")

	c.Register(&portfolioCmd{}, "portfolio")
	c.Register(&saveCmd{}, "portfolio")
	c.Register(&loadCmd{}, "portfolio")

	c.Register(&historyCmd{}, "reports")
	c.Register(&plCmd{}, "reports")
	c.Register(&snapshotsCmd{}, "reports")
	c.Register(&reportCmd{}, "reports")

	c.Register(&serveCmd{}, "interactive")
	c.Register(&shellCmd{}, "interactive")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile = flag.String("config", "", "Path to a TOML configuration file")
	envFile    = flag.String("env", ".env", "Path to a .env file, ignored when missing")
	dataDir    = flag.String("data-dir", "", "Directory holding the portfolio, the history files and the log (overrides the configuration)")
	provider   = flag.String("provider", "", "Market data provider: yahoo, eodhd, tradegate or offline (overrides the configuration)")
	verbose    = flag.Bool("v", false, "Also write the log to stderr")
)

// app gathers everything a command needs, built from the configuration.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	logf   io.Closer
	stderr io.Writer // warnings

	txs    *tradesim.TransactionLog
	snaps  *tradesim.SnapshotStore
	trader *tradesim.Trader
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		return nil, err
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *provider != "" {
		cfg.Provider = *provider
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp is the central function to open the simulator state.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, *verbose)
}

// newApp opens the data directory described by cfg: it loads the portfolio,
// or creates a fresh one, and wires the trader to the configured provider.
func newApp(cfg *config.Config, verbose bool) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}
	log, logf, err := newLogger(cfg, verbose)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, logf: logf, stderr: os.Stderr}

	quotes, err := quote.New(cfg.QuoteOptions(), log)
	if err != nil {
		a.close()
		return nil, err
	}

	p, err := tradesim.LoadPortfolio(cfg.Path(config.PortfolioFile), cfg.Cash())
	if err != nil {
		a.close()
		return nil, err
	}
	a.txs = tradesim.NewTransactionLog(cfg.Path(config.TransactionsFile), p.Currency())
	a.snaps = tradesim.NewSnapshotStore(cfg.Path(config.SnapshotsFile), p.Currency())

	portfolioPath := cfg.Path(config.PortfolioFile)
	a.trader = tradesim.NewTrader(p, tradesim.TraderOptions{
		Quotes:       quotes,
		Transactions: a.txs,
		Snapshots:    a.snaps,
		Autosave: func(p *tradesim.Portfolio) error {
			return tradesim.SavePortfolio(portfolioPath, p)
		},
		EnforceMarketHours: cfg.EnforceMarketHours,
		HistoryPolicy:      cfg.Policy(),
		HistoryRetries:     cfg.HistoryRetries,
		Logger:             log,
	})
	log.Debug().Str("data_dir", cfg.DataDir).Str("provider", cfg.Provider).Str("cash", p.Cash().String()).Int("holdings", p.Len()).Msg("portfolio opened")
	return a, nil
}

func (a *app) close() {
	if a.logf != nil {
		a.logf.Close()
	}
}

// newLogger returns a JSON logger appending to the log file of the data
// directory, and also writing human readable lines to stderr when verbose.
func newLogger(cfg *config.Config, verbose bool) (zerolog.Logger, io.Closer, error) {
	f, err := os.OpenFile(cfg.Path(config.LogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("could not open log file: %w", err)
	}
	var w io.Writer = f
	if verbose {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	return zerolog.New(w).Level(cfg.Level()).With().Timestamp().Logger(), f, nil
}

// warnPrices reports the tickers that could not be priced.
func (a *app) warnPrices(failed map[string]error) {
	for _, ticker := range slices.Sorted(maps.Keys(failed)) {
		fmt.Fprintf(a.stderr, "Warning: no price for %s, valued at cost: %v\n", ticker, failed[ticker])
	}
}
