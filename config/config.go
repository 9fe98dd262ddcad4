// Package config loads the simulator settings: built-in defaults, then an
// optional TOML file, then a .env file, then TRADESIM_* environment
// variables. Command-line flags are applied last by the caller.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/quote"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// File names inside the data directory.
const (
	PortfolioFile    = "portfolio.json"
	TransactionsFile = "transactions.json"
	SnapshotsFile    = "snapshots.csv"
	MockPricesFile   = "mock_prices.json"
	LogFile          = "tradesim.log"
)

// Config is the complete simulator configuration.
type Config struct {
	DataDir      string          `toml:"data_dir"`
	StartingCash decimal.Decimal `toml:"starting_cash"`
	Currency     string          `toml:"currency"`
	CostBasis    string          `toml:"cost_basis"` // average or fifo

	Provider        string   `toml:"provider"` // yahoo, eodhd, tradegate or offline
	OfflineFallback bool     `toml:"offline_fallback"`
	MockPricesFile  string   `toml:"mock_prices_file"` // defaults to <data_dir>/mock_prices.json
	QuoteTimeout    Duration `toml:"quote_timeout"`
	QuoteCacheTTL   Duration `toml:"quote_cache_ttl"`
	EODHDAPIKey     string   `toml:"eodhd_api_key"`

	EnforceMarketHours bool   `toml:"enforce_market_hours"`
	HistoryPolicy      string `toml:"history_policy"` // best-effort, retry or strict
	HistoryRetries     int    `toml:"history_retries"`

	LogLevel string `toml:"log_level"`

	Addr             string   `toml:"addr"`
	CORSOrigins      []string `toml:"cors_origins"`
	SnapshotSchedule string   `toml:"snapshot_schedule"` // cron expression, empty disables
}

// Duration is a time.Duration decoded from strings like "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:            "data",
		StartingCash:       decimal.NewFromInt(100000),
		Currency:           "USD",
		CostBasis:          "average",
		Provider:           quote.ProviderYahoo,
		QuoteTimeout:       Duration{quote.DefaultTimeout},
		QuoteCacheTTL:      Duration{30 * time.Second},
		EnforceMarketHours: true,
		HistoryPolicy:      "best-effort",
		HistoryRetries:     2,
		LogLevel:           "info",
		Addr:               "127.0.0.1:5000",
		CORSOrigins:        []string{"*"},
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, "data_dir must not be empty")
	}
	if c.StartingCash.IsNegative() {
		errs = append(errs, fmt.Sprintf("starting_cash must be >= 0, got %s", c.StartingCash))
	}
	if err := tradesim.ValidateCurrency(c.Currency); err != nil {
		errs = append(errs, "currency: "+err.Error())
	}
	if _, err := tradesim.ParseCostBasisMethod(c.CostBasis); err != nil {
		errs = append(errs, "cost_basis: "+err.Error())
	}

	switch c.Provider {
	case quote.ProviderYahoo, quote.ProviderOffline:
	case quote.ProviderEODHD:
		if c.EODHDAPIKey == "" {
			errs = append(errs, "eodhd_api_key is required with provider eodhd")
		}
	case quote.ProviderTradegate:
		if c.Currency != "EUR" {
			errs = append(errs, fmt.Sprintf("provider tradegate quotes in EUR, currency must be EUR, got %q", c.Currency))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown provider %q (valid: yahoo, eodhd, tradegate, offline)", c.Provider))
	}
	if c.QuoteTimeout.Duration <= 0 || c.QuoteTimeout.Duration > quote.MaxTimeout {
		errs = append(errs, fmt.Sprintf("quote_timeout must be in (0, %v], got %v", quote.MaxTimeout, c.QuoteTimeout.Duration))
	}
	if c.QuoteCacheTTL.Duration < 0 {
		errs = append(errs, "quote_cache_ttl must be >= 0")
	}

	if _, err := tradesim.ParseHistoryPolicy(c.HistoryPolicy); err != nil {
		errs = append(errs, "history_policy: "+err.Error())
	}
	if c.HistoryRetries < 0 {
		errs = append(errs, "history_retries must be >= 0")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Addr == "" {
		errs = append(errs, "addr must not be empty")
	}
	if c.SnapshotSchedule != "" {
		if _, err := cron.ParseStandard(c.SnapshotSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("snapshot_schedule %q: %v", c.SnapshotSchedule, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Path returns the path of name inside the data directory.
func (c *Config) Path(name string) string { return filepath.Join(c.DataDir, name) }

// MockPrices returns the path of the mock prices file.
func (c *Config) MockPrices() string {
	if c.MockPricesFile != "" {
		return c.MockPricesFile
	}
	return c.Path(MockPricesFile)
}

// Cash returns the starting cash in the portfolio currency.
func (c *Config) Cash() tradesim.Money { return tradesim.M(c.StartingCash, c.Currency) }

// Method returns the cost basis method. The config must be valid.
func (c *Config) Method() tradesim.CostBasisMethod {
	m, _ := tradesim.ParseCostBasisMethod(c.CostBasis)
	return m
}

// Policy returns the history policy. The config must be valid.
func (c *Config) Policy() tradesim.HistoryPolicy {
	p, _ := tradesim.ParseHistoryPolicy(c.HistoryPolicy)
	return p
}

// Level returns the log level. The config must be valid.
func (c *Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

// QuoteOptions returns the options of the market-data stack.
func (c *Config) QuoteOptions() quote.Options {
	return quote.Options{
		Provider:        c.Provider,
		Timeout:         c.QuoteTimeout.Duration,
		CacheTTL:        c.QuoteCacheTTL.Duration,
		OfflineFallback: c.OfflineFallback,
		MockPricesFile:  c.MockPrices(),
		EODHDAPIKey:     c.EODHDAPIKey,
		Currency:        c.Currency,
	}
}
