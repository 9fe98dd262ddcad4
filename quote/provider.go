package quote

import (
	"fmt"
	"time"

	"github.com/etnz/tradesim"
	"github.com/rs/zerolog"
)

// Provider names.
const (
	ProviderYahoo     = "yahoo"
	ProviderEODHD     = "eodhd"
	ProviderOffline   = "offline"
	ProviderTradegate = "tradegate"
)

// Options select and tune the market-data stack.
type Options struct {
	Provider        string        // yahoo, eodhd, tradegate or offline
	Timeout         time.Duration // per request, at most MaxTimeout
	CacheTTL        time.Duration // zero disables the cache
	OfflineFallback bool          // fall back to the mock prices when the live provider is unreachable
	MockPricesFile  string
	EODHDAPIKey     string
	Currency        string // for providers that do not report one
}

// New builds the QuoteFetcher described by opts:
// live provider, then optional offline fallback, then optional cache.
func New(opts Options, log zerolog.Logger) (tradesim.QuoteFetcher, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		return nil, fmt.Errorf("quote timeout %v exceeds %v", timeout, MaxTimeout)
	}

	var live tradesim.QuoteFetcher
	switch opts.Provider {
	case ProviderYahoo, "":
		live = NewYahoo(timeout, log)
	case ProviderEODHD:
		if opts.EODHDAPIKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", ProviderEODHD)
		}
		live = NewEODHD(opts.EODHDAPIKey, opts.Currency, timeout, log)
	case ProviderTradegate:
		live = NewTradegate(timeout, log)
	case ProviderOffline:
		if opts.MockPricesFile == "" {
			return nil, fmt.Errorf("provider %q requires a mock prices file", ProviderOffline)
		}
		return NewOffline(opts.MockPricesFile, opts.Currency, log), nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", opts.Provider)
	}

	if opts.OfflineFallback && opts.MockPricesFile != "" {
		live = NewFallback(live, NewOffline(opts.MockPricesFile, opts.Currency, log), log)
	}
	if opts.CacheTTL > 0 {
		live = NewCache(live, opts.CacheTTL)
	}
	return live, nil
}
