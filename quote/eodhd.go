package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/etnz/tradesim"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EODHDBaseURL is the EODHD API.
const EODHDBaseURL = "https://eodhd.com/api"

// EODHD fetches delayed real-time quotes from eodhd.com. The API does not
// report currencies nor trading sessions: prices are taken to be in Currency
// and the market state comes from ExchangeHours.
type EODHD struct {
	BaseURL  string
	APIKey   string
	Currency string
	Client   *http.Client
	Now      func() time.Time
	log      zerolog.Logger
}

// NewEODHD returns an EODHD provider. You can get an API key at https://eodhd.com/
func NewEODHD(apiKey, currency string, timeout time.Duration, log zerolog.Logger) *EODHD {
	return &EODHD{
		BaseURL:  EODHDBaseURL,
		APIKey:   apiKey,
		Currency: currency,
		Client:   &http.Client{Timeout: timeout},
		Now:      time.Now,
		log:      log.With().Str("provider", "eodhd").Logger(),
	}
}

// eodhdSymbol converts a Yahoo-style ticker to the EODHD code.
//
//	AAPL     -> AAPL.US
//	BTC-USD  -> BTC-USD.CC
//	EURUSD=X -> EURUSD.FOREX
//	SAP.DE   -> SAP.XETRA
func eodhdSymbol(ticker string) string {
	switch {
	case strings.HasSuffix(ticker, "=X"):
		return strings.TrimSuffix(ticker, "=X") + ".FOREX"
	case Always(ticker):
		return ticker + ".CC"
	}
	exchanges := map[string]string{
		".DE": ".XETRA", ".L": ".LSE", ".PA": ".PA", ".AS": ".AS", ".ST": ".ST",
		".TO": ".TO", ".F": ".F", ".OL": ".OL", ".CO": ".CO", ".HE": ".HE",
	}
	if s := suffix(ticker); s != "" {
		if code, ok := exchanges[s]; ok {
			return strings.TrimSuffix(ticker, s) + code
		}
		return ticker
	}
	return ticker + ".US"
}

// LatestQuote implements tradesim.QuoteFetcher.
func (e *EODHD) LatestQuote(ctx context.Context, ticker string) (tradesim.Quote, error) {
	if e.APIKey == "" {
		return tradesim.Quote{}, fmt.Errorf("eodhd %s: %w: missing API key", ticker, ErrNetwork)
	}
	// {"code":"AAPL.US","timestamp":1700254800,"gmtoffset":0,"open":189.57,"high":190.38,
	//  "low":188.57,"close":189.69,"volume":50922700,"previousClose":189.71,"change":-0.02}
	addr := fmt.Sprintf("%s/real-time/%s?fmt=json&api_token=%s", e.BaseURL, url.PathEscape(eodhdSymbol(ticker)), url.QueryEscape(e.APIKey))

	var doc any
	if err := jwget(ctx, e.Client, addr, &doc); err != nil {
		e.log.Debug().Err(err).Str("ticker", ticker).Msg("quote failed")
		return tradesim.Quote{}, fmt.Errorf("eodhd %s: %w", ticker, err)
	}
	// unknown codes come back with "NA" values.
	price, ok := jfloat("$.close", doc)
	if !ok || price <= 0 {
		return tradesim.Quote{}, fmt.Errorf("eodhd %s: %w: no price in response", ticker, ErrInvalidTicker)
	}
	now := e.Now()
	q := tradesim.Quote{
		Ticker:     ticker,
		Price:      tradesim.M(decimal.NewFromFloat(price), e.Currency),
		Timestamp:  now.UTC(),
		MarketOpen: ExchangeHours(ticker, now),
		Source:     "eodhd",
	}
	if ts, ok := jfloat("$.timestamp", doc); ok && ts > 0 {
		q.Timestamp = time.Unix(int64(ts), 0).UTC()
	}
	q.MarketState = "CLOSED"
	if q.MarketOpen {
		q.MarketState = "REGULAR"
	}
	e.log.Debug().Str("ticker", ticker).Float64("price", price).Msg("quote")
	return q, nil
}
