package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/etnz/tradesim"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TradegateBaseURL is the public Tradegate Exchange refresh endpoint.
const TradegateBaseURL = "https://www.tradegate.de"

/*
Tradegate answers /refresh.php?isin=US0378331005 with:

	{"bid": 160.1, "ask": 160.4, "last": "160,25", "bidsize": 100, ...}

Values are sometimes strings with a decimal comma, and "last" is "./." when
nothing has traded yet today.
*/

// tradegateSession is the trading session of Tradegate Exchange.
var tradegateSession = session{"Europe/Berlin", hm(8, 0), hm(22, 0)}

var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// Tradegate fetches EUR quotes of securities identified by their ISIN from
// Tradegate Exchange.
type Tradegate struct {
	BaseURL string
	Client  *http.Client
	Now     func() time.Time
	log     zerolog.Logger
}

// NewTradegate returns a Tradegate provider whose requests time out after timeout.
func NewTradegate(timeout time.Duration, log zerolog.Logger) *Tradegate {
	return &Tradegate{
		BaseURL: TradegateBaseURL,
		Client:  &http.Client{Timeout: timeout},
		Now:     time.Now,
		log:     log.With().Str("provider", "tradegate").Logger(),
	}
}

// LatestQuote implements tradesim.QuoteFetcher. ticker must be an ISIN.
func (g *Tradegate) LatestQuote(ctx context.Context, ticker string) (tradesim.Quote, error) {
	if !isinPattern.MatchString(ticker) {
		return tradesim.Quote{}, fmt.Errorf("tradegate %s: %w: not an ISIN", ticker, ErrInvalidTicker)
	}
	addr := fmt.Sprintf("%s/refresh.php?isin=%s", g.BaseURL, url.QueryEscape(ticker))

	var doc map[string]any
	if err := jwget(ctx, g.Client, addr, &doc); err != nil {
		return tradesim.Quote{}, fmt.Errorf("tradegate %s: %w", ticker, err)
	}

	// last is the last trade, it moves slower than the bid but the bid can be 0.
	price, ok := tradegateValue(doc["last"])
	if !ok {
		g.log.Debug().Str("ticker", ticker).Msg("'last' is empty, falling back to 'bid'")
		price, ok = tradegateValue(doc["bid"])
	}
	if !ok {
		return tradesim.Quote{}, fmt.Errorf("tradegate %s: %w: no trade and no bid", ticker, ErrInvalidTicker)
	}

	now := g.Now()
	q := tradesim.Quote{
		Ticker:      ticker,
		Price:       tradesim.M(price, "EUR"),
		Timestamp:   now.UTC(),
		MarketOpen:  tradegateSession.contains(now),
		MarketState: "CLOSED",
		Source:      "tradegate",
	}
	if q.MarketOpen {
		q.MarketState = "REGULAR"
	}
	g.log.Debug().Str("ticker", ticker).Str("price", price.String()).Str("state", q.MarketState).Msg("quote")
	return q, nil
}

// tradegateValue reads a positive price that may be a number or a string
// with a decimal comma.
func tradegateValue(v any) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch v := v.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case string:
		s := strings.ReplaceAll(strings.ReplaceAll(v, " ", ""), ",", ".")
		var err error
		if d, err = decimal.NewFromString(s); err != nil {
			return decimal.Zero, false
		}
	default:
		return decimal.Zero, false
	}
	return d, d.IsPositive()
}
