package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/tradesim"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// YahooBaseURL is the public Yahoo Finance chart API.
const YahooBaseURL = "https://query2.finance.yahoo.com"

/*
Yahoo answers /v8/finance/chart/AAPL?interval=1m&range=1d with:

	{
	  "chart": {
	    "result": [{
	      "meta": {
	        "currency": "USD",
	        "symbol": "AAPL",
	        "regularMarketPrice": 189.84,
	        "regularMarketTime": 1700254800,
	        "longName": "Apple Inc.",
	        "currentTradingPeriod": {
	          "pre":     {"start": 1700211600, "end": 1700231400},
	          "regular": {"start": 1700231400, "end": 1700254800},
	          "post":    {"start": 1700254800, "end": 1700269200}
	        }
	      },
	      "timestamp": [...],
	      "indicators": {"quote": [{"close": [...]}]}
	    }],
	    "error": null
	  }
	}

and an unknown symbol with a 404 and a null result.
*/

// Yahoo fetches quotes from the Yahoo Finance chart API.
type Yahoo struct {
	BaseURL string
	Client  *http.Client
	Now     func() time.Time
	log     zerolog.Logger
}

// NewYahoo returns a Yahoo provider whose requests time out after timeout.
func NewYahoo(timeout time.Duration, log zerolog.Logger) *Yahoo {
	return &Yahoo{
		BaseURL: YahooBaseURL,
		Client:  &http.Client{Timeout: timeout},
		Now:     time.Now,
		log:     log.With().Str("provider", "yahoo").Logger(),
	}
}

// LatestQuote implements tradesim.QuoteFetcher.
func (y *Yahoo) LatestQuote(ctx context.Context, ticker string) (tradesim.Quote, error) {
	addr := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=1d", y.BaseURL, url.PathEscape(ticker))
	start := time.Now()

	var doc any
	if err := jwget(ctx, y.Client, addr, &doc); err != nil {
		y.log.Debug().Err(err).Str("ticker", ticker).Dur("elapsed", time.Since(start)).Msg("quote failed")
		return tradesim.Quote{}, fmt.Errorf("yahoo %s: %w", ticker, err)
	}
	q, err := y.parse(ticker, doc)
	if err != nil {
		return tradesim.Quote{}, err
	}
	y.log.Debug().Str("ticker", ticker).Float64("price", q.Price.Float()).Str("state", q.MarketState).Dur("elapsed", time.Since(start)).Msg("quote")
	return q, nil
}

func (y *Yahoo) parse(ticker string, doc any) (tradesim.Quote, error) {
	if desc, ok := jstring("$.chart.error.description", doc); ok {
		return tradesim.Quote{}, fmt.Errorf("yahoo %s: %w: %s", ticker, ErrInvalidTicker, desc)
	}
	const meta = "$.chart.result[0].meta"

	price, ok := jfloat(meta+".regularMarketPrice", doc)
	if !ok || price <= 0 {
		// no meta price: use the last non-zero close.
		price, ok = lastClose(doc)
	}
	if !ok || price <= 0 {
		return tradesim.Quote{}, fmt.Errorf("yahoo %s: %w: no price in response", ticker, ErrInvalidTicker)
	}
	value := decimal.NewFromFloat(price)

	cur, _ := jstring(meta+".currency", doc)
	value, cur = minorUnit(value, cur)

	now := y.Now()
	q := tradesim.Quote{
		Ticker:    ticker,
		Price:     tradesim.M(value, cur),
		Timestamp: now.UTC(),
		Source:    "yahoo",
	}
	if ts, ok := jfloat(meta+".regularMarketTime", doc); ok && ts > 0 {
		q.Timestamp = time.Unix(int64(ts), 0).UTC()
	}
	if name, ok := jstring(meta+".longName", doc); ok {
		q.Name = name
	} else if name, ok := jstring(meta+".shortName", doc); ok {
		q.Name = name
	}

	q.MarketState = tradingPeriod(doc, now)
	switch q.MarketState {
	case "":
		// no trading period in the response: use the calendar.
		q.MarketOpen = ExchangeHours(ticker, now)
		q.MarketState = "CLOSED"
		if q.MarketOpen {
			q.MarketState = "REGULAR"
		}
	case "REGULAR":
		q.MarketOpen = true
	}
	if Always(ticker) {
		q.MarketOpen, q.MarketState = true, "REGULAR"
	}
	return q, nil
}

// tradingPeriod returns REGULAR, PRE, POST or CLOSED from the current trading
// period of the response, or "" when the response has none.
func tradingPeriod(doc any, now time.Time) string {
	const period = "$.chart.result[0].meta.currentTradingPeriod"
	unix := now.Unix()
	in := func(name string) (bool, bool) {
		start, ok1 := jfloat(period+"."+name+".start", doc)
		end, ok2 := jfloat(period+"."+name+".end", doc)
		if !ok1 || !ok2 {
			return false, false
		}
		return int64(start) <= unix && unix < int64(end), true
	}
	regular, ok := in("regular")
	if !ok {
		return ""
	}
	if regular {
		return "REGULAR"
	}
	if pre, _ := in("pre"); pre {
		return "PRE"
	}
	if post, _ := in("post"); post {
		return "POST"
	}
	return "CLOSED"
}

// lastClose returns the last non-zero close of the intraday series.
func lastClose(doc any) (float64, bool) {
	v, err := jsonpath.Get("$.chart.result[0].indicators.quote[0].close", doc)
	if err != nil {
		return 0, false
	}
	list, _ := v.([]any)
	for i := len(list) - 1; i >= 0; i-- {
		if f, ok := list[i].(float64); ok && f > 0 {
			return f, true
		}
	}
	return 0, false
}

// minorUnit converts prices quoted in a minor unit (London quotes in pence,
// "GBp") to the major unit.
func minorUnit(value decimal.Decimal, cur string) (decimal.Decimal, string) {
	switch cur {
	case "GBp", "GBX":
		return value.Shift(-2), "GBP"
	case "ZAc":
		return value.Shift(-2), "ZAR"
	case "ILA":
		return value.Shift(-2), "ILS"
	}
	return value, strings.ToUpper(cur)
}
