package tradesim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Order is a request to trade.
type Order struct {
	Side     Side
	Ticker   string
	Quantity Quantity
	Limit    Money // zero for a market order
}

// IsLimit reports whether o is a limit order.
func (o Order) IsLimit() bool { return !o.Limit.IsZero() }

func (o Order) op() string { return strings.ToLower(string(o.Side)) }

// State is the progress of an order through the Trader.
type State int

// States of an order. Persisted is the terminal success, Rejected the
// terminal failure.
const (
	Received State = iota
	Validated
	Priced
	Authorized
	Applied
	Logged
	Persisted
	Rejected
)

func (s State) String() string {
	switch s {
	case Received:
		return "RECEIVED"
	case Validated:
		return "VALIDATED"
	case Priced:
		return "PRICED"
	case Authorized:
		return "AUTHORIZED"
	case Applied:
		return "APPLIED"
	case Logged:
		return "LOGGED"
	case Persisted:
		return "PERSISTED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// HistoryPolicy decides what happens when the transaction or snapshot record
// of an already applied trade cannot be appended.
type HistoryPolicy int

const (
	// BestEffort reports the failure as a warning of a successful trade.
	BestEffort HistoryPolicy = iota
	// Retry attempts the append again before falling back to BestEffort.
	Retry
	// Strict reports the failure as a File error alongside the trade result.
	Strict
)

func (p HistoryPolicy) String() string {
	switch p {
	case BestEffort:
		return "best-effort"
	case Retry:
		return "retry"
	case Strict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseHistoryPolicy parses "best-effort", "retry" or "strict".
func ParseHistoryPolicy(s string) (HistoryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best-effort", "":
		return BestEffort, nil
	case "retry":
		return Retry, nil
	case "strict":
		return Strict, nil
	default:
		return 0, fmt.Errorf("unknown history policy: %q", s)
	}
}

// TransactionAppender records executed trades.
type TransactionAppender interface {
	Append(Transaction) error
}

// SnapshotAppender records portfolio valuations.
type SnapshotAppender interface {
	Append(Snapshot) error
}

// Result is the outcome of an executed order.
type Result struct {
	OrderID     uuid.UUID
	State       State
	Transaction Transaction
	Snapshot    Snapshot
	Quote       Quote
	Warnings    []error // persistence failures that did not undo the trade
}

// Executed reports whether the order changed the portfolio.
func (r Result) Executed() bool { return r.State >= Applied && r.State != Rejected }

// TraderOptions are the collaborators of a Trader. Only Quotes is required.
type TraderOptions struct {
	Quotes       QuoteFetcher
	Transactions TransactionAppender    // nil disables the transaction log
	Snapshots    SnapshotAppender       // nil disables snapshots
	Autosave     func(*Portfolio) error // called after every applied trade

	// MarketHours overrides the open flag of quotes when set.
	MarketHours        MarketHours
	EnforceMarketHours bool

	HistoryPolicy  HistoryPolicy
	HistoryRetries int

	Logger zerolog.Logger
	Now    func() time.Time // defaults to time.Now
}

// Trader executes orders against a Portfolio: it validates them, prices them
// with the latest quote, applies them, then records and persists the result.
//
// A Trader is not safe for concurrent use. Hosts serving concurrent requests
// must serialize all calls on a given Trader.
type Trader struct {
	opts       TraderOptions
	portfolio  *Portfolio
	lastPrices map[string]Money
	log        zerolog.Logger
}

// NewTrader returns a Trader managing p.
func NewTrader(p *Portfolio, opts TraderOptions) *Trader {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Trader{
		opts:       opts,
		portfolio:  p,
		lastPrices: make(map[string]Money),
		log:        opts.Logger.With().Str("component", "trader").Logger(),
	}
}

// Portfolio returns a copy of the managed portfolio.
func (t *Trader) Portfolio() *Portfolio { return t.portfolio.Clone() }

// Replace swaps the managed portfolio, e.g. after loading it from disk.
func (t *Trader) Replace(p *Portfolio) {
	t.portfolio = p
	clear(t.lastPrices)
}

// Save persists the portfolio with the autosave hook.
func (t *Trader) Save() error {
	if t.opts.Autosave == nil {
		return nil
	}
	return t.opts.Autosave(t.portfolio)
}

// LastPrices returns a copy of the latest known price of each ticker.
func (t *Trader) LastPrices() map[string]Money {
	prices := make(map[string]Money, len(t.lastPrices))
	for k, v := range t.lastPrices {
		prices[k] = v
	}
	return prices
}

// Quote fetches the latest quote of ticker.
func (t *Trader) Quote(ctx context.Context, ticker string) (Quote, error) {
	ticker, err := ValidateTicker(ticker)
	if err != nil {
		err.(*Error).Op = "quote"
		return Quote{}, err
	}
	q, err := t.opts.Quotes.LatestQuote(ctx, ticker)
	if err != nil {
		return Quote{}, quoteError("quote", ticker, err)
	}
	if err := t.checkQuote("quote", ticker, q); err != nil {
		return Quote{}, err
	}
	t.lastPrices[ticker] = q.Price.In(t.portfolio.Currency())
	return q, nil
}

// RefreshPrices fetches the latest price of every held ticker. Prices are
// checked like the quotes of an order. Tickers that cannot be priced keep
// their previous price, if any, and are returned in failed.
func (t *Trader) RefreshPrices(ctx context.Context) (prices map[string]Money, failed map[string]error) {
	fresh, failed := LatestPrices(ctx, t.opts.Quotes, t.portfolio.Tickers())
	for ticker, price := range fresh {
		if err := t.checkQuote("quote", ticker, Quote{Ticker: ticker, Price: price}); err != nil {
			failed[ticker] = err
			continue
		}
		t.lastPrices[ticker] = price.In(t.portfolio.Currency())
	}
	for ticker, err := range failed {
		t.log.Warn().Err(err).Str("ticker", ticker).Msg("price refresh failed")
	}
	return t.LastPrices(), failed
}

// TakeSnapshot values the portfolio at freshly fetched prices and appends the
// snapshot.
func (t *Trader) TakeSnapshot(ctx context.Context) (Snapshot, error) {
	prices, _ := t.RefreshPrices(ctx)
	snap := TakeSnapshot(t.opts.Now(), t.portfolio, prices)
	if t.opts.Snapshots == nil {
		return snap, nil
	}
	if err := t.opts.Snapshots.Append(snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Execute runs order through RECEIVED, VALIDATED, PRICED, AUTHORIZED,
// APPLIED, LOGGED and PERSISTED.
//
// Any failure before APPLIED rejects the order and leaves the portfolio and
// its history untouched. Once applied, the trade stands: failures to record
// it are reported according to the HistoryPolicy, and a failed autosave is
// returned as a File error together with the successful Result.
func (t *Trader) Execute(ctx context.Context, order Order) (Result, error) {
	res := Result{OrderID: uuid.New(), State: Received}
	log := t.log.With().Str("order_id", res.OrderID.String()).Logger()
	log.Debug().Str("state", res.State.String()).Str("side", string(order.Side)).Str("ticker", order.Ticker).Stringer("quantity", order.Quantity).Msg("order")

	reject := func(err error) (Result, error) {
		res.State = Rejected
		log.Info().Str("state", res.State.String()).Str("kind", KindOf(err).String()).Err(err).Msg("order rejected")
		return res, err
	}
	advance := func(s State) {
		res.State = s
		log.Debug().Str("state", s.String()).Msg("order")
	}

	order, err := t.validate(order)
	if err != nil {
		return reject(err)
	}
	advance(Validated)

	q, err := t.opts.Quotes.LatestQuote(ctx, order.Ticker)
	if err != nil {
		if errors.Is(err, ErrQuoteMarketClosed) && !order.IsLimit() {
			return reject(&Error{Kind: MarketClosed, Op: order.op(), Ticker: order.Ticker, Msg: "market is closed", Err: err})
		}
		return reject(quoteError(order.op(), order.Ticker, err))
	}
	if err := t.checkQuote(order.op(), order.Ticker, q); err != nil {
		return reject(err)
	}
	res.Quote = q
	t.lastPrices[order.Ticker] = q.Price.In(t.portfolio.Currency())

	price, err := t.executionPrice(order, q)
	if err != nil {
		return reject(err)
	}
	advance(Priced)

	switch order.Side {
	case Buy:
		err = t.portfolio.CheckBuy(order.Ticker, order.Quantity, price)
	case Sell:
		err = t.portfolio.CheckSell(order.Ticker, order.Quantity)
	}
	if err != nil {
		return reject(err)
	}
	advance(Authorized)

	basis := Money{}
	if h, ok := t.portfolio.Holding(order.Ticker); ok && order.Side == Sell {
		basis = h.AverageCost
	}

	// Point of no return.
	switch order.Side {
	case Buy:
		err = t.portfolio.ApplyBuy(order.Ticker, order.Quantity, price)
	case Sell:
		err = t.portfolio.ApplySell(order.Ticker, order.Quantity, price)
	}
	if err != nil {
		return reject(err)
	}
	now := t.opts.Now()
	res.Transaction = NewTransaction(now, order.Side, order.Ticker, order.Quantity, price.In(t.portfolio.Currency()), t.portfolio.Cash())
	if basis.IsPositive() {
		res.Transaction.CostBasis = basis.In(t.portfolio.Currency())
	}
	advance(Applied)
	log.Info().
		Str("side", string(order.Side)).
		Str("ticker", order.Ticker).
		Stringer("quantity", order.Quantity).
		Stringer("price", res.Transaction.Price).
		Stringer("cash_after", res.Transaction.CashAfter).
		Msg("trade executed")

	var failures []error
	record := func(what string, appendFn func() error) {
		err := t.appendWithPolicy(appendFn)
		if err == nil {
			return
		}
		log.Warn().Err(err).Msgf("could not record %s", what)
		if t.opts.HistoryPolicy == Strict {
			failures = append(failures, err)
			return
		}
		res.Warnings = append(res.Warnings, err)
	}

	if t.opts.Transactions != nil {
		record("transaction", func() error { return t.opts.Transactions.Append(res.Transaction) })
	}
	res.Snapshot = TakeSnapshot(now, t.portfolio, t.lastPrices)
	if t.opts.Snapshots != nil {
		record("snapshot", func() error { return t.opts.Snapshots.Append(res.Snapshot) })
	}
	advance(Logged)

	if t.opts.Autosave != nil {
		if err := t.opts.Autosave(t.portfolio); err != nil {
			log.Error().Err(err).Msg("autosave failed")
			failures = append([]error{err}, failures...)
		}
	}
	if len(failures) > 0 {
		res.Warnings = append(res.Warnings, failures[1:]...)
		return res, asFileError("record trade", failures[0])
	}
	advance(Persisted)
	return res, nil
}

// validate normalizes order or returns a Validation error.
func (t *Trader) validate(order Order) (Order, error) {
	if order.Side != Buy && order.Side != Sell {
		return order, newError(Validation, "", "", "unknown side %q, expected BUY or SELL", order.Side)
	}
	ticker, err := ValidateTicker(order.Ticker)
	if err != nil {
		err.(*Error).Op = order.op()
		return order, err
	}
	order.Ticker = ticker
	if _, err := ValidateQuantity(order.Quantity); err != nil {
		err.(*Error).Op, err.(*Error).Ticker = order.op(), ticker
		return order, err
	}
	if order.IsLimit() {
		if _, err := ValidatePrice(order.Limit); err != nil {
			e := err.(*Error)
			e.Op, e.Ticker, e.Msg = order.op(), ticker, "limit "+e.Msg
			return order, e
		}
	}
	return order, nil
}

// checkQuote rejects quotes that cannot price an order.
func (t *Trader) checkQuote(op, ticker string, q Quote) error {
	if !q.Price.IsPositive() {
		return &Error{Kind: DataFetch, Op: op, Ticker: ticker, Msg: fmt.Sprintf("provider returned an invalid price %s", q.Price.value)}
	}
	if q.Price.Currency() != "" && q.Price.Currency() != t.portfolio.Currency() {
		return newError(Validation, op, ticker, "quoted in %s, portfolio is in %s", q.Price.Currency(), t.portfolio.Currency())
	}
	return nil
}

// executionPrice returns the price order executes at given the quote q.
func (t *Trader) executionPrice(order Order, q Quote) (Money, error) {
	if !order.IsLimit() {
		if t.opts.EnforceMarketHours && !t.marketOpen(order.Ticker, q) {
			msg := "market is closed"
			if q.MarketState != "" {
				msg += " (" + q.MarketState + ")"
			}
			return Money{}, newError(MarketClosed, order.op(), order.Ticker, "%s", msg)
		}
		return q.Price, nil
	}
	limit := order.Limit.In(t.portfolio.Currency())
	switch order.Side {
	case Buy:
		if q.Price.GreaterThan(limit) {
			return Money{}, newError(LimitNotReachable, order.op(), order.Ticker, "quote %s is above the limit %s", q.Price, limit)
		}
	case Sell:
		if q.Price.LessThan(limit) {
			return Money{}, newError(LimitNotReachable, order.op(), order.Ticker, "quote %s is below the limit %s", q.Price, limit)
		}
	}
	return limit, nil
}

func (t *Trader) marketOpen(ticker string, q Quote) bool {
	if t.opts.MarketHours != nil {
		return t.opts.MarketHours(ticker, t.opts.Now())
	}
	return q.MarketOpen
}

// appendWithPolicy runs appendFn once, or 1+HistoryRetries times under Retry.
func (t *Trader) appendWithPolicy(appendFn func() error) error {
	attempts := 1
	if t.opts.HistoryPolicy == Retry {
		attempts += max(t.opts.HistoryRetries, 0)
	}
	var err error
	for range attempts {
		if err = appendFn(); err == nil {
			return nil
		}
	}
	return err
}

// quoteError classifies a failure reported by a QuoteFetcher.
func quoteError(op, ticker string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind != Unexpected {
		return err
	}
	msg := "market data unavailable"
	switch {
	case errors.Is(err, ErrQuoteInvalidTicker):
		msg = "unknown ticker"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "market data request timed out"
	case errors.Is(err, ErrQuoteMarketClosed):
		msg = "no quote while the market is closed"
	}
	return &Error{Kind: DataFetch, Op: op, Ticker: ticker, Msg: msg, Err: err}
}

// asFileError makes sure err carries the File kind.
func asFileError(op string, err error) error {
	if KindOf(err) == File {
		return err
	}
	return fileError(op, err)
}
