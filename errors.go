package tradesim

import (
	"errors"
	"fmt"
)

// Kind classifies every error the trading engine reports. The set is closed:
// anything that is not produced by this package is Unexpected.
type Kind int

const (
	// Unexpected is the fallback for errors outside the taxonomy.
	Unexpected Kind = iota
	// Validation reports bad user input (ticker, quantity, price).
	Validation
	// InsufficientFunds reports a buy costing more than the cash balance.
	InsufficientFunds
	// InsufficientHoldings reports a sell of more units than held.
	InsufficientHoldings
	// DataFetch reports unavailable market data: network, timeout, unknown ticker.
	DataFetch
	// MarketClosed reports a market order outside trading hours.
	MarketClosed
	// LimitNotReachable reports a limit order the current quote does not satisfy.
	LimitNotReachable
	// File reports a persistence read or write failure.
	File
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case InsufficientFunds:
		return "insufficient-funds"
	case InsufficientHoldings:
		return "insufficient-holdings"
	case DataFetch:
		return "data-fetch"
	case MarketClosed:
		return "market-closed"
	case LimitNotReachable:
		return "limit-not-reachable"
	case File:
		return "file"
	default:
		return "unexpected"
	}
}

// Error is the error type returned by the trading engine.
type Error struct {
	Kind   Kind
	Op     string // operation that failed, e.g. "buy", "save portfolio"
	Ticker string // optional
	Msg    string
	Err    error // optional underlying cause
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	switch {
	case e.Op != "" && e.Ticker != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Ticker, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so that the sentinel values below
// can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrValidation           = &Error{Kind: Validation}
	ErrInsufficientFunds    = &Error{Kind: InsufficientFunds}
	ErrInsufficientHoldings = &Error{Kind: InsufficientHoldings}
	ErrDataFetch            = &Error{Kind: DataFetch}
	ErrMarketClosed         = &Error{Kind: MarketClosed}
	ErrLimitNotReachable    = &Error{Kind: LimitNotReachable}
	ErrFile                 = &Error{Kind: File}
)

// Failures a market-data collaborator reports. Providers wrap them with %w.
var (
	ErrQuoteInvalidTicker = errors.New("invalid ticker")
	ErrQuoteNetwork       = errors.New("market data unavailable")
	ErrQuoteMarketClosed  = errors.New("market closed")
)

// KindOf returns the Kind of err, or Unexpected when err does not come from
// the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

func newError(kind Kind, op, ticker, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Ticker: ticker, Msg: fmt.Sprintf(format, args...)}
}

func fileError(op string, err error) *Error {
	return &Error{Kind: File, Op: op, Err: err}
}
