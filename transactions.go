package tradesim

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Side is the direction of a trade.
type Side string

// Trade sides, as persisted in the transaction log.
const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", newError(Validation, "", "", "unknown side %q, expected buy or sell", s)
	}
}

func (s Side) String() string { return string(s) }

// Transaction is the immutable record of an executed trade.
type Transaction struct {
	Timestamp time.Time // UTC
	Side      Side
	Ticker    string
	Quantity  Quantity
	Price     Money
	Total     Money // Quantity * Price
	CashAfter Money // cash balance once the trade is applied
	CostBasis Money // average cost per unit of the position a SELL came from
}

// NewTransaction records a trade of quantity at price executed at ts.
func NewTransaction(ts time.Time, side Side, ticker string, quantity Quantity, price, cashAfter Money) Transaction {
	return Transaction{
		Timestamp: ts.UTC(),
		Side:      side,
		Ticker:    ticker,
		Quantity:  quantity,
		Price:     price,
		Total:     price.Mul(quantity),
		CashAfter: cashAfter,
	}
}

// Equal reports whether t and o record the same trade.
func (t Transaction) Equal(o Transaction) bool {
	return t.Timestamp.Equal(o.Timestamp) &&
		t.Side == o.Side &&
		t.Ticker == o.Ticker &&
		t.Quantity.Equal(o.Quantity) &&
		t.Price.Equal(o.Price) &&
		t.Total.Equal(o.Total) &&
		t.CashAfter.Equal(o.CashAfter) &&
		t.CostBasis.Equal(o.CostBasis)
}

// Validate checks a record read back from storage.
func (t Transaction) Validate() error {
	if t.Side != Buy && t.Side != Sell {
		return fmt.Errorf("invalid side %q", t.Side)
	}
	if _, err := ValidateTicker(t.Ticker); err != nil {
		return err
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("%s %s: quantity must be positive, got %s", t.Side, t.Ticker, t.Quantity)
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("%s %s: price must be positive, got %s", t.Side, t.Ticker, t.Price.value)
	}
	if t.CashAfter.IsNegative() {
		return fmt.Errorf("%s %s: cash after trade is negative", t.Side, t.Ticker)
	}
	if t.CostBasis.IsNegative() {
		return fmt.Errorf("%s %s: cost basis is negative", t.Side, t.Ticker)
	}
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Transaction.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("timestamp", t.Timestamp.UTC().Format(time.RFC3339Nano))
	w.Append("side", t.Side)
	w.Append("ticker", t.Ticker)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price)
	w.Append("total", t.Total)
	w.Append("cash_after", t.CashAfter)
	if !t.CostBasis.IsZero() {
		w.Append("cost_basis", t.CostBasis)
	}
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Transaction.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var aux struct {
		Timestamp time.Time `json:"timestamp"`
		Side      Side      `json:"side"`
		Ticker    string    `json:"ticker"`
		Quantity  Quantity  `json:"quantity"`
		Price     Money     `json:"price"`
		Total     Money     `json:"total"`
		CashAfter Money     `json:"cash_after"`
		CostBasis Money     `json:"cost_basis"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Transaction{
		Timestamp: aux.Timestamp.UTC(),
		Side:      aux.Side,
		Ticker:    aux.Ticker,
		Quantity:  aux.Quantity,
		Price:     aux.Price,
		Total:     aux.Total,
		CashAfter: aux.CashAfter,
		CostBasis: aux.CostBasis,
	}
	return nil
}

// in sets the currency of every amount of t.
func (t Transaction) in(currency string) Transaction {
	t.Price = t.Price.In(currency)
	t.Total = t.Total.In(currency)
	t.CashAfter = t.CashAfter.In(currency)
	t.CostBasis = t.CostBasis.In(currency)
	return t
}
