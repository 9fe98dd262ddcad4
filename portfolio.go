package tradesim

import (
	"iter"
	"maps"
	"slices"
)

// Holding is a position in a single ticker.
type Holding struct {
	Quantity    Quantity `json:"quantity"`
	AverageCost Money    `json:"average_cost"` // per unit, average-cost basis
}

// Cost returns the total cost basis of the holding.
func (h Holding) Cost() Money { return h.AverageCost.Mul(h.Quantity) }

// Portfolio is the in-memory state of the simulated account: a cash balance and
// positions. It performs no I/O; see SavePortfolio and LoadPortfolio.
//
// Invariants: cash is never negative, every holding has a positive quantity
// (a position sold down to zero is removed).
type Portfolio struct {
	currency string
	cash     Money
	holdings map[string]Holding
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(cash Money) *Portfolio {
	return &Portfolio{
		currency: cash.Currency(),
		cash:     cash,
		holdings: make(map[string]Holding),
	}
}

// Currency returns the currency the portfolio is kept in.
func (p *Portfolio) Currency() string { return p.currency }

// Cash returns the cash balance.
func (p *Portfolio) Cash() Money { return p.cash }

// Holding returns the position in ticker, if any.
func (p *Portfolio) Holding(ticker string) (Holding, bool) {
	h, ok := p.holdings[ticker]
	return h, ok
}

// Position returns the quantity held in ticker, zero if none.
func (p *Portfolio) Position(ticker string) Quantity {
	return p.holdings[ticker].Quantity
}

// Tickers returns the held tickers in alphabetical order.
func (p *Portfolio) Tickers() []string {
	return slices.Sorted(maps.Keys(p.holdings))
}

// Holdings iterates over positions in alphabetical order of ticker.
func (p *Portfolio) Holdings() iter.Seq2[string, Holding] {
	return func(yield func(string, Holding) bool) {
		for _, t := range p.Tickers() {
			if !yield(t, p.holdings[t]) {
				return
			}
		}
	}
}

// Len returns the number of positions.
func (p *Portfolio) Len() int { return len(p.holdings) }

// Clone returns a deep copy of p.
func (p *Portfolio) Clone() *Portfolio {
	return &Portfolio{
		currency: p.currency,
		cash:     p.cash,
		holdings: maps.Clone(p.holdings),
	}
}

// Equal reports whether p and o hold the same cash and positions.
func (p *Portfolio) Equal(o *Portfolio) bool {
	if p.currency != o.currency || !p.cash.Equal(o.cash) || len(p.holdings) != len(o.holdings) {
		return false
	}
	for t, h := range p.holdings {
		oh, ok := o.holdings[t]
		if !ok || !h.Quantity.Equal(oh.Quantity) || !h.AverageCost.Equal(oh.AverageCost) {
			return false
		}
	}
	return true
}

// price converts price into the portfolio currency. A price without a
// currency is taken to be in the portfolio currency.
func (p *Portfolio) price(op, ticker string, price Money) (Money, error) {
	if price.Currency() != "" && p.currency != "" && price.Currency() != p.currency {
		return price, newError(Validation, op, ticker, "price in %s cannot be applied to a %s portfolio", price.Currency(), p.currency)
	}
	return price.In(p.currency), nil
}

// CheckBuy verifies that the cash balance covers quantity at price.
func (p *Portfolio) CheckBuy(ticker string, quantity Quantity, price Money) error {
	price, err := p.price("buy", ticker, price)
	if err != nil {
		return err
	}
	cost := price.Mul(quantity)
	if p.cash.LessThan(cost) {
		return newError(InsufficientFunds, "buy", ticker, "not enough cash to buy %s: need %s, have %s", quantity, cost, p.cash)
	}
	return nil
}

// CheckSell verifies that the position covers quantity.
func (p *Portfolio) CheckSell(ticker string, quantity Quantity) error {
	h, ok := p.holdings[ticker]
	if !ok {
		return newError(InsufficientHoldings, "sell", ticker, "no position held")
	}
	if h.Quantity.LessThan(quantity) {
		return newError(InsufficientHoldings, "sell", ticker, "not enough units to sell %s: holding %s", quantity, h.Quantity)
	}
	return nil
}

// ApplyBuy debits quantity*price from cash and adds quantity to the position,
// recomputing its average cost as the quantity-weighted mean of the old basis
// and price. It leaves p untouched when it returns an error.
func (p *Portfolio) ApplyBuy(ticker string, quantity Quantity, price Money) error {
	if err := p.CheckBuy(ticker, quantity, price); err != nil {
		return err
	}
	price = price.In(p.currency)
	p.cash = p.cash.Sub(price.Mul(quantity))

	h, ok := p.holdings[ticker]
	if !ok {
		p.holdings[ticker] = Holding{Quantity: quantity, AverageCost: price}
		return nil
	}
	total := h.Quantity.Add(quantity)
	h.AverageCost = h.Cost().Add(price.Mul(quantity)).Div(total)
	h.Quantity = total
	p.holdings[ticker] = h
	return nil
}

// ApplySell credits quantity*price to cash and reduces the position. The
// average cost is unchanged; a position reduced to zero is removed. It leaves
// p untouched when it returns an error.
func (p *Portfolio) ApplySell(ticker string, quantity Quantity, price Money) error {
	price, err := p.price("sell", ticker, price)
	if err != nil {
		return err
	}
	if err := p.CheckSell(ticker, quantity); err != nil {
		return err
	}
	p.cash = p.cash.Add(price.Mul(quantity))

	h := p.holdings[ticker]
	h.Quantity = h.Quantity.Sub(quantity)
	if h.Quantity.IsZero() {
		delete(p.holdings, ticker)
		return nil
	}
	p.holdings[ticker] = h
	return nil
}

// HoldingsValue values every position at its latest price, falling back to
// the average cost when prices has no entry for the ticker.
func (p *Portfolio) HoldingsValue(prices map[string]Money) Money {
	total := M(0, p.currency)
	for t, h := range p.holdings {
		price, ok := prices[t]
		if !ok {
			price = h.AverageCost
		}
		total = total.Add(price.In(p.currency).Mul(h.Quantity))
	}
	return total
}

// TotalValue returns cash plus HoldingsValue. It never fails on a missing price.
func (p *Portfolio) TotalValue(prices map[string]Money) Money {
	return p.cash.Add(p.HoldingsValue(prices))
}
