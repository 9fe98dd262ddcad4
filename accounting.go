package tradesim

import (
	"maps"
	"slices"
)

// TickerPL is the profit and loss of a single ticker.
type TickerPL struct {
	Ticker      string
	Quantity    Quantity // currently held
	AverageCost Money    // current average cost per unit
	LatestPrice Money    // equals AverageCost when the price is unknown
	PriceKnown  bool
	Realized    Money
	Unrealized  Money
}

// Total returns realized plus unrealized profit.
func (t TickerPL) Total() Money { return t.Realized.Add(t.Unrealized) }

// MarketValue returns the value of the position at LatestPrice.
func (t TickerPL) MarketValue() Money { return t.LatestPrice.Mul(t.Quantity) }

// PLSummary is the profit and loss of the whole portfolio.
type PLSummary struct {
	Currency   string
	Method     CostBasisMethod
	Realized   Money
	Unrealized Money
	Tickers    []TickerPL // alphabetical
	Unpriced   []string   // held tickers valued at their average cost
	Unmatched  []string   // tickers sold without a known cost basis, charged at the sale price
}

// Total returns realized plus unrealized profit.
func (s PLSummary) Total() Money { return s.Realized.Add(s.Unrealized) }

// Ticker returns the row of ticker, if any.
func (s PLSummary) Ticker(ticker string) (TickerPL, bool) {
	for _, t := range s.Tickers {
		if t.Ticker == ticker {
			return t, true
		}
	}
	return TickerPL{}, false
}

// replay is the cost basis of one ticker rebuilt from the transaction log.
type replay struct {
	quantity Quantity
	average  Money // per unit
	lots     lots
	realized Money
}

func (r *replay) buy(tx Transaction) {
	total := r.quantity.Add(tx.Quantity)
	r.average = r.average.Mul(r.quantity).Add(tx.Total).Div(total)
	r.quantity = total
	r.lots = append(r.lots, lot{Bought: tx.Timestamp, Quantity: tx.Quantity, Cost: tx.Total})
}

// sell charges tx at the replayed basis. Units sold beyond what the log
// bought are charged at fallback, or at the sale price when fallback is
// unknown, in which case sell returns false.
func (r *replay) sell(tx Transaction, method CostBasisMethod, fallback Money) bool {
	covered := tx.Quantity.Min(r.quantity)
	var cost Money
	switch method {
	case FIFO:
		cost = r.lots.fifoCostOfSelling(covered)
	default:
		cost = r.average.Mul(covered)
	}
	matched := true
	if missing := tx.Quantity.Sub(covered); missing.IsPositive() {
		if !fallback.IsPositive() {
			fallback, matched = tx.Price, false
		}
		cost = cost.Add(fallback.Mul(missing))
	}
	r.realized = r.realized.Add(tx.Total.Sub(cost))
	r.lots = r.lots.sell(covered)
	r.quantity = r.quantity.Sub(covered)
	if !r.quantity.IsPositive() {
		r.quantity = Quantity{}
		r.average = Money{}
	}
	return matched
}

// Summarize computes realized, unrealized and total profit.
//
// Realized profit is replayed from txs in order, so that every sale is charged
// at the cost basis in effect just before it. Units sold that txs never
// bought, like a position loaded from a file, are charged at the cost basis
// recorded in the sale, or else at the average cost p still holds them at.
// Failing both they yield no profit and the ticker is listed in Unmatched.
//
// Unrealized profit uses the current holdings of p valued at prices; a held
// ticker absent from prices is valued at its average cost (zero unrealized
// profit) and listed in Unpriced.
//
// Summarize never mutates its inputs and is deterministic.
func Summarize(txs []Transaction, p *Portfolio, prices map[string]Money, method CostBasisMethod) PLSummary {
	cur := p.Currency()
	replays := make(map[string]*replay)
	unmatched := make(map[string]struct{})
	for _, tx := range txs {
		r, ok := replays[tx.Ticker]
		if !ok {
			r = &replay{}
			replays[tx.Ticker] = r
		}
		tx = tx.in(cur)
		switch tx.Side {
		case Buy:
			r.buy(tx)
		case Sell:
			fallback := tx.CostBasis
			if h, ok := p.Holding(tx.Ticker); ok && !fallback.IsPositive() {
				fallback = h.AverageCost
			}
			if !r.sell(tx, method, fallback) {
				unmatched[tx.Ticker] = struct{}{}
			}
		}
	}

	tickers := make(map[string]struct{}, len(replays)+p.Len())
	for t := range replays {
		tickers[t] = struct{}{}
	}
	for t := range p.Holdings() {
		tickers[t] = struct{}{}
	}

	s := PLSummary{
		Currency:   cur,
		Method:     method,
		Realized:   M(0, cur),
		Unrealized: M(0, cur),
	}
	if len(unmatched) > 0 {
		s.Unmatched = slices.Sorted(maps.Keys(unmatched))
	}
	for _, t := range slices.Sorted(maps.Keys(tickers)) {
		row := TickerPL{Ticker: t, Realized: M(0, cur), Unrealized: M(0, cur), AverageCost: M(0, cur), LatestPrice: M(0, cur)}
		if r, ok := replays[t]; ok {
			row.Realized = r.realized.In(cur)
		}
		if h, ok := p.Holding(t); ok {
			row.Quantity = h.Quantity
			row.AverageCost = h.AverageCost
			price, known := prices[t]
			if known {
				row.LatestPrice = price.In(cur)
			} else {
				row.LatestPrice = h.AverageCost
				s.Unpriced = append(s.Unpriced, t)
			}
			row.PriceKnown = known
			basis := h.Cost()
			if r, ok := replays[t]; ok && method == FIFO && r.lots.quantity().Equal(h.Quantity) {
				basis = r.lots.cost().In(cur)
			}
			row.Unrealized = row.MarketValue().Sub(basis)
		}
		s.Realized = s.Realized.Add(row.Realized)
		s.Unrealized = s.Unrealized.Add(row.Unrealized)
		s.Tickers = append(s.Tickers, row)
	}
	return s
}
