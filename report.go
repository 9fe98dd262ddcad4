package tradesim

import (
	"time"
)

// Report is the trading report: the activity over a period, the current
// state of the portfolio and its profit.
//
// Profit figures always cover the whole history, since realized profit can
// only be replayed from the first trade.
type Report struct {
	GeneratedAt time.Time
	Since       time.Time // zero when the report covers all history
	From, To    time.Time // first and last trade of the period

	Trades        []Transaction // trades of the period, in order
	Buys, Sells   int
	Cash          Money
	HoldingsValue Money
	TotalValue    Money
	PL            PLSummary
	Snapshots     SnapshotStats // over the snapshots of the period
}

// NewReport builds the report of the trades and snapshots at or after since.
// A zero since selects everything.
func NewReport(now, since time.Time, txs []Transaction, snaps []Snapshot, p *Portfolio, prices map[string]Money, method CostBasisMethod) *Report {
	r := &Report{
		GeneratedAt:   now.UTC(),
		Since:         since,
		Cash:          p.Cash(),
		HoldingsValue: p.HoldingsValue(prices),
		TotalValue:    p.TotalValue(prices),
		PL:            Summarize(txs, p, prices, method),
	}
	for _, tx := range txs {
		if tx.Timestamp.Before(since) {
			continue
		}
		r.Trades = append(r.Trades, tx)
		switch tx.Side {
		case Buy:
			r.Buys++
		case Sell:
			r.Sells++
		}
	}
	if len(r.Trades) > 0 {
		r.From = r.Trades[0].Timestamp
		r.To = r.Trades[len(r.Trades)-1].Timestamp
	}
	var selected []Snapshot
	for _, s := range snaps {
		if !s.Timestamp.Before(since) {
			selected = append(selected, s)
		}
	}
	r.Snapshots = ComputeSnapshotStats(selected)
	return r
}

// Tail returns the last n elements of s, all of them when n <= 0.
func Tail[S ~[]E, E any](s S, n int) S {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
