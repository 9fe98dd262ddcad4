package renderer

import (
	"github.com/etnz/tradesim"
)

// Portfolio is the rendered view of a portfolio valued at known prices.
type Portfolio struct {
	Currency      string
	Cash          tradesim.Money
	HoldingsValue tradesim.Money
	TotalValue    tradesim.Money
	Positions     []Position // alphabetical
	Unpriced      []string   // tickers valued at their average cost
}

// Position is a single holding of the Portfolio view.
type Position struct {
	Ticker      string
	Quantity    tradesim.Quantity
	AverageCost tradesim.Money
	Price       tradesim.Money
	PriceKnown  bool
	Value       tradesim.Money
	Gain        tradesim.Money // Value minus cost
}

// NewPortfolio builds the view of p at prices. Holdings missing from prices
// are valued at their average cost.
func NewPortfolio(p *tradesim.Portfolio, prices map[string]tradesim.Money) *Portfolio {
	v := &Portfolio{
		Currency:      p.Currency(),
		Cash:          p.Cash(),
		HoldingsValue: p.HoldingsValue(prices),
		TotalValue:    p.TotalValue(prices),
	}
	for _, ticker := range p.Tickers() {
		h, _ := p.Holding(ticker)
		price, known := prices[ticker]
		if !known {
			price = h.AverageCost
			v.Unpriced = append(v.Unpriced, ticker)
		}
		price = price.In(p.Currency())
		value := price.Mul(h.Quantity)
		v.Positions = append(v.Positions, Position{
			Ticker:      ticker,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
			Price:       price,
			PriceKnown:  known,
			Value:       value,
			Gain:        value.Sub(h.Cost()),
		})
	}
	return v
}

// SnapshotHistory is the rendered view of the snapshot file.
type SnapshotHistory struct {
	Snapshots []tradesim.Snapshot
	Stats     tradesim.SnapshotStats
}

// NewSnapshotHistory returns the view of snaps with their statistics.
func NewSnapshotHistory(snaps []tradesim.Snapshot) *SnapshotHistory {
	return &SnapshotHistory{Snapshots: snaps, Stats: tradesim.ComputeSnapshotStats(snaps)}
}

// Report is the rendered view of a trading report.
type Report struct {
	*tradesim.Report
	Portfolio *Portfolio
}

// NewReport pairs r with the view of the portfolio it describes.
func NewReport(r *tradesim.Report, p *tradesim.Portfolio, prices map[string]tradesim.Money) *Report {
	return &Report{Report: r, Portfolio: NewPortfolio(p, prices)}
}
