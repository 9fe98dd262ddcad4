package renderer

import (
	"fmt"

	"github.com/etnz/tradesim"
)

// Transaction renders a transaction as a sentence.
func Transaction(tx tradesim.Transaction) string {
	switch tx.Side {
	case tradesim.Buy:
		return fmt.Sprintf("Bought %s %s at %s for %s, cash is now %s", tx.Quantity, tx.Ticker, tx.Price, tx.Total, tx.CashAfter)
	case tradesim.Sell:
		return fmt.Sprintf("Sold %s %s at %s for %s, cash is now %s", tx.Quantity, tx.Ticker, tx.Price, tx.Total, tx.CashAfter)
	default:
		return string(tx.Side)
	}
}
