package tradesim

import (
	"fmt"
	"strings"
)

// CostBasisMethod selects how realized profit is computed when replaying the
// transaction log.
type CostBasisMethod int

const (
	// AverageCost charges every sale at the quantity-weighted mean of all
	// acquisitions still held.
	AverageCost CostBasisMethod = iota
	// FIFO charges a sale against the oldest acquisitions first.
	FIFO
)

func (m CostBasisMethod) String() string {
	switch m {
	case AverageCost:
		return "average"
	case FIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// ParseCostBasisMethod parses "average" or "fifo".
func ParseCostBasisMethod(s string) (CostBasisMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "average", "avg", "":
		return AverageCost, nil
	case "fifo":
		return FIFO, nil
	default:
		return 0, fmt.Errorf("unknown cost basis method: %q", s)
	}
}
