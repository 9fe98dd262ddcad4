package tradesim

import (
	"time"
)

// lot is a single purchase still (at least partly) held, used for FIFO
// cost basis.
type lot struct {
	Bought   time.Time
	Quantity Quantity
	Cost     Money // total cost of the lot (quantity * price)
}

type lots []lot

// quantity returns the units held across all lots.
func (l lots) quantity() Quantity {
	var q Quantity
	for _, x := range l {
		q = q.Add(x.Quantity)
	}
	return q
}

// cost returns the total cost of all lots.
func (l lots) cost() Money {
	var c Money
	for _, x := range l {
		c = c.Add(x.Cost)
	}
	return c
}

// fifoCostOfSelling returns the cost of selling quantityToSell, oldest lots first.
func (l lots) fifoCostOfSelling(quantityToSell Quantity) Money {
	var sold Money
	for _, current := range l {
		if current.Quantity.GreaterThan(quantityToSell) {
			return sold.Add(current.Cost.Mul(quantityToSell).Div(current.Quantity))
		}
		sold = sold.Add(current.Cost)
		quantityToSell = quantityToSell.Sub(current.Quantity)
	}
	return sold
}

// sell returns the lots left once quantityToSell is removed, oldest first.
func (l lots) sell(quantityToSell Quantity) lots {
	var remaining lots
	for _, current := range l {
		if quantityToSell.IsZero() {
			remaining = append(remaining, current)
			continue
		}
		if current.Quantity.GreaterThan(quantityToSell) {
			soldCost := current.Cost.Mul(quantityToSell).Div(current.Quantity)
			remaining = append(remaining, lot{
				Bought:   current.Bought,
				Quantity: current.Quantity.Sub(quantityToSell),
				Cost:     current.Cost.Sub(soldCost),
			})
			quantityToSell = Quantity{}
			continue
		}
		quantityToSell = quantityToSell.Sub(current.Quantity)
	}
	return remaining
}
