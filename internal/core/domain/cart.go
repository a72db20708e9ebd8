package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a stored line item. At most one exists per (customer, product)
// pair; repeated adds merge into the same row.
type CartItem struct {
	CustomerID string
	ProductID  string
	Quantity   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CartLine is a line item joined with current catalog data for display.
// UnderStock means the stored quantity exceeds what the catalog can currently
// satisfy; the stored quantity is never silently corrected.
type CartLine struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	UnderStock  bool
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	CustomerID string
	Lines      []CartLine
}

// Subtotal is the sum of line totals before any discount.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}
