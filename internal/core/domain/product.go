package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	InStock       bool
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Available reports whether the product can satisfy an order for quantity units.
func (p *Product) Available(quantity int) bool {
	return p.InStock && p.StockQuantity >= quantity
}
