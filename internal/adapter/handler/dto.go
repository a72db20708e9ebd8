package handler

import (
	"time"

	"github.com/ndquoc/pharmacart/internal/core/domain"
)

// Money crosses the wire as a decimal string to avoid float rounding.

type productResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	InStock       bool   `json:"in_stock"`
	StockQuantity int    `json:"stock_quantity"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price.String(),
		InStock:       p.InStock,
		StockQuantity: p.StockQuantity,
	}
}

type cartLineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"line_total"`
	UnderStock  bool   `json:"under_stock"`
}

type cartResponse struct {
	Lines    []cartLineResponse `json:"lines"`
	Subtotal string             `json:"subtotal"`
}

func toCartResponse(c *domain.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.String(),
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal().String(),
			UnderStock:  l.UnderStock,
		})
	}
	return cartResponse{Lines: lines, Subtotal: c.Subtotal().String()}
}

type appliedCouponResponse struct {
	Code           string    `json:"code"`
	DiscountAmount string    `json:"discount_amount"`
	AppliedAt      time.Time `json:"applied_at"`
}

func toAppliedCouponResponse(c domain.AppliedCoupon) appliedCouponResponse {
	return appliedCouponResponse{
		Code:           c.Code,
		DiscountAmount: c.DiscountAmount.String(),
		AppliedAt:      c.AppliedAt,
	}
}

type orderItemResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	CustomerID     string              `json:"customer_id,omitempty"`
	Items          []orderItemResponse `json:"items"`
	Subtotal       string              `json:"subtotal"`
	DiscountAmount string              `json:"discount_amount"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	TotalAmount    string              `json:"total_amount"`
	FullName       string              `json:"full_name"`
	Phone          string              `json:"phone"`
	Address        string              `json:"address"`
	PaymentMethod  string              `json:"payment_method"`
	Status         string              `json:"status"`
	PaymentStatus  string              `json:"payment_status"`
	CreatedAt      time.Time           `json:"created_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice.String(),
			Quantity:    it.Quantity,
		})
	}
	return orderResponse{
		ID:             o.ID,
		CustomerID:     o.CustomerID,
		Items:          items,
		Subtotal:       o.Subtotal.String(),
		DiscountAmount: o.DiscountAmount.String(),
		CouponCode:     o.CouponCode,
		TotalAmount:    o.TotalAmount.String(),
		FullName:       o.Shipping.FullName,
		Phone:          o.Shipping.Phone,
		Address:        o.Shipping.Address,
		PaymentMethod:  string(o.PaymentMethod),
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		CreatedAt:      o.CreatedAt,
	}
}

type outOfStockItemResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

func toOutOfStockResponse(e *domain.OutOfStockError) []outOfStockItemResponse {
	out := make([]outOfStockItemResponse, 0, len(e.Items))
	for _, it := range e.Items {
		out = append(out, outOfStockItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Requested:   it.Requested,
			Available:   it.Available,
		})
	}
	return out
}
