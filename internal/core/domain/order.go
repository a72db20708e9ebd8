package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// statusRank orders the forward-only fulfilment states.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusConfirmed: 1,
	OrderStatusPreparing: 2,
	OrderStatusShipping:  3,
	OrderStatusDelivered: 4,
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Delivered and cancelled are terminal; cancelled is reachable from any
// non-terminal state; fulfilment states never move backward.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == OrderStatusDelivered || s == OrderStatusCancelled {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	to, ok2 := statusRank[next]
	return ok && ok2 && to > from
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CanTransitionTo guards the payment axis. It is independent of shipment
// status; the only hard rule is that refunds require a prior payment.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if next == PaymentStatusRefunded {
		return s == PaymentStatusPaid
	}
	return s == PaymentStatusPending
}

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// OrderItem captures a line at commit time. UnitPrice is a snapshot; later
// catalog price changes never affect it.
type OrderItem struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

type ShippingInfo struct {
	FullName string
	Phone    string
	Address  string
}

// Order is immutable after commit except for its status and payment status.
// CustomerID is empty for guest orders until an explicit association.
type Order struct {
	ID             string
	CustomerID     string
	Items          []OrderItem
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	CouponCode     string
	TotalAmount    decimal.Decimal
	Shipping       ShippingInfo
	PaymentMethod  PaymentMethod
	Status         OrderStatus
	PaymentStatus  PaymentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
