package port

import (
	"context"

	"github.com/ndquoc/pharmacart/internal/core/domain"
)

type CatalogRepository interface {
	// GetProduct returns the current catalog entry, or nil when absent
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type CartRepository interface {
	// AddItem creates the line item or merges the quantity into an existing one
	AddItem(ctx context.Context, customerID, productID string, quantity int) error

	// SetQuantity overwrites the stored quantity; domain.ErrCartItemNotFound when absent
	SetQuantity(ctx context.Context, customerID, productID string, quantity int) error

	// RemoveItem deletes the line item; removing an absent item is a no-op
	RemoveItem(ctx context.Context, customerID, productID string) error

	Clear(ctx context.Context, customerID string) error

	// GetItems returns line items in insertion order
	GetItems(ctx context.Context, customerID string) ([]domain.CartItem, error)
}

type OrderRepository interface {
	// CommitOrder persists the order and its items and conditionally decrements
	// stock for every line in one transaction. No partial decrements survive a
	// failure: an unsatisfiable line aborts with *domain.OutOfStockError and an
	// exhausted discount code aborts with *domain.NotApplicableError.
	CommitOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns the order with its items, or nil when absent
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	ListOrders(ctx context.Context, customerID string) ([]domain.Order, error)

	// SetCustomer associates a guest order; domain.ErrAlreadyAssociated if the
	// order already has a different owner
	SetCustomer(ctx context.Context, orderID, customerID string) error

	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error

	UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error
}

type RegistryRepository interface {
	// FindPromotion returns the promotion rule for a code, or nil when absent
	FindPromotion(ctx context.Context, code string) (*domain.DiscountRule, error)

	// FindCoupon returns the coupon rule for a code, or nil when absent
	FindCoupon(ctx context.Context, code string) (*domain.DiscountRule, error)
}
