package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ndquoc/pharmacart/internal/core/domain"
	"github.com/ndquoc/pharmacart/internal/port"
)

// OrderService assembles orders at checkout: it re-reads the catalog for
// every line, re-validates the applied discount against the fresh subtotal,
// snapshots prices and commits everything atomically. Committed orders are
// emitted on a channel for non-critical post-commit work.
type OrderService struct {
	catalog   port.CatalogRepository
	carts     port.CartRepository
	orders    port.OrderRepository
	cache     port.CacheRepository
	discounts *DiscountService
	events    chan domain.Order
	now       func() time.Time
}

func NewOrderService(
	catalog port.CatalogRepository,
	carts port.CartRepository,
	orders port.OrderRepository,
	cache port.CacheRepository,
	discounts *DiscountService,
	queueSize int,
) *OrderService {
	return &OrderService{
		catalog:   catalog,
		carts:     carts,
		orders:    orders,
		cache:     cache,
		discounts: discounts,
		events:    make(chan domain.Order, queueSize),
		now:       time.Now,
	}
}

// CreateOrderInput carries checkout data. CustomerID is empty for guest
// checkout, in which case GuestID names the cart to consume.
type CreateOrderInput struct {
	RequestID     string
	CustomerID    string
	GuestID       string
	Shipping      domain.ShippingInfo
	PaymentMethod domain.PaymentMethod
}

func (in CreateOrderInput) ownerID() string {
	if in.CustomerID != "" {
		return in.CustomerID
	}
	return in.GuestID
}

// CreateOrder runs the checkout pipeline. The cart's cached view may be
// stale, so every line is re-validated against the catalog and the whole
// operation fails with *domain.OutOfStockError, naming every offending
// product, before anything is written. An applied code that no longer fits
// the fresh subtotal is dropped to zero discount rather than failing the
// checkout.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if in.RequestID == "" {
		return nil, errors.New("request id is required")
	}
	if in.ownerID() == "" {
		return nil, errors.New("customer or guest id is required")
	}

	ok, err := s.cache.SetIdempotency(ctx, "checkout:"+in.RequestID)
	if err != nil {
		return nil, fmt.Errorf("idempotency check: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	lines, err := s.loadLines(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	items, subtotal, err := s.reconcile(ctx, lines)
	if err != nil {
		return nil, err
	}

	couponCode, discount := s.resolveDiscount(ctx, in.ownerID(), subtotal)

	now := s.now()
	order := domain.Order{
		ID:             uuid.NewString(),
		CustomerID:     in.CustomerID,
		Items:          items,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		CouponCode:     couponCode,
		TotalAmount:    subtotal.Sub(discount),
		Shipping:       in.Shipping,
		PaymentMethod:  in.PaymentMethod,
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.orders.CommitOrder(ctx, order); err != nil {
		var notApplicable *domain.NotApplicableError
		if errors.As(err, &notApplicable) && order.CouponCode != "" {
			// The code's usage budget ran out between validation and commit.
			// Same tolerance as a stale coupon: retry once without it.
			order.CouponCode = ""
			order.DiscountAmount = decimal.Zero
			order.TotalAmount = order.Subtotal
			err = s.orders.CommitOrder(ctx, order)
		}
		if err != nil {
			return nil, err
		}
	}

	s.cleanupAfterCommit(ctx, in)

	select {
	case s.events <- order:
	default:
		log.Printf("order %s: event queue full, dropping post-commit event", order.ID)
	}

	return &order, nil
}

type rawLine struct {
	productID string
	quantity  int
}

func (s *OrderService) loadLines(ctx context.Context, in CreateOrderInput) ([]rawLine, error) {
	if in.CustomerID != "" {
		items, err := s.carts.GetItems(ctx, in.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		lines := make([]rawLine, 0, len(items))
		for _, it := range items {
			lines = append(lines, rawLine{productID: it.ProductID, quantity: it.Quantity})
		}
		return lines, nil
	}

	quantities, err := s.cache.GetGuestCart(ctx, in.GuestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}
	lines := make([]rawLine, 0, len(quantities))
	for _, productID := range sortedKeys(quantities) {
		lines = append(lines, rawLine{productID: productID, quantity: quantities[productID]})
	}
	return lines, nil
}

// reconcile re-reads the catalog for every line, snapshots current prices and
// collects every unsatisfiable line before failing.
func (s *OrderService) reconcile(ctx context.Context, lines []rawLine) ([]domain.OrderItem, decimal.Decimal, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	var oos []domain.OutOfStockItem

	for _, line := range lines {
		p, err := s.catalog.GetProduct(ctx, line.productID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("lookup product: %w", err)
		}
		if p == nil {
			oos = append(oos, domain.OutOfStockItem{
				ProductID: line.productID,
				Requested: line.quantity,
			})
			continue
		}
		if !p.Available(line.quantity) {
			oos = append(oos, domain.OutOfStockItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   line.quantity,
				Available:   p.StockQuantity,
			})
			continue
		}

		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    line.quantity,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(line.quantity))))
	}

	if len(oos) > 0 {
		return nil, decimal.Zero, &domain.OutOfStockError{Items: oos}
	}
	return items, subtotal, nil
}

// resolveDiscount re-validates the owner's applied code against the fresh
// subtotal. A code that stopped fitting (window closed, subtotal dropped
// below threshold, registry row gone) zeroes the discount instead of failing
// the checkout.
func (s *OrderService) resolveDiscount(ctx context.Context, ownerID string, subtotal decimal.Decimal) (string, decimal.Decimal) {
	applied, err := s.discounts.Current(ctx, ownerID)
	if err != nil {
		log.Printf("checkout: failed to load applied code for %s: %v", ownerID, err)
		return "", decimal.Zero
	}
	if applied == nil {
		return "", decimal.Zero
	}

	_, amount, err := s.discounts.Validate(ctx, applied.Code, subtotal)
	if err != nil {
		log.Printf("checkout: dropping code %s for %s: %v", applied.Code, ownerID, err)
		return "", decimal.Zero
	}
	return applied.Code, amount
}

// cleanupAfterCommit clears the consumed cart and applied code. The order is
// already durable; failures here are logged, never returned.
func (s *OrderService) cleanupAfterCommit(ctx context.Context, in CreateOrderInput) {
	if in.CustomerID != "" {
		if err := s.carts.Clear(ctx, in.CustomerID); err != nil {
			log.Printf("checkout: failed to clear cart for %s: %v", in.CustomerID, err)
		}
	} else {
		if err := s.cache.ClearGuestCart(ctx, in.GuestID); err != nil {
			log.Printf("checkout: failed to clear guest cart %s: %v", in.GuestID, err)
		}
	}
	if err := s.cache.ClearAppliedCoupon(ctx, in.ownerID()); err != nil {
		log.Printf("checkout: failed to clear applied code for %s: %v", in.ownerID(), err)
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	return s.orders.ListOrders(ctx, customerID)
}

// AssociateWithUser attaches a guest order to a customer. Idempotent for the
// same customer; a different owner fails with ErrAlreadyAssociated.
func (s *OrderService) AssociateWithUser(ctx context.Context, orderID, customerID string) error {
	if customerID == "" {
		return errors.New("customer id is required")
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.CustomerID == customerID {
		return nil
	}
	if order.CustomerID != "" {
		return domain.ErrAlreadyAssociated
	}

	return s.orders.SetCustomer(ctx, orderID, customerID)
}

func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, next)
	}
	return s.orders.UpdateStatus(ctx, orderID, next)
}

func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID string, next domain.PaymentStatus) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.PaymentStatus.CanTransitionTo(next) {
		return fmt.Errorf("%w: payment %s -> %s", domain.ErrInvalidTransition, order.PaymentStatus, next)
	}
	return s.orders.UpdatePaymentStatus(ctx, orderID, next)
}

// Events exposes committed orders for post-commit workers.
func (s *OrderService) Events() <-chan domain.Order {
	return s.events
}

func (s *OrderService) Close() {
	close(s.events)
}
