package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndquoc/pharmacart/internal/core/domain"
)

// In-memory fakes for the storage ports, mutex-guarded so the concurrent
// checkout tests exercise real contention.

type memCatalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newMemCatalog() *memCatalog {
	return &memCatalog{products: make(map[string]domain.Product)}
}

func (c *memCatalog) put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *memCatalog) stock(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.products[id].StockQuantity
}

func (c *memCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *memCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	return out, nil
}

type memCarts struct {
	mu    sync.Mutex
	items map[string][]*domain.CartItem
}

func newMemCarts() *memCarts {
	return &memCarts{items: make(map[string][]*domain.CartItem)}
}

func (m *memCarts) AddItem(ctx context.Context, customerID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items[customerID] {
		if it.ProductID == productID {
			it.Quantity += quantity
			it.UpdatedAt = time.Now()
			return nil
		}
	}
	m.items[customerID] = append(m.items[customerID], &domain.CartItem{
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   quantity,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	})
	return nil
}

func (m *memCarts) SetQuantity(ctx context.Context, customerID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items[customerID] {
		if it.ProductID == productID {
			it.Quantity = quantity
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

func (m *memCarts) RemoveItem(ctx context.Context, customerID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[customerID][:0]
	for _, it := range m.items[customerID] {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	m.items[customerID] = kept
	return nil
}

func (m *memCarts) Clear(ctx context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, customerID)
	return nil
}

func (m *memCarts) GetItems(ctx context.Context, customerID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CartItem, 0, len(m.items[customerID]))
	for _, it := range m.items[customerID] {
		out = append(out, *it)
	}
	return out, nil
}

type memRegistry struct {
	mu         sync.Mutex
	promotions map[string]*domain.DiscountRule
	coupons    map[string]*domain.DiscountRule
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		promotions: make(map[string]*domain.DiscountRule),
		coupons:    make(map[string]*domain.DiscountRule),
	}
}

func (m *memRegistry) FindPromotion(ctx context.Context, code string) (*domain.DiscountRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.promotions[code]; ok {
		copied := *r
		copied.Source = domain.SourcePromotion
		return &copied, nil
	}
	return nil, nil
}

func (m *memRegistry) FindCoupon(ctx context.Context, code string) (*domain.DiscountRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.coupons[code]; ok {
		copied := *r
		copied.Source = domain.SourceCoupon
		return &copied, nil
	}
	return nil, nil
}

type memCache struct {
	mu          sync.Mutex
	guestCarts  map[string]map[string]int
	coupons     map[string]domain.AppliedCoupon
	idempotency map[string]bool
	stock       map[string]int
}

func newMemCache() *memCache {
	return &memCache{
		guestCarts:  make(map[string]map[string]int),
		coupons:     make(map[string]domain.AppliedCoupon),
		idempotency: make(map[string]bool),
		stock:       make(map[string]int),
	}
}

func (m *memCache) AddGuestItem(ctx context.Context, guestID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.guestCarts[guestID] == nil {
		m.guestCarts[guestID] = make(map[string]int)
	}
	m.guestCarts[guestID][productID] += quantity
	return nil
}

func (m *memCache) SetGuestItem(ctx context.Context, guestID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.guestCarts[guestID][productID]; !ok {
		return domain.ErrCartItemNotFound
	}
	m.guestCarts[guestID][productID] = quantity
	return nil
}

func (m *memCache) RemoveGuestItem(ctx context.Context, guestID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guestCarts[guestID], productID)
	return nil
}

func (m *memCache) ClearGuestCart(ctx context.Context, guestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guestCarts, guestID)
	return nil
}

func (m *memCache) GetGuestCart(ctx context.Context, guestID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.guestCarts[guestID]))
	for k, v := range m.guestCarts[guestID] {
		out[k] = v
	}
	return out, nil
}

func (m *memCache) GetAppliedCoupon(ctx context.Context, ownerID string) (*domain.AppliedCoupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.coupons[ownerID]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memCache) SaveAppliedCoupon(ctx context.Context, ownerID string, coupon domain.AppliedCoupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[ownerID] = coupon
	return nil
}

func (m *memCache) ClearAppliedCoupon(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.coupons, ownerID)
	return nil
}

func (m *memCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idempotency[key] {
		return false, nil
	}
	m.idempotency[key] = true
	return true, nil
}

func (m *memCache) SetStockSnapshot(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

// memOrders commits against the shared memCatalog so the conditional
// all-or-nothing decrement contract holds under concurrency.
type memOrders struct {
	mu       sync.Mutex
	catalog  *memCatalog
	registry *memRegistry
	orders   map[string]domain.Order

	// failOnce makes the next CommitOrder fail with this error
	failOnce error
}

func newMemOrders(catalog *memCatalog, registry *memRegistry) *memOrders {
	return &memOrders{catalog: catalog, registry: registry, orders: make(map[string]domain.Order)}
}

func (m *memOrders) CommitOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog.mu.Lock()
	defer m.catalog.mu.Unlock()

	if m.failOnce != nil {
		err := m.failOnce
		m.failOnce = nil
		return err
	}

	for _, it := range order.Items {
		p, ok := m.catalog.products[it.ProductID]
		if !ok || p.StockQuantity < it.Quantity {
			return &domain.OutOfStockError{Items: []domain.OutOfStockItem{{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Requested:   it.Quantity,
				Available:   p.StockQuantity,
			}}}
		}
	}

	if order.CouponCode != "" {
		if err := m.spendCode(order.CouponCode); err != nil {
			return err
		}
	}

	for _, it := range order.Items {
		p := m.catalog.products[it.ProductID]
		p.StockQuantity -= it.Quantity
		p.InStock = p.StockQuantity > 0
		m.catalog.products[it.ProductID] = p
	}

	m.orders[order.ID] = order
	return nil
}

func (m *memOrders) spendCode(code string) error {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()
	for _, rules := range []map[string]*domain.DiscountRule{m.registry.promotions, m.registry.coupons} {
		if r, ok := rules[code]; ok {
			if r.UsageLimit > 0 && r.UsedCount >= r.UsageLimit {
				continue
			}
			r.UsedCount++
			return nil
		}
	}
	return &domain.NotApplicableError{Code: code, Reason: "usage limit reached"}
}

func (m *memOrders) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (m *memOrders) ListOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) SetCustomer(ctx context.Context, orderID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.CustomerID != "" {
		return domain.ErrAlreadyAssociated
	}
	o.CustomerID = customerID
	m.orders[orderID] = o
	return nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	m.orders[orderID] = o
	return nil
}

func (m *memOrders) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.PaymentStatus = status
	m.orders[orderID] = o
	return nil
}

type testEnv struct {
	catalog  *memCatalog
	carts    *memCarts
	registry *memRegistry
	cache    *memCache
	orders   *memOrders

	cartSvc     *CartService
	discountSvc *DiscountService
	orderSvc    *OrderService
}

func newTestEnv() *testEnv {
	catalog := newMemCatalog()
	carts := newMemCarts()
	registry := newMemRegistry()
	cache := newMemCache()
	orders := newMemOrders(catalog, registry)

	cartSvc := NewCartService(carts, catalog, cache)
	discountSvc := NewDiscountService(registry, cache)
	cartSvc.Subscribe(discountSvc)
	orderSvc := NewOrderService(catalog, carts, orders, cache, discountSvc, 1000)

	return &testEnv{
		catalog:     catalog,
		carts:       carts,
		registry:    registry,
		cache:       cache,
		orders:      orders,
		cartSvc:     cartSvc,
		discountSvc: discountSvc,
		orderSvc:    orderSvc,
	}
}

func (e *testEnv) addProduct(id, name string, price int64, stock int) {
	e.catalog.put(domain.Product{
		ID:            id,
		Name:          name,
		Price:         decimal.NewFromInt(price),
		InStock:       stock > 0,
		StockQuantity: stock,
	})
}

func mustDec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func percentRule(code string, percent, minOrder int64) *domain.DiscountRule {
	return &domain.DiscountRule{
		Code:          code,
		Kind:          domain.DiscountPercentage,
		Value:         decimal.NewFromInt(percent),
		MinOrderValue: decimal.NewFromInt(minOrder),
		StartsAt:      time.Now().Add(-time.Hour),
		EndsAt:        time.Now().Add(time.Hour),
	}
}

func flatRule(code string, amount, minOrder int64) *domain.DiscountRule {
	return &domain.DiscountRule{
		Code:          code,
		Kind:          domain.DiscountFlat,
		Value:         decimal.NewFromInt(amount),
		MinOrderValue: decimal.NewFromInt(minOrder),
		StartsAt:      time.Now().Add(-time.Hour),
		EndsAt:        time.Now().Add(time.Hour),
	}
}

func checkoutInput(customerID string) CreateOrderInput {
	return CreateOrderInput{
		RequestID:  "req-" + customerID + "-" + time.Now().Format("150405.000000000"),
		CustomerID: customerID,
		Shipping: domain.ShippingInfo{
			FullName: "Nguyen Van A",
			Phone:    "0901234567",
			Address:  "12 Le Loi, District 1",
		},
		PaymentMethod: domain.PaymentCOD,
	}
}
