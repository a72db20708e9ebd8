package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndquoc/pharmacart/internal/core/domain"
)

// MySQLAdapter implements the catalog, cart, order and registry ports against
// MySQL. Stock decrements are serialized per product by conditional updates
// inside the commit transaction.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, price, in_stock, stock_quantity, created_at, updated_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.InStock, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, price, in_stock, stock_quantity, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.InStock, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (m *MySQLAdapter) AddItem(ctx context.Context, customerID, productID string, quantity int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_items (customer_id, product_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = NOW()`,
		customerID, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SetQuantity(ctx context.Context, customerID, productID string, quantity int) error {
	var current int
	err := m.db.QueryRowContext(ctx, `
		SELECT quantity FROM cart_items WHERE customer_id = ? AND product_id = ?`,
		customerID, productID,
	).Scan(&current)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCartItemNotFound
	}
	if err != nil {
		return fmt.Errorf("query cart item: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = ?, updated_at = NOW()
		WHERE customer_id = ? AND product_id = ?`,
		quantity, customerID, productID,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RemoveItem(ctx context.Context, customerID, productID string) error {
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE customer_id = ? AND product_id = ?`,
		customerID, productID,
	)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Clear(ctx context.Context, customerID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM cart_items WHERE customer_id = ?`, customerID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetItems(ctx context.Context, customerID string) ([]domain.CartItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT customer_id, product_id, quantity, created_at, updated_at
		FROM cart_items WHERE customer_id = ?
		ORDER BY created_at, product_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.CustomerID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CommitOrder writes the order, its items, the per-line stock decrements and
// the discount-code usage in one transaction. A line that cannot be satisfied
// aborts with *domain.OutOfStockError; an exhausted code aborts with
// *domain.NotApplicableError. Nothing survives a failure.
func (m *MySQLAdapter) CommitOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var customerID any
	if order.CustomerID != "" {
		customerID = order.CustomerID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, subtotal, discount_amount, coupon_code, total_amount,
			full_name, phone, address, payment_method, status, payment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, customerID, order.Subtotal, order.DiscountAmount, order.CouponCode, order.TotalAmount,
		order.Shipping.FullName, order.Shipping.Phone, order.Shipping.Address,
		order.PaymentMethod, order.Status, order.PaymentStatus, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, it.ProductID, it.ProductName, it.UnitPrice, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - ?, in_stock = stock_quantity > 0, updated_at = NOW()
			WHERE id = ? AND stock_quantity >= ?`,
			it.Quantity, it.ProductID, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			var available int
			tx.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = ?`, it.ProductID).Scan(&available)
			return &domain.OutOfStockError{Items: []domain.OutOfStockItem{{
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				Requested:   it.Quantity,
				Available:   available,
			}}}
		}
	}

	if order.CouponCode != "" {
		if err := incrementUsage(ctx, tx, order.CouponCode); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// incrementUsage spends the code at commit time, trying the promotion
// registry first, then the coupon registry (same order as validation).
func incrementUsage(ctx context.Context, tx *sql.Tx, code string) error {
	for _, table := range []string{"promotions", "coupons"} {
		result, err := tx.ExecContext(ctx, `
			UPDATE `+table+` SET used_count = used_count + 1
			WHERE code = ? AND (usage_limit = 0 OR used_count < usage_limit)`, code)
		if err != nil {
			return fmt.Errorf("increment %s usage: %w", table, err)
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			return nil
		}
	}
	return &domain.NotApplicableError{Code: code, Reason: "usage limit reached"}
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var customerID sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT id, customer_id, subtotal, discount_amount, coupon_code, total_amount,
			full_name, phone, address, payment_method, status, payment_status, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &customerID, &o.Subtotal, &o.DiscountAmount, &o.CouponCode, &o.TotalAmount,
		&o.Shipping.FullName, &o.Shipping.Phone, &o.Shipping.Address,
		&o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.CustomerID = customerID.String

	items, err := m.loadOrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, customer_id, subtotal, discount_amount, coupon_code, total_amount,
			full_name, phone, address, payment_method, status, payment_status, created_at, updated_at
		FROM orders WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var cust sql.NullString
		if err := rows.Scan(&o.ID, &cust, &o.Subtotal, &o.DiscountAmount, &o.CouponCode, &o.TotalAmount,
			&o.Shipping.FullName, &o.Shipping.Phone, &o.Shipping.Address,
			&o.PaymentMethod, &o.Status, &o.PaymentStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.CustomerID = cust.String
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := m.loadOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (m *MySQLAdapter) loadOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) SetCustomer(ctx context.Context, orderID, customerID string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET customer_id = ?, updated_at = NOW()
		WHERE id = ? AND customer_id IS NULL`,
		customerID, orderID,
	)
	if err != nil {
		return fmt.Errorf("associate order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Lost a race with another association.
		return domain.ErrAlreadyAssociated
	}
	return nil
}

func (m *MySQLAdapter) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?`,
		status, orderID,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (m *MySQLAdapter) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = ?, updated_at = NOW() WHERE id = ?`,
		status, orderID,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (m *MySQLAdapter) FindPromotion(ctx context.Context, code string) (*domain.DiscountRule, error) {
	return m.findRule(ctx, "promotions", domain.SourcePromotion, code)
}

func (m *MySQLAdapter) FindCoupon(ctx context.Context, code string) (*domain.DiscountRule, error) {
	return m.findRule(ctx, "coupons", domain.SourceCoupon, code)
}

func (m *MySQLAdapter) findRule(ctx context.Context, table string, source domain.RuleSource, code string) (*domain.DiscountRule, error) {
	var r domain.DiscountRule
	err := m.db.QueryRowContext(ctx, `
		SELECT code, description, kind, value, min_order_value, starts_at, ends_at, usage_limit, used_count
		FROM `+table+` WHERE code = ?`, code,
	).Scan(&r.Code, &r.Description, &r.Kind, &r.Value, &r.MinOrderValue, &r.StartsAt, &r.EndsAt, &r.UsageLimit, &r.UsedCount)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	r.Source = source
	return &r, nil
}
