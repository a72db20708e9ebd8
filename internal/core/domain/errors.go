package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrProductNotFound   = errors.New("product not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrCodeNotFound      = errors.New("discount code not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrAlreadyApplied    = errors.New("a discount code is already applied")
	ErrAlreadyAssociated = errors.New("order is already associated with another user")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateRequest  = errors.New("duplicate checkout request")
)

// OutOfStockItem names one product that cannot satisfy a requested quantity.
type OutOfStockItem struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

// OutOfStockError lists every offending product of a checkout attempt.
type OutOfStockError struct {
	Items []OutOfStockItem
}

func (e *OutOfStockError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		name := it.ProductName
		if name == "" {
			name = it.ProductID
		}
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", name, it.Requested, it.Available))
	}
	return "out of stock: " + strings.Join(parts, ", ")
}

// NotApplicableError reports a code that exists but fails a business rule.
type NotApplicableError struct {
	Code   string
	Reason string
}

func (e *NotApplicableError) Error() string {
	return fmt.Sprintf("code %s is not applicable: %s", e.Code, e.Reason)
}
