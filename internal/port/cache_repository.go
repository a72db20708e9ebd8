package port

import (
	"context"

	"github.com/ndquoc/pharmacart/internal/core/domain"
)

// CacheRepository holds the ephemeral state of anonymous sessions and
// in-progress checkouts: guest carts, the single applied discount code per
// owner, idempotency keys and the display stock snapshot.
type CacheRepository interface {
	// AddGuestItem merges quantity into the guest's line for the product
	AddGuestItem(ctx context.Context, guestID, productID string, quantity int) error

	// SetGuestItem overwrites a quantity; domain.ErrCartItemNotFound when absent
	SetGuestItem(ctx context.Context, guestID, productID string, quantity int) error

	// RemoveGuestItem deletes a line; idempotent
	RemoveGuestItem(ctx context.Context, guestID, productID string) error

	ClearGuestCart(ctx context.Context, guestID string) error

	// GetGuestCart returns productID -> quantity
	GetGuestCart(ctx context.Context, guestID string) (map[string]int, error)

	// GetAppliedCoupon returns the owner's active code, or nil when absent
	GetAppliedCoupon(ctx context.Context, ownerID string) (*domain.AppliedCoupon, error)

	SaveAppliedCoupon(ctx context.Context, ownerID string, coupon domain.AppliedCoupon) error

	ClearAppliedCoupon(ctx context.Context, ownerID string) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// SetStockSnapshot refreshes the cached display stock for a product
	SetStockSnapshot(ctx context.Context, productID string, quantity int) error
}
