package port

import "context"

// CartListener is notified after a mutation changes the contents of an
// owner's cart, and with it the order subtotal. Listeners must not fail the
// triggering operation; they log and swallow their own errors.
type CartListener interface {
	CartChanged(ctx context.Context, ownerID string)
}
