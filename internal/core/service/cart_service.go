package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/ndquoc/pharmacart/internal/core/domain"
	"github.com/ndquoc/pharmacart/internal/port"
)

// CartService owns line items for authenticated customers (database) and
// anonymous guests (cache). Stock is not enforced here beyond rejecting
// non-positive quantities; checkout is the enforcement point.
type CartService struct {
	carts     port.CartRepository
	catalog   port.CatalogRepository
	cache     port.CacheRepository
	listeners []port.CartListener
}

func NewCartService(carts port.CartRepository, catalog port.CatalogRepository, cache port.CacheRepository) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		cache:   cache,
	}
}

// Subscribe registers a listener for cart-changed notifications. Not safe for
// concurrent use; wire listeners once at startup.
func (s *CartService) Subscribe(l port.CartListener) {
	s.listeners = append(s.listeners, l)
}

func (s *CartService) notify(ctx context.Context, ownerID string) {
	for _, l := range s.listeners {
		l.CartChanged(ctx, ownerID)
	}
}

func (s *CartService) AddItem(ctx context.Context, customerID, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.carts.AddItem(ctx, customerID, productID, quantity); err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}

	s.notify(ctx, customerID)
	return nil
}

// UpdateQuantity overwrites a line's quantity. Use RemoveItem to delete a
// line; zero or negative quantities are rejected.
func (s *CartService) UpdateQuantity(ctx context.Context, customerID, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	if err := s.carts.SetQuantity(ctx, customerID, productID, quantity); err != nil {
		return err
	}

	s.notify(ctx, customerID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, customerID, productID string) error {
	if err := s.carts.RemoveItem(ctx, customerID, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	s.notify(ctx, customerID)
	return nil
}

func (s *CartService) Clear(ctx context.Context, customerID string) error {
	if err := s.carts.Clear(ctx, customerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.notify(ctx, customerID)
	return nil
}

// GetCart joins stored line items with current catalog data. The join is
// read-only: a line whose quantity exceeds current stock is flagged, never
// corrected. Lines whose product vanished from the catalog are omitted.
func (s *CartService) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	items, err := s.carts.GetItems(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	cart := &domain.Cart{CustomerID: customerID}
	for _, it := range items {
		line, err := s.joinLine(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return nil, err
		}
		if line != nil {
			cart.Lines = append(cart.Lines, *line)
		}
	}
	return cart, nil
}

func (s *CartService) AddGuestItem(ctx context.Context, guestID, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return err
	}

	if err := s.cache.AddGuestItem(ctx, guestID, productID, quantity); err != nil {
		return fmt.Errorf("add guest cart item: %w", err)
	}

	s.notify(ctx, guestID)
	return nil
}

func (s *CartService) UpdateGuestQuantity(ctx context.Context, guestID, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	if err := s.cache.SetGuestItem(ctx, guestID, productID, quantity); err != nil {
		return err
	}

	s.notify(ctx, guestID)
	return nil
}

func (s *CartService) RemoveGuestItem(ctx context.Context, guestID, productID string) error {
	if err := s.cache.RemoveGuestItem(ctx, guestID, productID); err != nil {
		return fmt.Errorf("remove guest cart item: %w", err)
	}

	s.notify(ctx, guestID)
	return nil
}

func (s *CartService) ClearGuestCart(ctx context.Context, guestID string) error {
	if err := s.cache.ClearGuestCart(ctx, guestID); err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}

	s.notify(ctx, guestID)
	return nil
}

func (s *CartService) GetGuestCart(ctx context.Context, guestID string) (*domain.Cart, error) {
	quantities, err := s.cache.GetGuestCart(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("load guest cart: %w", err)
	}

	cart := &domain.Cart{CustomerID: guestID}
	for _, productID := range sortedKeys(quantities) {
		line, err := s.joinLine(ctx, productID, quantities[productID])
		if err != nil {
			return nil, err
		}
		if line != nil {
			cart.Lines = append(cart.Lines, *line)
		}
	}
	return cart, nil
}

// MergeGuestCart reconciles a guest's ephemeral cart into the customer's
// stored cart, run once when the session authenticates. The merge is a union:
// quantities for a product held on both sides are summed, guest-only lines are
// adopted. The guest cart is cleared afterwards.
func (s *CartService) MergeGuestCart(ctx context.Context, guestID, customerID string) error {
	quantities, err := s.cache.GetGuestCart(ctx, guestID)
	if err != nil {
		return fmt.Errorf("load guest cart: %w", err)
	}

	for _, productID := range sortedKeys(quantities) {
		if quantities[productID] <= 0 {
			continue
		}
		if err := s.carts.AddItem(ctx, customerID, productID, quantities[productID]); err != nil {
			return fmt.Errorf("merge guest cart: %w", err)
		}
	}

	if err := s.cache.ClearGuestCart(ctx, guestID); err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}

	s.notify(ctx, customerID)
	return nil
}

func (s *CartService) requireProduct(ctx context.Context, productID string) error {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("lookup product: %w", err)
	}
	if p == nil {
		return domain.ErrProductNotFound
	}
	return nil
}

func (s *CartService) joinLine(ctx context.Context, productID string, quantity int) (*domain.CartLine, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("lookup product: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	return &domain.CartLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    quantity,
		UnderStock:  !p.Available(quantity),
	}, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
