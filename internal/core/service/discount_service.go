package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndquoc/pharmacart/internal/core/domain"
	"github.com/ndquoc/pharmacart/internal/port"
)

// DiscountService resolves a submitted code against an ordered list of
// sources (promotion registry first, then coupon registry) and tracks the
// single active code per owner in the cache. Validation is read-only; usage
// is only counted when the order that carries the code commits.
type DiscountService struct {
	registry port.RegistryRepository
	cache    port.CacheRepository
	now      func() time.Time
}

type codeSource struct {
	name string
	find func(ctx context.Context, code string) (*domain.DiscountRule, error)
}

func NewDiscountService(registry port.RegistryRepository, cache port.CacheRepository) *DiscountService {
	return &DiscountService{
		registry: registry,
		cache:    cache,
		now:      time.Now,
	}
}

func (s *DiscountService) sources() []codeSource {
	return []codeSource{
		{name: "promotion", find: s.registry.FindPromotion},
		{name: "coupon", find: s.registry.FindCoupon},
	}
}

// Validate resolves a code and computes its discount for the given subtotal.
// It does not touch the owner's applied state.
func (s *DiscountService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.DiscountRule, decimal.Decimal, error) {
	var rule *domain.DiscountRule
	for _, src := range s.sources() {
		found, err := src.find(ctx, code)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("lookup %s code: %w", src.name, err)
		}
		if found != nil {
			rule = found
			break
		}
	}
	if rule == nil {
		return nil, decimal.Zero, domain.ErrCodeNotFound
	}

	if err := rule.CheckApplicable(s.now(), subtotal); err != nil {
		return nil, decimal.Zero, err
	}

	return rule, rule.DiscountFor(subtotal), nil
}

// Apply validates a code and records it as the owner's active discount.
// A different code already being active fails with ErrAlreadyApplied; the
// caller must remove it first. Re-applying the same code refreshes it.
func (s *DiscountService) Apply(ctx context.Context, ownerID, code string, subtotal decimal.Decimal) (*domain.AppliedCoupon, error) {
	existing, err := s.cache.GetAppliedCoupon(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load applied code: %w", err)
	}
	if existing != nil && existing.Code != code {
		return nil, domain.ErrAlreadyApplied
	}

	_, amount, err := s.Validate(ctx, code, subtotal)
	if err != nil {
		return nil, err
	}

	applied := domain.AppliedCoupon{
		Code:           code,
		DiscountAmount: amount,
		AppliedAt:      s.now(),
	}
	if err := s.cache.SaveAppliedCoupon(ctx, ownerID, applied); err != nil {
		return nil, fmt.Errorf("save applied code: %w", err)
	}
	return &applied, nil
}

// Remove clears the owner's active code. Idempotent.
func (s *DiscountService) Remove(ctx context.Context, ownerID string) error {
	if err := s.cache.ClearAppliedCoupon(ctx, ownerID); err != nil {
		return fmt.Errorf("clear applied code: %w", err)
	}
	return nil
}

// Current returns the owner's active code, or nil.
func (s *DiscountService) Current(ctx context.Context, ownerID string) (*domain.AppliedCoupon, error) {
	return s.cache.GetAppliedCoupon(ctx, ownerID)
}

// CartChanged implements port.CartListener. Any cart mutation changes the
// subtotal, so the held discount is no longer trustworthy and is cleared; the
// owner re-applies the code if it still fits. Failures never propagate to the
// cart operation.
func (s *DiscountService) CartChanged(ctx context.Context, ownerID string) {
	if err := s.cache.ClearAppliedCoupon(ctx, ownerID); err != nil {
		log.Printf("discount: failed to clear applied code for %s: %v", ownerID, err)
	}
}
