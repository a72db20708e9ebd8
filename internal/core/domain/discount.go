package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	// DiscountFlat subtracts a fixed amount, capped at the subtotal.
	DiscountFlat DiscountKind = "flat"
	// DiscountPercentage subtracts a percentage of the subtotal.
	DiscountPercentage DiscountKind = "percentage"
)

// RuleSource names the registry a discount rule came from.
type RuleSource string

const (
	SourcePromotion RuleSource = "promotion"
	SourceCoupon    RuleSource = "coupon"
)

// DiscountRule is a code-bearing entry of either registry. UsageLimit of 0
// means unlimited.
type DiscountRule struct {
	Code          string
	Description   string
	Source        RuleSource
	Kind          DiscountKind
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	StartsAt      time.Time
	EndsAt        time.Time
	UsageLimit    int
	UsedCount     int
}

// CheckApplicable validates the rule's window, usage budget and minimum-order
// threshold against a subtotal. Returns a *NotApplicableError on failure.
func (r *DiscountRule) CheckApplicable(now time.Time, subtotal decimal.Decimal) error {
	if now.Before(r.StartsAt) || now.After(r.EndsAt) {
		return &NotApplicableError{Code: r.Code, Reason: "code is not active"}
	}
	if r.UsageLimit > 0 && r.UsedCount >= r.UsageLimit {
		return &NotApplicableError{Code: r.Code, Reason: "usage limit reached"}
	}
	if subtotal.LessThan(r.MinOrderValue) {
		return &NotApplicableError{
			Code:   r.Code,
			Reason: "order subtotal below minimum of " + r.MinOrderValue.String(),
		}
	}
	return nil
}

// DiscountFor computes the discount amount for a subtotal. The result is
// clamped to [0, subtotal] so the payable total can never go negative.
func (r *DiscountRule) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	var raw decimal.Decimal
	switch r.Kind {
	case DiscountPercentage:
		raw = subtotal.Mul(r.Value).Div(decimal.NewFromInt(100))
	default:
		raw = r.Value
	}
	if raw.IsNegative() {
		return decimal.Zero
	}
	if raw.GreaterThan(subtotal) {
		return subtotal
	}
	return raw
}

// AppliedCoupon is the single active discount a customer holds between
// applying a code and committing the order. It is ephemeral and cleared
// whenever the cart changes.
type AppliedCoupon struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	AppliedAt      time.Time       `json:"applied_at"`
}
