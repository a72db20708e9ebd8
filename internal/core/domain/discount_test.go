package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestDiscountFor(t *testing.T) {
	tests := []struct {
		name     string
		kind     DiscountKind
		value    int64
		subtotal int64
		want     int64
	}{
		{"percentage of subtotal", DiscountPercentage, 10, 100000, 10000},
		{"flat amount", DiscountFlat, 15000, 100000, 15000},
		{"flat capped at subtotal", DiscountFlat, 500000, 40000, 40000},
		{"full percentage capped", DiscountPercentage, 150, 40000, 40000},
		{"zero subtotal", DiscountPercentage, 10, 0, 0},
		{"negative value clamped", DiscountFlat, -5000, 40000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := DiscountRule{Kind: tt.kind, Value: dec(tt.value)}
			got := rule.DiscountFor(dec(tt.subtotal))

			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %d", got, tt.want)
			assert.False(t, got.IsNegative())
			assert.False(t, got.GreaterThan(dec(tt.subtotal)))
		})
	}
}

func TestCheckApplicable(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	active := DiscountRule{
		Code:          "SAVE10",
		Kind:          DiscountPercentage,
		Value:         dec(10),
		MinOrderValue: dec(50000),
		StartsAt:      now.Add(-24 * time.Hour),
		EndsAt:        now.Add(24 * time.Hour),
	}

	t.Run("within window and threshold", func(t *testing.T) {
		require.NoError(t, active.CheckApplicable(now, dec(100000)))
	})

	t.Run("subtotal at threshold", func(t *testing.T) {
		require.NoError(t, active.CheckApplicable(now, dec(50000)))
	})

	t.Run("below threshold", func(t *testing.T) {
		err := active.CheckApplicable(now, dec(49999))
		var notApplicable *NotApplicableError
		require.ErrorAs(t, err, &notApplicable)
		assert.Equal(t, "SAVE10", notApplicable.Code)
	})

	t.Run("before window", func(t *testing.T) {
		err := active.CheckApplicable(now.Add(-48*time.Hour), dec(100000))
		var notApplicable *NotApplicableError
		require.ErrorAs(t, err, &notApplicable)
	})

	t.Run("after window", func(t *testing.T) {
		err := active.CheckApplicable(now.Add(48*time.Hour), dec(100000))
		var notApplicable *NotApplicableError
		require.ErrorAs(t, err, &notApplicable)
	})

	t.Run("usage limit reached", func(t *testing.T) {
		spent := active
		spent.UsageLimit = 5
		spent.UsedCount = 5
		err := spent.CheckApplicable(now, dec(100000))
		var notApplicable *NotApplicableError
		require.ErrorAs(t, err, &notApplicable)
	})

	t.Run("zero usage limit means unlimited", func(t *testing.T) {
		unlimited := active
		unlimited.UsedCount = 10000
		require.NoError(t, unlimited.CheckApplicable(now, dec(100000)))
	})
}
