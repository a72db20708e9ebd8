package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ndquoc/pharmacart/internal/core/domain"
)

const (
	guestCartKeyPrefix = "guestcart:"
	couponKeyPrefix    = "coupon:"
	stockKeyPrefix     = "stock:"

	guestCartTTL      = 7 * 24 * time.Hour
	appliedCouponTTL  = 30 * time.Minute
	idempotencyKeyTTL = 24 * time.Hour
)

// addGuestItemScript merges a quantity into the guest cart hash and refreshes
// the cart TTL in one round trip.
var addGuestItemScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local quantity = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

redis.call('HINCRBY', key, field, quantity)
redis.call('EXPIRE', key, ttl)
return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) AddGuestItem(ctx context.Context, guestID, productID string, quantity int) error {
	key := guestCartKeyPrefix + guestID
	return addGuestItemScript.Run(ctx, r.client, []string{key},
		productID, quantity, int(guestCartTTL.Seconds())).Err()
}

func (r *RedisAdapter) SetGuestItem(ctx context.Context, guestID, productID string, quantity int) error {
	key := guestCartKeyPrefix + guestID

	exists, err := r.client.HExists(ctx, key, productID).Result()
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrCartItemNotFound
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, productID, quantity)
	pipe.Expire(ctx, key, guestCartTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisAdapter) RemoveGuestItem(ctx context.Context, guestID, productID string) error {
	return r.client.HDel(ctx, guestCartKeyPrefix+guestID, productID).Err()
}

func (r *RedisAdapter) ClearGuestCart(ctx context.Context, guestID string) error {
	return r.client.Del(ctx, guestCartKeyPrefix+guestID).Err()
}

func (r *RedisAdapter) GetGuestCart(ctx context.Context, guestID string) (map[string]int, error) {
	fields, err := r.client.HGetAll(ctx, guestCartKeyPrefix+guestID).Result()
	if err != nil {
		return nil, err
	}

	cart := make(map[string]int, len(fields))
	for productID, raw := range fields {
		quantity, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt guest cart entry %s: %w", productID, err)
		}
		cart[productID] = quantity
	}
	return cart, nil
}

func (r *RedisAdapter) GetAppliedCoupon(ctx context.Context, ownerID string) (*domain.AppliedCoupon, error) {
	raw, err := r.client.Get(ctx, couponKeyPrefix+ownerID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var coupon domain.AppliedCoupon
	if err := json.Unmarshal(raw, &coupon); err != nil {
		return nil, fmt.Errorf("corrupt applied coupon: %w", err)
	}
	return &coupon, nil
}

func (r *RedisAdapter) SaveAppliedCoupon(ctx context.Context, ownerID string, coupon domain.AppliedCoupon) error {
	raw, err := json.Marshal(coupon)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, couponKeyPrefix+ownerID, raw, appliedCouponTTL).Err()
}

func (r *RedisAdapter) ClearAppliedCoupon(ctx context.Context, ownerID string) error {
	return r.client.Del(ctx, couponKeyPrefix+ownerID).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *RedisAdapter) SetStockSnapshot(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}
