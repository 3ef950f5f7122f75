package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPending = "pending"

// IdempotencyRepository reserves checkout idempotency keys in Redis. A key moves from
// "pending" (reserved by an in-flight checkout) to the created order id.
type IdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyRepository creates a new IdempotencyRepository.
func NewIdempotencyRepository(client *redis.Client, ttl time.Duration) *IdempotencyRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyRepository{client: client, ttl: ttl}
}

func (r *IdempotencyRepository) getIdemKey(key string) string {
	return "idem:checkout:" + key
}

// Reserve claims key for a new checkout. When the key already exists it returns
// reserved=false and the stored value: an order id, or "" while the first checkout is in flight.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key string) (reserved bool, orderID string, err error) {
	ok, err := r.client.SetNX(ctx, r.getIdemKey(key), idempotencyPending, r.ttl).Result()
	if err != nil {
		return false, "", err
	}
	if ok {
		return true, "", nil
	}

	val, err := r.client.Get(ctx, r.getIdemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as still in flight
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if val == idempotencyPending {
		return false, "", nil
	}
	return false, val, nil
}

// Complete records the order created under key.
func (r *IdempotencyRepository) Complete(ctx context.Context, key, orderID string) error {
	return r.client.Set(ctx, r.getIdemKey(key), orderID, r.ttl).Err()
}

// Release drops a reservation so the key can be retried after a failed checkout.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.getIdemKey(key)).Err()
}
