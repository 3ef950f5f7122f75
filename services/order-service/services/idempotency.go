package services

import "context"

// IdempotencyStore reserves checkout idempotency keys. Reserve returns reserved=true for the
// first caller; later callers get the completed order id, or "" while the first is in flight.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (reserved bool, orderID string, err error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}
