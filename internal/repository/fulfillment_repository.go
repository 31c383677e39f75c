package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LockTTL      = 2 * time.Minute
	FulfilledTTL = 24 * time.Hour

	lockMargin = 30 * time.Second
)

// LockTTLFor returns a lock lifetime that outlasts work, the longest a
// holder can keep the lock, and is never shorter than LockTTL.
func LockTTLFor(work time.Duration) time.Duration {
	if ttl := work + lockMargin; ttl > LockTTL {
		return ttl
	}
	return LockTTL
}

// store is the slice of the redis client the repository uses.
type store interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// FulfillmentRepository keeps short-lived redis markers so that a callback
// and a poll for the same transaction cannot both dispatch the order.
type FulfillmentRepository struct {
	rdb     store
	lockTTL time.Duration
}

func NewFulfillmentRepository(rdb *redis.Client, lockTTL time.Duration) *FulfillmentRepository {
	return &FulfillmentRepository{rdb: rdb, lockTTL: lockTTL}
}

func lockKey(transactionID string) string {
	return fmt.Sprintf("fulfillment_lock:%s", transactionID)
}

func fulfilledKey(transactionID string) string {
	return fmt.Sprintf("fulfilled:%s", transactionID)
}

func (r *FulfillmentRepository) Acquire(ctx context.Context, transactionID string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, lockKey(transactionID), "1", r.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (r *FulfillmentRepository) Release(ctx context.Context, transactionID string) error {
	if err := r.rdb.Del(ctx, lockKey(transactionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *FulfillmentRepository) MarkFulfilled(ctx context.Context, transactionID string) error {
	if err := r.rdb.Set(ctx, fulfilledKey(transactionID), time.Now().UTC().Format(time.RFC3339), FulfilledTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *FulfillmentRepository) IsFulfilled(ctx context.Context, transactionID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, fulfilledKey(transactionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
