package mpwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avoberry/avoberry-backend/pkg/redis"
)

// IdempotencyGuard marks gateway notifications as seen so retries from the
// gateway do not reconcile the same payment twice.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether the notification was already processed and,
// when it was not, atomically claims it.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, notificationID string) (bool, error) {
	if notificationID == "" {
		return false, errors.New("notification id is required")
	}
	key := g.store.IdempotencyKey(g.scope, notificationID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the claim so the gateway's retry can reprocess a
// notification whose handling failed.
func (g *IdempotencyGuard) Delete(ctx context.Context, notificationID string) error {
	if notificationID == "" {
		return errors.New("notification id is required")
	}
	key := g.store.IdempotencyKey(g.scope, notificationID)
	return g.store.Del(ctx, key)
}
