// entitlement/store.go
package entitlement

import (
	"context"
	"time"

	"github.com/arbiterhq/arbiter/db"
	"github.com/arbiterhq/arbiter/model"
)

// SnapshotStore is the shared snapshot tier behind the cache. Get returns
// (nil, nil) on a clean miss so callers can tell absence from outage.
type SnapshotStore interface {
	Get(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error)
	Put(ctx context.Context, snapshot *model.Entitlements, ttl time.Duration) error
	Delete(ctx context.Context, tenantID, principalID string) error
}

// RedisStore keeps snapshots in the shared Redis tier so every evaluator
// replica sees the same materialization.
type RedisStore struct{}

func NewRedisStore() *RedisStore {
	return &RedisStore{}
}

func (s *RedisStore) Get(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error) {
	return db.GetCachedEntitlements(ctx, tenantID, principalID)
}

func (s *RedisStore) Put(ctx context.Context, snapshot *model.Entitlements, ttl time.Duration) error {
	return db.CacheEntitlements(ctx, snapshot, ttl)
}

func (s *RedisStore) Delete(ctx context.Context, tenantID, principalID string) error {
	return db.DeleteCachedEntitlements(ctx, tenantID, principalID)
}
