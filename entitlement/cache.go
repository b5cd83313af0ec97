// entitlement/cache.go
package entitlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/arbiterhq/arbiter/dao"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/metrics"
	"github.com/arbiterhq/arbiter/model"
)

// FactSource loads the raw identity facts a snapshot is computed from.
type FactSource interface {
	FetchFacts(ctx context.Context, tenantID, principalID string) (*dao.IdentityFacts, error)
}

// CapabilitySource expands one persona code into its capability grants.
type CapabilitySource interface {
	Capabilities(personaCode string) ([]model.Capability, error)
}

// Cache materializes entitlement snapshots on demand and keeps them in the
// shared store under a TTL. Concurrent misses for the same principal collapse
// into one recomputation; a broken store degrades to synchronous recompute
// instead of failing the decision path.
type Cache struct {
	store    SnapshotStore
	facts    FactSource
	personas CapabilitySource
	ttl      time.Duration
	group    singleflight.Group

	now func() time.Time
}

func NewCache(store SnapshotStore, facts FactSource, personas CapabilitySource, ttl time.Duration) *Cache {
	return &Cache{
		store:    store,
		facts:    facts,
		personas: personas,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the current snapshot for one principal, recomputing when the
// store misses, the entry has expired, or the store is unreachable.
func (c *Cache) Get(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error) {
	snapshot, err := c.store.Get(ctx, tenantID, principalID)
	if err != nil {
		logger.Log.Warn("snapshot store unavailable, recomputing synchronously",
			zap.String("tenantId", tenantID),
			zap.String("principalId", principalID),
			zap.Error(err))
		metrics.RecordSnapshotLookup("store_error")
		return c.recompute(ctx, tenantID, principalID)
	}
	if snapshot != nil && c.now().Before(snapshot.ExpiresAt) {
		metrics.RecordSnapshotLookup("hit")
		return snapshot, nil
	}
	if snapshot != nil {
		metrics.RecordSnapshotLookup("stale")
	} else {
		metrics.RecordSnapshotLookup("miss")
	}
	return c.recompute(ctx, tenantID, principalID)
}

// Invalidate proactively drops one principal's snapshot after an identity
// write, so the next decision sees the change immediately.
func (c *Cache) Invalidate(ctx context.Context, tenantID, principalID string) error {
	if err := c.store.Delete(ctx, tenantID, principalID); err != nil {
		return fmt.Errorf("failed to invalidate entitlement snapshot: %w", err)
	}
	return nil
}

func (c *Cache) recompute(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error) {
	key := tenantID + ":" + principalID
	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.compute(ctx, tenantID, principalID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.Entitlements), nil
}

func (c *Cache) compute(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error) {
	facts, err := c.facts.FetchFacts(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}

	computedAt := c.now()
	snapshot := &model.Entitlements{
		TenantID:     tenantID,
		PrincipalID:  principalID,
		Kind:         facts.Kind,
		Roles:        facts.Roles,
		Groups:       facts.Groups,
		OUPaths:      facts.OUPaths,
		Modules:      facts.Modules,
		Personas:     facts.Personas,
		Capabilities: c.expandPersonas(facts.Personas),
		ComputedAt:   computedAt,
		ExpiresAt:    computedAt.Add(c.ttl),
	}

	// A store write failure costs a recompute on the next lookup, nothing more.
	if putErr := c.store.Put(ctx, snapshot, c.ttl); putErr != nil {
		logger.Log.Warn("failed to persist entitlement snapshot",
			zap.String("tenantId", tenantID),
			zap.String("principalId", principalID),
			zap.Error(putErr))
	}
	return snapshot, nil
}

// expandPersonas flattens persona bundles into a deduplicated, deterministic
// capability list. Unknown persona codes are skipped, not fatal: a stale
// grant must not take down the principal's remaining entitlements.
func (c *Cache) expandPersonas(personaCodes []string) []model.Capability {
	seen := make(map[model.Capability]bool)
	var caps []model.Capability
	for _, code := range personaCodes {
		bundle, err := c.personas.Capabilities(code)
		if err != nil {
			logger.Log.Warn("skipping unknown persona during snapshot expansion",
				zap.String("persona", code), zap.Error(err))
			continue
		}
		for _, cap := range bundle {
			if !seen[cap] {
				seen[cap] = true
				caps = append(caps, cap)
			}
		}
	}
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].Operation != caps[j].Operation {
			return caps[i].Operation < caps[j].Operation
		}
		return caps[i].Constraint < caps[j].Constraint
	})
	return caps
}
