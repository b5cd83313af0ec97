package entitlement_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/dao"
	"github.com/arbiterhq/arbiter/entitlement"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/persona"
)

type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string]*model.Entitlements
	getErr    error
	putErr    error
	deletes   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{snapshots: make(map[string]*model.Entitlements)}
}

func (s *memoryStore) Get(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.snapshots[tenantID+":"+principalID], nil
}

func (s *memoryStore) Put(ctx context.Context, snapshot *model.Entitlements, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.snapshots[snapshot.TenantID+":"+snapshot.PrincipalID] = snapshot
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, tenantID, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.snapshots, tenantID+":"+principalID)
	return nil
}

type fakeFactSource struct {
	facts   *dao.IdentityFacts
	err     error
	fetches atomic.Int64
	block   chan struct{}
}

func (f *fakeFactSource) FetchFacts(ctx context.Context, tenantID, principalID string) (*dao.IdentityFacts, error) {
	f.fetches.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.facts, nil
}

func testFacts() *dao.IdentityFacts {
	return &dao.IdentityFacts{
		PrincipalID: "u1",
		Kind:        model.SubjectUser,
		Roles:       []string{"agent"},
		Groups:      []string{"support"},
		OUPaths:     []string{"/acme/emea"},
		Modules:     []string{"crm"},
		Personas:    []string{"viewer", "agent"},
	}
}

func newCache(t *testing.T, store entitlement.SnapshotStore, facts entitlement.FactSource, ttl time.Duration) *entitlement.Cache {
	t.Helper()
	logger.InitLogger(t.TempDir())
	return entitlement.NewCache(store, facts, persona.NewRegistry(), ttl)
}

func TestGetComputesAndCaches(t *testing.T) {
	store := newMemoryStore()
	facts := &fakeFactSource{facts: testFacts()}
	cache := newCache(t, store, facts, 5*time.Minute)

	snapshot, err := cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"agent"}, snapshot.Roles)
	assert.Equal(t, []string{"/acme/emea"}, snapshot.OUPaths)
	assert.NotEmpty(t, snapshot.Capabilities, "persona bundles expand into capabilities")
	assert.True(t, snapshot.ExpiresAt.After(snapshot.ComputedAt))

	// Second lookup is served from the store, not recomputed.
	_, err = cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), facts.fetches.Load())
}

func TestGetRecomputesExpiredSnapshot(t *testing.T) {
	store := newMemoryStore()
	facts := &fakeFactSource{facts: testFacts()}
	cache := newCache(t, store, facts, time.Nanosecond)

	_, err := cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), facts.fetches.Load(), "expired entries are recomputed")
}

func TestGetCollapsesConcurrentMisses(t *testing.T) {
	store := newMemoryStore()
	facts := &fakeFactSource{facts: testFacts(), block: make(chan struct{})}
	cache := newCache(t, store, facts, 5*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), "t1", "u1")
			assert.NoError(t, err)
		}()
	}
	// Let every goroutine reach the singleflight gate before releasing.
	time.Sleep(50 * time.Millisecond)
	close(facts.block)
	wg.Wait()

	assert.Equal(t, int64(1), facts.fetches.Load(), "concurrent misses share one computation")
}

func TestGetStoreOutageRecomputesSynchronously(t *testing.T) {
	store := newMemoryStore()
	store.getErr = arbiter_errors.ErrCacheUnavailable
	facts := &fakeFactSource{facts: testFacts()}
	cache := newCache(t, store, facts, 5*time.Minute)

	snapshot, err := cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", snapshot.PrincipalID)
}

func TestGetPropagatesPrincipalNotFound(t *testing.T) {
	store := newMemoryStore()
	facts := &fakeFactSource{err: arbiter_errors.ErrPrincipalNotFound}
	cache := newCache(t, store, facts, 5*time.Minute)

	_, err := cache.Get(context.Background(), "t1", "ghost")
	assert.ErrorIs(t, err, arbiter_errors.ErrPrincipalNotFound)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	store := newMemoryStore()
	facts := &fakeFactSource{facts: testFacts()}
	cache := newCache(t, store, facts, 5*time.Minute)

	_, err := cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(context.Background(), "t1", "u1"))
	assert.Equal(t, 1, store.deletes)

	facts.facts = &dao.IdentityFacts{PrincipalID: "u1", Kind: model.SubjectUser, Roles: []string{"manager"}}
	snapshot, err := cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"manager"}, snapshot.Roles, "invalidation takes effect on the next lookup")
	assert.Equal(t, int64(2), facts.fetches.Load())
}

func TestExpandSkipsUnknownPersona(t *testing.T) {
	store := newMemoryStore()
	facts := &fakeFactSource{facts: &dao.IdentityFacts{
		PrincipalID: "u1",
		Kind:        model.SubjectUser,
		Personas:    []string{"viewer", "retired-persona"},
	}}
	cache := newCache(t, store, facts, 5*time.Minute)

	snapshot, err := cache.Get(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, snapshot.Capabilities, "known personas still expand")
	for _, cap := range snapshot.Capabilities {
		assert.NotEmpty(t, cap.Operation)
	}
}
