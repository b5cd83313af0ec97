package audit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/audit"
	logger "github.com/arbiterhq/arbiter/logging"
)

type recordingRepository struct {
	mu        sync.Mutex
	decisions []audit.DecisionRecord
	fields    []audit.FieldAccessRecord
	block     chan struct{}
}

func (r *recordingRepository) IndexDecision(ctx context.Context, record audit.DecisionRecord) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, record)
	return nil
}

func (r *recordingRepository) IndexFieldAccess(ctx context.Context, record audit.FieldAccessRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields = append(r.fields, record)
	return nil
}

func (r *recordingRepository) QueryDecisions(ctx context.Context, from, to time.Time, tenantID, principalID string) ([]audit.DecisionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.DecisionRecord(nil), r.decisions...), nil
}

func (r *recordingRepository) decisionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.decisions)
}

func TestEmitterDeliversRecords(t *testing.T) {
	logger.InitLogger(t.TempDir())

	repo := &recordingRepository{}
	emitter := audit.NewEmitter(repo, 16)
	emitter.Start(context.Background())

	emitter.EmitDecision(audit.DecisionRecord{TenantID: "t1", PrincipalID: "u1", Effect: "allow"})
	emitter.EmitFieldAccess(audit.FieldAccessRecord{TenantID: "t1", FieldPath: "salary", Allowed: false})

	emitter.Close()

	assert.Equal(t, 1, repo.decisionCount())
	assert.Len(t, repo.fields, 1)
	assert.EqualValues(t, 0, emitter.Dropped())
}

func TestEmitterNeverBlocksWhenFull(t *testing.T) {
	logger.InitLogger(t.TempDir())

	// The repository never finishes indexing, so the buffer fills up.
	repo := &recordingRepository{block: make(chan struct{})}
	emitter := audit.NewEmitter(repo, 1)
	emitter.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			emitter.EmitDecision(audit.DecisionRecord{TenantID: "t1", Effect: "deny"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("EmitDecision blocked on a full buffer")
	}

	require.Greater(t, emitter.Dropped(), int64(0), "overflow must be counted, not awaited")
	close(repo.block)
	emitter.Close()
}
