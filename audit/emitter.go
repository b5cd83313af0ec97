// audit/emitter.go
package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	logger "github.com/arbiterhq/arbiter/logging"
)

// Emitter decouples decision evaluation from the audit sink. Emission is
// fire-and-forget: a full buffer drops the record (and counts the drop)
// rather than blocking or failing the decision. Retry and dead-lettering
// belong to the external sink, not here.
type Emitter struct {
	repo      Repository
	decisions chan DecisionRecord
	fields    chan FieldAccessRecord
	dropped   atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

func NewEmitter(repo Repository, bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Emitter{
		repo:      repo,
		decisions: make(chan DecisionRecord, bufferSize),
		fields:    make(chan FieldAccessRecord, bufferSize),
		stop:      make(chan struct{}),
	}
}

// Start launches the background writers.
func (e *Emitter) Start(ctx context.Context) {
	e.wg.Add(2)
	go e.drainDecisions(ctx)
	go e.drainFieldAccess(ctx)
}

// EmitDecision enqueues one decision record without ever blocking the caller.
func (e *Emitter) EmitDecision(record DecisionRecord) {
	select {
	case e.decisions <- record:
	default:
		n := e.dropped.Add(1)
		logger.Warn("Audit buffer full, decision record dropped",
			zap.String("tenantID", record.TenantID),
			zap.String("principalID", record.PrincipalID),
			zap.Int64("totalDropped", n))
	}
}

// EmitFieldAccess enqueues one field-access record without blocking.
func (e *Emitter) EmitFieldAccess(record FieldAccessRecord) {
	select {
	case e.fields <- record:
	default:
		n := e.dropped.Add(1)
		logger.Warn("Audit buffer full, field access record dropped",
			zap.String("tenantID", record.TenantID),
			zap.String("fieldPath", record.FieldPath),
			zap.Int64("totalDropped", n))
	}
}

// Dropped returns the number of records lost to a full buffer.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close stops the writers after draining what is already buffered.
func (e *Emitter) Close() {
	e.stopOnce.Do(func() { close(e.stop) })
	e.wg.Wait()
}

func (e *Emitter) drainDecisions(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case record := <-e.decisions:
			if err := e.repo.IndexDecision(ctx, record); err != nil {
				// The decision is already final; emission failures are logged
				// and left to the sink's out-of-band retry.
				logger.Error("Failed to index decision record", zap.Error(err))
			}
		case <-e.stop:
			e.flushDecisions(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Emitter) drainFieldAccess(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case record := <-e.fields:
			if err := e.repo.IndexFieldAccess(ctx, record); err != nil {
				logger.Error("Failed to index field access record", zap.Error(err))
			}
		case <-e.stop:
			e.flushFieldAccess(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *Emitter) flushDecisions(ctx context.Context) {
	for {
		select {
		case record := <-e.decisions:
			if err := e.repo.IndexDecision(ctx, record); err != nil {
				logger.Error("Failed to index decision record during flush", zap.Error(err))
			}
		default:
			return
		}
	}
}

func (e *Emitter) flushFieldAccess(ctx context.Context) {
	for {
		select {
		case record := <-e.fields:
			if err := e.repo.IndexFieldAccess(ctx, record); err != nil {
				logger.Error("Failed to index field access record during flush", zap.Error(err))
			}
		default:
			return
		}
	}
}
