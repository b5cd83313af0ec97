// fieldsec/evaluator.go
package fieldsec

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/audit"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/metrics"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/pdp/condition"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
)

// PolicySource loads the active field policies of one entity, ordered by
// priority ascending then id.
type PolicySource interface {
	ActivePoliciesForEntity(ctx context.Context, tenantID, entityKey string) ([]*model.FieldSecurityPolicy, error)
}

// SnapshotSource resolves the caller's entitlement snapshot.
type SnapshotSource interface {
	Get(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error)
}

// AuditSink receives one field-access record per field path checked.
type AuditSink interface {
	EmitFieldAccess(record audit.FieldAccessRecord)
}

// Evaluator answers field-mask queries. A field with no governing policy is
// plainly visible; a governing policy whose role or condition gate the caller
// fails yields the policy's mask strategy. Lookup failures mask everything
// rather than fail open.
type Evaluator struct {
	policies   PolicySource
	snapshots  SnapshotSource
	conditions condition.Evaluator
	sink       AuditSink
}

func NewEvaluator(policies PolicySource, snapshots SnapshotSource, conditions condition.Evaluator, sink AuditSink) *Evaluator {
	return &Evaluator{
		policies:   policies,
		snapshots:  snapshots,
		conditions: conditions,
		sink:       sink,
	}
}

// MaskFields resolves one mask decision per requested field path, keyed by
// path. It returns an error only for malformed requests.
func (e *Evaluator) MaskFields(ctx context.Context, req pdp_model.MaskRequest) (map[string]pdp_model.MaskDecision, error) {
	if req.TenantID == "" {
		return nil, arbiter_errors.ErrTenantRequired
	}
	if req.EntityKey == "" || !req.Action.Valid() {
		return nil, arbiter_errors.ErrInvalidFieldPolicyData
	}

	decisions := make(map[string]pdp_model.MaskDecision, len(req.FieldPaths))

	policies, err := e.policies.ActivePoliciesForEntity(ctx, req.TenantID, req.EntityKey)
	if err != nil {
		logger.Log.Error("field policy lookup failed",
			zap.String("tenantId", req.TenantID),
			zap.String("entityKey", req.EntityKey),
			zap.Error(err))
		for _, path := range req.FieldPaths {
			decisions[path] = e.record(req, path, pdp_model.MaskDecision{Allowed: false, Strategy: model.MaskRemove})
		}
		return decisions, nil
	}

	ents, err := e.snapshots.Get(ctx, req.TenantID, req.Subject.PrincipalID)
	if err != nil && !errors.Is(err, arbiter_errors.ErrPrincipalNotFound) {
		logger.Log.Error("entitlement resolution failed on field check",
			zap.String("tenantId", req.TenantID),
			zap.String("principalId", req.Subject.PrincipalID),
			zap.Error(err))
		for _, path := range req.FieldPaths {
			decisions[path] = e.record(req, path, pdp_model.MaskDecision{Allowed: false, Strategy: model.MaskRemove})
		}
		return decisions, nil
	}

	evalCtx := maskConditionContext(req)
	for _, path := range req.FieldPaths {
		decisions[path] = e.record(req, path, e.decideField(req, path, policies, ents, evalCtx))
	}
	return decisions, nil
}

// decideField applies the first applicable policy for the path; policies
// arrive already sorted by priority then id.
func (e *Evaluator) decideField(req pdp_model.MaskRequest, path string, policies []*model.FieldSecurityPolicy, ents *model.Entitlements, evalCtx map[string]string) pdp_model.MaskDecision {
	for _, policy := range policies {
		if policy.FieldPath != path || !policy.PolicyType.AppliesTo(req.Action) {
			continue
		}
		if !scopeApplies(policy, req.Scope) {
			continue
		}
		return e.applyPolicy(policy, ents, evalCtx)
	}
	// No policy governs this field.
	return pdp_model.MaskDecision{Allowed: true}
}

func (e *Evaluator) applyPolicy(policy *model.FieldSecurityPolicy, ents *model.Entitlements, evalCtx map[string]string) pdp_model.MaskDecision {
	masked := pdp_model.MaskDecision{Allowed: false, Strategy: policy.MaskStrategy, PolicyID: policy.ID}

	if len(policy.Roles) > 0 {
		if ents == nil || !hasAnyRole(ents, policy.Roles) {
			return masked
		}
	}
	if policy.Condition != "" {
		matches, err := e.conditions.Matches(policy.Condition, evalCtx)
		if err != nil {
			logger.Log.Warn("field policy condition failed to evaluate",
				zap.String("policyId", policy.ID), zap.Error(err))
			return masked
		}
		if !matches {
			return masked
		}
	}
	return pdp_model.MaskDecision{Allowed: true, PolicyID: policy.ID}
}

func (e *Evaluator) record(req pdp_model.MaskRequest, path string, decision pdp_model.MaskDecision) pdp_model.MaskDecision {
	metrics.RecordFieldCheck(string(req.Action), decision.Allowed)
	if e.sink != nil {
		e.sink.EmitFieldAccess(audit.FieldAccessRecord{
			Timestamp:   time.Now().UTC(),
			TenantID:    req.TenantID,
			PrincipalID: req.Subject.PrincipalID,
			EntityKey:   req.EntityKey,
			FieldPath:   path,
			Action:      string(req.Action),
			Allowed:     decision.Allowed,
			Strategy:    string(decision.Strategy),
			PolicyID:    decision.PolicyID,
		})
	}
	return decision
}

// scopeApplies checks the structural scope gate of a field policy against the
// request's target. Entity-scoped policies always apply; narrower scopes must
// name the request's version or record.
func scopeApplies(policy *model.FieldSecurityPolicy, scope pdp_model.ScopeContext) bool {
	switch policy.ScopeType {
	case "", model.ScopeEntity:
		return true
	case model.ScopeEntityVersion:
		return policy.ScopeKey == scope.EntityVersionKey
	case model.ScopeRecord:
		return policy.ScopeKey == scope.RecordID
	case model.ScopeModule:
		return policy.ScopeKey == scope.ModuleKey
	case model.ScopeGlobal:
		return true
	default:
		return false
	}
}

func hasAnyRole(ents *model.Entitlements, roles []string) bool {
	for _, role := range roles {
		if ents.HasRole(role) {
			return true
		}
	}
	return false
}

func maskConditionContext(req pdp_model.MaskRequest) map[string]string {
	evalCtx := make(map[string]string, len(req.Environment)+5)
	for k, v := range req.Environment {
		evalCtx[k] = v
	}
	evalCtx["tenant_id"] = req.TenantID
	evalCtx["principal_id"] = req.Subject.PrincipalID
	evalCtx["entity_key"] = req.EntityKey
	evalCtx["action"] = string(req.Action)
	if req.Scope.RecordID != "" {
		evalCtx["record_id"] = req.Scope.RecordID
	}
	if req.Scope.RecordOwnerID != "" {
		evalCtx["record_owner_id"] = req.Scope.RecordOwnerID
	}
	return evalCtx
}
