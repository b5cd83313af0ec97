// pdp/engine/evaluator.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/audit"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/metrics"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/ou"
	"github.com/arbiterhq/arbiter/pdp/condition"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
)

// SnapshotSource resolves the caller's entitlement snapshot.
type SnapshotSource interface {
	Get(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error)
}

// ArtifactSource supplies compiled decision artifacts, building them on
// demand when a published version has not been compiled in this process yet.
type ArtifactSource interface {
	Artifact(tenantID, policyVersionID string) *pdp_model.CompiledArtifact
	Compile(ctx context.Context, tenantID, policyVersionID string) (*pdp_model.CompiledArtifact, error)
}

// PolicyStore lists the policy versions currently in force for a tenant.
type PolicyStore interface {
	PublishedVersionIDs(ctx context.Context, tenantID string) ([]string, error)
}

// EntityPolicySource looks up the per-entity default attached below the rule
// layer at one scope level.
type EntityPolicySource interface {
	FindEntityPolicy(ctx context.Context, tenantID string, level model.ScopeType, key string) (*model.EntityPolicy, error)
}

// AuditSink receives exactly one record per decision, fire-and-forget.
type AuditSink interface {
	EmitDecision(record audit.DecisionRecord)
}

// Evaluator answers access queries against the compiled rule index, falling
// through persona capabilities and entity defaults when no rule matches.
// Decisions never fail open: any internal failure on the evaluation path
// resolves to deny.
type Evaluator struct {
	snapshots      SnapshotSource
	artifacts      ArtifactSource
	policies       PolicyStore
	entityPolicies EntityPolicySource
	conditions     condition.Evaluator
	sink           AuditSink
	operations     map[string]model.Operation
}

func NewEvaluator(
	snapshots SnapshotSource,
	artifacts ArtifactSource,
	policies PolicyStore,
	entityPolicies EntityPolicySource,
	conditions condition.Evaluator,
	sink AuditSink,
) *Evaluator {
	operations := make(map[string]model.Operation)
	for _, op := range model.DefaultOperations() {
		operations[op.Code] = op
	}
	return &Evaluator{
		snapshots:      snapshots,
		artifacts:      artifacts,
		policies:       policies,
		entityPolicies: entityPolicies,
		conditions:     conditions,
		sink:           sink,
		operations:     operations,
	}
}

// Decide evaluates one access request. It returns an error only for
// malformed requests; every well-formed request produces a decision, and a
// broken backend produces a deny, not an error.
func (e *Evaluator) Decide(ctx context.Context, req pdp_model.AccessRequest) (*pdp_model.Decision, error) {
	if req.TenantID == "" {
		return nil, arbiter_errors.ErrTenantRequired
	}
	if req.Operation == "" {
		return nil, arbiter_errors.ErrUnknownOperation
	}
	start := time.Now()

	decision := e.decide(ctx, req)

	metrics.RecordDecision(string(decision.Effect), time.Since(start))
	if e.sink != nil {
		e.sink.EmitDecision(audit.DecisionRecord{
			Timestamp:              time.Now().UTC(),
			TenantID:               req.TenantID,
			PrincipalID:            req.Subject.PrincipalID,
			Operation:              req.Operation,
			EntityKey:              req.Scope.EntityKey,
			RecordID:               req.Scope.RecordID,
			Effect:                 string(decision.Effect),
			MatchedRuleID:          decision.MatchedRuleID,
			MatchedPolicyVersionID: decision.MatchedPolicyVersionID,
			Reason:                 decision.Reason,
		})
	}
	return decision, nil
}

func (e *Evaluator) decide(ctx context.Context, req pdp_model.AccessRequest) *pdp_model.Decision {
	if err := ctx.Err(); err != nil {
		return deny("request canceled before evaluation")
	}

	if op, known := e.operations[req.Operation]; known {
		if op.RequiresRecord && req.Scope.RecordID == "" {
			return deny(fmt.Sprintf("operation %s requires a record target", op.Code))
		}
		if op.RequiresOwnership && req.Scope.RecordOwnerID == "" {
			return deny(fmt.Sprintf("operation %s requires record ownership facts", op.Code))
		}
	}

	ents, err := e.snapshots.Get(ctx, req.TenantID, req.Subject.PrincipalID)
	if err != nil {
		if errors.Is(err, arbiter_errors.ErrPrincipalNotFound) {
			// Unknown principals carry no rules or capabilities; only the
			// entity defaults can still speak for them.
			logger.Log.Debug("principal not found, falling through to entity defaults",
				zap.String("tenantId", req.TenantID),
				zap.String("principalId", req.Subject.PrincipalID))
			return e.fallback(ctx, req, "principal unresolved")
		}
		logger.Log.Error("entitlement resolution failed",
			zap.String("tenantId", req.TenantID),
			zap.String("principalId", req.Subject.PrincipalID),
			zap.Error(err))
		return deny("entitlement resolution failed")
	}

	ouScope := e.ouScopeMode(ctx, req)

	matched, internalErr := e.matchRules(ctx, req, ents, ouScope)
	if internalErr != nil {
		logger.Log.Error("rule evaluation failed", zap.String("tenantId", req.TenantID), zap.Error(internalErr))
		return deny("rule evaluation failed")
	}
	if matched != nil {
		return &pdp_model.Decision{
			Effect:                 matched.Effect,
			MatchedRuleID:          matched.RuleID,
			MatchedPolicyVersionID: matched.PolicyVersionID,
			Reason:                 fmt.Sprintf("rule %s (%s scope)", matched.RuleID, matched.ScopeType),
		}
	}

	if cap, ok := e.capabilityGrant(req, ents); ok {
		return &pdp_model.Decision{
			Effect: model.EffectAllow,
			Reason: fmt.Sprintf("persona capability %s/%s", cap.Operation, cap.Constraint),
		}
	}

	return e.fallback(ctx, req, "no matching rule")
}

// matchRules walks every published version's compiled index and returns the
// first applicable candidate under the deterministic ordering: priority
// ascending, scope specificity descending, rule id ascending.
func (e *Evaluator) matchRules(ctx context.Context, req pdp_model.AccessRequest, ents *model.Entitlements, ouScope model.OUScopeMode) (*pdp_model.IndexedRule, error) {
	versionIDs, err := e.policies.PublishedVersionIDs(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if len(versionIDs) == 0 {
		return nil, nil
	}

	scopeKeys := scopePairs(req.Scope)
	subjectKeys := subjectPairs(req.Subject, ents)

	var candidates []*pdp_model.IndexedRule
	for _, versionID := range versionIDs {
		artifact := e.artifacts.Artifact(req.TenantID, versionID)
		if artifact == nil {
			artifact, err = e.artifacts.Compile(ctx, req.TenantID, versionID)
			if err != nil {
				return nil, err
			}
		}
		for _, sc := range scopeKeys {
			for _, sub := range subjectKeys {
				bucket := artifact.Lookup(pdp_model.IndexKey{
					ScopeType:   sc.scopeType,
					ScopeKey:    sc.scopeKey,
					SubjectType: sub.subjectType,
					SubjectKey:  sub.subjectKey,
				})
				candidates = append(candidates, bucket...)
			}
		}
	}
	pdp_model.SortRules(candidates)

	evalCtx := conditionContext(req)
	for _, rule := range candidates {
		constraint, grants := rule.Operations[req.Operation]
		if !grants {
			continue
		}
		if rule.ScopeType == model.ScopeRecord && ouScope == model.OUScopeStrict {
			if !recordInCallerSubtree(req.Scope.RecordOUPath, ents.OUPaths) {
				continue
			}
		}
		if !constraintSatisfied(constraint, req, ents) {
			continue
		}
		if rule.Condition != "" {
			matches, condErr := e.conditions.Matches(rule.Condition, evalCtx)
			if condErr != nil {
				logger.Log.Warn("rule condition failed to evaluate",
					zap.String("ruleId", rule.RuleID), zap.Error(condErr))
				if rule.Effect == model.EffectDeny {
					// A broken deny rule fails closed.
					return rule, nil
				}
				continue
			}
			if !matches {
				continue
			}
		}
		return rule, nil
	}
	return nil, nil
}

// capabilityGrant consults the snapshot's persona-expanded capabilities after
// the rule layer has had its say. Capabilities only ever allow.
func (e *Evaluator) capabilityGrant(req pdp_model.AccessRequest, ents *model.Entitlements) (model.Capability, bool) {
	for _, cap := range ents.Capabilities {
		if cap.Operation != req.Operation {
			continue
		}
		if constraintSatisfied(cap.Constraint, req, ents) {
			return cap, true
		}
	}
	return model.Capability{}, false
}

// fallback walks the entity default chain from narrowest to broadest:
// entity version, entity, module, then the tenant-global default. An inherit
// mode defers to the next level; an absent chain denies.
func (e *Evaluator) fallback(ctx context.Context, req pdp_model.AccessRequest, cause string) *pdp_model.Decision {
	type level struct {
		scope model.ScopeType
		key   string
	}
	levels := []level{
		{model.ScopeEntityVersion, req.Scope.EntityVersionKey},
		{model.ScopeEntity, req.Scope.EntityKey},
		{model.ScopeModule, req.Scope.ModuleKey},
		{model.ScopeGlobal, ""},
	}
	for _, lv := range levels {
		if lv.scope != model.ScopeGlobal && lv.key == "" {
			continue
		}
		policy, err := e.entityPolicies.FindEntityPolicy(ctx, req.TenantID, lv.scope, lv.key)
		if err != nil {
			if errors.Is(err, arbiter_errors.ErrEntityPolicyNotFound) {
				continue
			}
			logger.Log.Error("entity policy lookup failed",
				zap.String("tenantId", req.TenantID), zap.Error(err))
			return deny(cause + "; entity policy lookup failed")
		}
		switch policy.AccessMode {
		case model.AccessDefaultAllow:
			return &pdp_model.Decision{
				Effect: model.EffectAllow,
				Reason: fmt.Sprintf("%s; %s default allow", cause, lv.scope),
			}
		case model.AccessDefaultDeny:
			return deny(fmt.Sprintf("%s; %s default deny", cause, lv.scope))
		case model.AccessInherit:
			continue
		}
	}
	return deny(cause + "; no applicable policy")
}

// ouScopeMode resolves the OU scoping mode governing record-scoped rules for
// this request's entity, narrowest declaration first. Lookup failures relax
// to any rather than silently tightening unrelated rules.
func (e *Evaluator) ouScopeMode(ctx context.Context, req pdp_model.AccessRequest) model.OUScopeMode {
	type level struct {
		scope model.ScopeType
		key   string
	}
	for _, lv := range []level{
		{model.ScopeEntityVersion, req.Scope.EntityVersionKey},
		{model.ScopeEntity, req.Scope.EntityKey},
	} {
		if lv.key == "" {
			continue
		}
		policy, err := e.entityPolicies.FindEntityPolicy(ctx, req.TenantID, lv.scope, lv.key)
		if err != nil {
			continue
		}
		if policy.OUScopeMode != "" {
			return policy.OUScopeMode
		}
	}
	return model.OUScopeAny
}

func deny(reason string) *pdp_model.Decision {
	return &pdp_model.Decision{Effect: model.EffectDeny, Reason: reason}
}

type scopePair struct {
	scopeType model.ScopeType
	scopeKey  string
}

func scopePairs(scope pdp_model.ScopeContext) []scopePair {
	pairs := []scopePair{{model.ScopeGlobal, ""}}
	if scope.ModuleKey != "" {
		pairs = append(pairs, scopePair{model.ScopeModule, scope.ModuleKey})
	}
	if scope.EntityKey != "" {
		pairs = append(pairs, scopePair{model.ScopeEntity, scope.EntityKey})
	}
	if scope.EntityVersionKey != "" {
		pairs = append(pairs, scopePair{model.ScopeEntityVersion, scope.EntityVersionKey})
	}
	if scope.RecordID != "" {
		pairs = append(pairs, scopePair{model.ScopeRecord, scope.RecordID})
	}
	return pairs
}

type subjectPair struct {
	subjectType model.SubjectType
	subjectKey  string
}

func subjectPairs(subject pdp_model.Subject, ents *model.Entitlements) []subjectPair {
	kind := subject.Kind
	if kind == "" {
		kind = model.SubjectUser
	}
	pairs := []subjectPair{{kind, subject.PrincipalID}}
	for _, role := range ents.Roles {
		pairs = append(pairs, subjectPair{model.SubjectRole, role})
	}
	for _, group := range ents.Groups {
		pairs = append(pairs, subjectPair{model.SubjectGroup, group})
	}
	return pairs
}

// constraintSatisfied narrows a grant at match time. An unsatisfied
// constraint means the rule or capability does not apply, for allow and deny
// alike.
func constraintSatisfied(constraint model.ConstraintType, req pdp_model.AccessRequest, ents *model.Entitlements) bool {
	switch constraint {
	case "", model.ConstraintNone:
		return true
	case model.ConstraintOwn:
		return req.Scope.RecordOwnerID != "" && req.Scope.RecordOwnerID == req.Subject.PrincipalID
	case model.ConstraintOU:
		return recordInCallerSubtree(req.Scope.RecordOUPath, ents.OUPaths)
	case model.ConstraintModule:
		return req.Scope.ModuleKey != "" && ents.HasModule(req.Scope.ModuleKey)
	default:
		return false
	}
}

func recordInCallerSubtree(recordPath string, callerPaths []string) bool {
	if recordPath == "" {
		return false
	}
	for _, callerPath := range callerPaths {
		if ou.IsInSubtree(recordPath, callerPath) {
			return true
		}
	}
	return false
}

// conditionContext flattens the request into the key set rule conditions see.
// Caller-supplied environment entries never shadow the structural keys.
func conditionContext(req pdp_model.AccessRequest) map[string]string {
	evalCtx := make(map[string]string, len(req.Environment)+9)
	for k, v := range req.Environment {
		evalCtx[k] = v
	}
	evalCtx["tenant_id"] = req.TenantID
	evalCtx["principal_id"] = req.Subject.PrincipalID
	evalCtx["operation"] = req.Operation
	if req.Scope.ModuleKey != "" {
		evalCtx["module_key"] = req.Scope.ModuleKey
	}
	if req.Scope.EntityKey != "" {
		evalCtx["entity_key"] = req.Scope.EntityKey
	}
	if req.Scope.EntityVersionKey != "" {
		evalCtx["entity_version_key"] = req.Scope.EntityVersionKey
	}
	if req.Scope.RecordID != "" {
		evalCtx["record_id"] = req.Scope.RecordID
	}
	if req.Scope.RecordOwnerID != "" {
		evalCtx["record_owner_id"] = req.Scope.RecordOwnerID
	}
	if req.Scope.RecordOUPath != "" {
		evalCtx["record_ou_path"] = req.Scope.RecordOUPath
	}
	return evalCtx
}
