package engine_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/audit"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/pdp/condition"
	"github.com/arbiterhq/arbiter/pdp/engine"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
)

type fakeSnapshots struct {
	snapshot *model.Entitlements
	err      error
}

func (f *fakeSnapshots) Get(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

type fakeArtifacts struct {
	artifacts map[string]*pdp_model.CompiledArtifact
}

func (f *fakeArtifacts) Artifact(tenantID, versionID string) *pdp_model.CompiledArtifact {
	return f.artifacts[tenantID+"|"+versionID]
}

func (f *fakeArtifacts) Compile(ctx context.Context, tenantID, versionID string) (*pdp_model.CompiledArtifact, error) {
	if a := f.Artifact(tenantID, versionID); a != nil {
		return a, nil
	}
	return nil, arbiter_errors.ErrPolicyVersionNotFound
}

type fakePolicies struct {
	versionIDs []string
}

func (f *fakePolicies) PublishedVersionIDs(ctx context.Context, tenantID string) ([]string, error) {
	return f.versionIDs, nil
}

type fakeEntityPolicies struct {
	policies map[string]*model.EntityPolicy
}

func (f *fakeEntityPolicies) FindEntityPolicy(ctx context.Context, tenantID string, level model.ScopeType, key string) (*model.EntityPolicy, error) {
	if p, ok := f.policies[string(level)+"|"+key]; ok {
		return p, nil
	}
	return nil, arbiter_errors.ErrEntityPolicyNotFound
}

type recordingSink struct {
	mu      sync.Mutex
	records []audit.DecisionRecord
}

func (s *recordingSink) EmitDecision(record audit.DecisionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// buildArtifact indexes rules the way the compiler would, pre-sorted buckets
// included.
func buildArtifact(tenantID, versionID string, rules ...*pdp_model.IndexedRule) *pdp_model.CompiledArtifact {
	index := make(map[pdp_model.IndexKey][]*pdp_model.IndexedRule)
	for _, r := range rules {
		r.PolicyVersionID = versionID
		key := pdp_model.IndexKey{
			ScopeType: r.ScopeType, ScopeKey: r.ScopeKey,
			SubjectType: model.SubjectRole, SubjectKey: "agent",
		}
		index[key] = append(index[key], r)
	}
	for _, bucket := range index {
		pdp_model.SortRules(bucket)
	}
	return &pdp_model.CompiledArtifact{
		TenantID: tenantID, PolicyVersionID: versionID,
		Hash: "test", Index: index, RuleCount: len(rules),
	}
}

func entityRule(id string, effect model.Effect, priority int, ops ...string) *pdp_model.IndexedRule {
	operations := make(map[string]model.ConstraintType, len(ops))
	for _, op := range ops {
		operations[op] = model.ConstraintNone
	}
	return &pdp_model.IndexedRule{
		RuleID: id, ScopeType: model.ScopeEntity, ScopeKey: "ticket",
		Effect: effect, Priority: priority, Operations: operations,
	}
}

func agentSnapshot() *model.Entitlements {
	return &model.Entitlements{
		TenantID: "t1", PrincipalID: "u1", Kind: model.SubjectUser,
		Roles:   []string{"agent"},
		OUPaths: []string{"/acme/emea"},
	}
}

func newEvaluator(t *testing.T, snapshots engine.SnapshotSource, artifacts engine.ArtifactSource, policies engine.PolicyStore, entityPolicies engine.EntityPolicySource, sink engine.AuditSink) *engine.Evaluator {
	t.Helper()
	logger.InitLogger(t.TempDir())
	conditions, err := condition.NewCELEvaluator()
	require.NoError(t, err)
	return engine.NewEvaluator(snapshots, artifacts, policies, entityPolicies, conditions, sink)
}

func ticketRequest(op string) pdp_model.AccessRequest {
	return pdp_model.AccessRequest{
		TenantID:  "t1",
		Subject:   pdp_model.Subject{PrincipalID: "u1", Kind: model.SubjectUser},
		Operation: op,
		Scope:     pdp_model.ScopeContext{EntityKey: "ticket"},
	}
}

func TestDecidePriorityOrdersFirstMatch(t *testing.T) {
	artifact := buildArtifact("t1", "v1",
		entityRule("r-deny", model.EffectDeny, 10, "read"),
		entityRule("r-allow", model.EffectAllow, 20, "read"),
	)
	sink := &recordingSink{}
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": artifact}},
		&fakePolicies{versionIDs: []string{"v1"}},
		&fakeEntityPolicies{},
		sink,
	)

	decision, err := ev.Decide(context.Background(), ticketRequest("read"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)
	assert.Equal(t, "r-deny", decision.MatchedRuleID)

	// Flip the priorities and the allow rule wins instead.
	flipped := buildArtifact("t1", "v1",
		entityRule("r-deny", model.EffectDeny, 20, "read"),
		entityRule("r-allow", model.EffectAllow, 10, "read"),
	)
	ev = newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": flipped}},
		&fakePolicies{versionIDs: []string{"v1"}},
		&fakeEntityPolicies{},
		sink,
	)
	decision, err = ev.Decide(context.Background(), ticketRequest("read"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)
	assert.Equal(t, "r-allow", decision.MatchedRuleID)
}

func TestDecideEqualPriorityTieBreaksByRuleID(t *testing.T) {
	artifact := buildArtifact("t1", "v1",
		entityRule("r-b", model.EffectDeny, 10, "read"),
		entityRule("r-a", model.EffectAllow, 10, "read"),
	)
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": artifact}},
		&fakePolicies{versionIDs: []string{"v1"}},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	// Identical inputs always pick the same rule, regardless of iteration order.
	for i := 0; i < 20; i++ {
		decision, err := ev.Decide(context.Background(), ticketRequest("read"))
		require.NoError(t, err)
		assert.Equal(t, "r-a", decision.MatchedRuleID)
		assert.Equal(t, model.EffectAllow, decision.Effect)
	}
}

func TestDecideOwnConstraint(t *testing.T) {
	rule := entityRule("r1", model.EffectAllow, 10)
	rule.Operations = map[string]model.ConstraintType{"update": model.ConstraintOwn}
	artifact := buildArtifact("t1", "v1", rule)
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": artifact}},
		&fakePolicies{versionIDs: []string{"v1"}},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	req := ticketRequest("update")
	req.Scope.RecordID = "rec1"
	req.Scope.RecordOwnerID = "u1"
	decision, err := ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)

	req.Scope.RecordOwnerID = "someone-else"
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)
}

func TestDecideOUConstraint(t *testing.T) {
	rule := entityRule("r1", model.EffectAllow, 10)
	rule.Operations = map[string]model.ConstraintType{"read": model.ConstraintOU}
	artifact := buildArtifact("t1", "v1", rule)
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": artifact}},
		&fakePolicies{versionIDs: []string{"v1"}},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	req := ticketRequest("read")
	req.Scope.RecordOUPath = "/acme/emea/west"
	decision, err := ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect, "record inside the caller's OU subtree")

	req.Scope.RecordOUPath = "/acme/apac"
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect, "sibling subtree is out of scope")
}

func TestDecideConditionGatesRule(t *testing.T) {
	rule := entityRule("r1", model.EffectAllow, 10, "read")
	rule.Condition = `ctx["channel"] == "api"`
	artifact := buildArtifact("t1", "v1", rule)
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": artifact}},
		&fakePolicies{versionIDs: []string{"v1"}},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	req := ticketRequest("read")
	req.Environment = map[string]string{"channel": "api"}
	decision, err := ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)

	req.Environment = map[string]string{"channel": "batch"}
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)
}

func TestDecidePersonaCapabilityAfterRules(t *testing.T) {
	snapshot := agentSnapshot()
	snapshot.Capabilities = []model.Capability{
		{Operation: "export", Constraint: model.ConstraintNone},
	}
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: snapshot},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{}},
		&fakePolicies{},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	decision, err := ev.Decide(context.Background(), ticketRequest("export"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)
	assert.Empty(t, decision.MatchedRuleID, "capability grants carry no rule id")

	decision, err = ev.Decide(context.Background(), ticketRequest("delete"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)
}

func TestDecideEntityDefaultFallback(t *testing.T) {
	entityPolicies := &fakeEntityPolicies{policies: map[string]*model.EntityPolicy{
		"entity|ticket": {TenantID: "t1", EntityKey: "ticket", AccessMode: model.AccessDefaultAllow},
		"entity|vault":  {TenantID: "t1", EntityKey: "vault", AccessMode: model.AccessDefaultDeny},
	}}
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{}},
		&fakePolicies{},
		entityPolicies,
		&recordingSink{},
	)

	decision, err := ev.Decide(context.Background(), ticketRequest("read"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)

	req := ticketRequest("read")
	req.Scope.EntityKey = "vault"
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)

	// No entity policy anywhere in the chain denies.
	req.Scope.EntityKey = "unregistered"
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)
}

func TestDecideInheritWalksUpTheChain(t *testing.T) {
	entityPolicies := &fakeEntityPolicies{policies: map[string]*model.EntityPolicy{
		"entity|ticket": {TenantID: "t1", EntityKey: "ticket", AccessMode: model.AccessInherit},
		"module|crm":    {TenantID: "t1", ModuleKey: "crm", AccessMode: model.AccessDefaultAllow},
	}}
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{}},
		&fakePolicies{},
		entityPolicies,
		&recordingSink{},
	)

	req := ticketRequest("read")
	req.Scope.ModuleKey = "crm"
	decision, err := ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)
}

func TestDecideStrictOUScopeGatesRecordRules(t *testing.T) {
	rule := &pdp_model.IndexedRule{
		RuleID: "r1", ScopeType: model.ScopeRecord, ScopeKey: "rec1",
		Effect: model.EffectAllow, Priority: 10,
		Operations: map[string]model.ConstraintType{"read": model.ConstraintNone},
	}
	artifact := buildArtifact("t1", "v1", rule)
	entityPolicies := &fakeEntityPolicies{policies: map[string]*model.EntityPolicy{
		"entity|ticket": {TenantID: "t1", EntityKey: "ticket", AccessMode: model.AccessDefaultDeny, OUScopeMode: model.OUScopeStrict},
	}}
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": artifact}},
		&fakePolicies{versionIDs: []string{"v1"}},
		entityPolicies,
		&recordingSink{},
	)

	req := ticketRequest("read")
	req.Scope.RecordID = "rec1"
	req.Scope.RecordOUPath = "/acme/apac"
	decision, err := ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect, "strict mode skips record rules outside the caller's subtree")

	req.Scope.RecordOUPath = "/acme/emea/west"
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)
}

func TestDecideUnknownPrincipalFallsThrough(t *testing.T) {
	entityPolicies := &fakeEntityPolicies{policies: map[string]*model.EntityPolicy{
		"entity|ticket": {TenantID: "t1", EntityKey: "ticket", AccessMode: model.AccessDefaultAllow},
	}}
	ev := newEvaluator(t,
		&fakeSnapshots{err: arbiter_errors.ErrPrincipalNotFound},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{}},
		&fakePolicies{},
		entityPolicies,
		&recordingSink{},
	)

	decision, err := ev.Decide(context.Background(), ticketRequest("read"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect, "unknown principals still see entity defaults")
}

func TestDecideInternalErrorDenies(t *testing.T) {
	ev := newEvaluator(t,
		&fakeSnapshots{err: arbiter_errors.ErrDatabaseOperation},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{}},
		&fakePolicies{},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	decision, err := ev.Decide(context.Background(), ticketRequest("read"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect, "broken backends never fail open")
}

func TestDecideEmitsOneAuditRecordPerQuery(t *testing.T) {
	sink := &recordingSink{}
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{}},
		&fakePolicies{},
		&fakeEntityPolicies{},
		sink,
	)

	for i := 0; i < 5; i++ {
		_, err := ev.Decide(context.Background(), ticketRequest("read"))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, sink.count())
}

func TestDecideCatalogStructuralChecks(t *testing.T) {
	artifact := buildArtifact("t1", "v1",
		entityRule("r1", model.EffectAllow, 10, "delete", "transfer"),
	)
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{"t1|v1": artifact}},
		&fakePolicies{versionIDs: []string{"v1"}},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	// delete needs a concrete record even when a rule would allow it.
	decision, err := ev.Decide(context.Background(), ticketRequest("delete"))
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)

	req := ticketRequest("delete")
	req.Scope.RecordID = "rec1"
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectAllow, decision.Effect)

	// transfer additionally needs ownership facts.
	req = ticketRequest("transfer")
	req.Scope.RecordID = "rec1"
	decision, err = ev.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.EffectDeny, decision.Effect)
}

func TestDecideValidatesRequest(t *testing.T) {
	ev := newEvaluator(t,
		&fakeSnapshots{snapshot: agentSnapshot()},
		&fakeArtifacts{artifacts: map[string]*pdp_model.CompiledArtifact{}},
		&fakePolicies{},
		&fakeEntityPolicies{},
		&recordingSink{},
	)

	req := ticketRequest("read")
	req.TenantID = ""
	_, err := ev.Decide(context.Background(), req)
	assert.ErrorIs(t, err, arbiter_errors.ErrTenantRequired)

	req = ticketRequest("")
	_, err = ev.Decide(context.Background(), req)
	assert.ErrorIs(t, err, arbiter_errors.ErrUnknownOperation)
}
