package fieldsec_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/audit"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	"github.com/arbiterhq/arbiter/fieldsec"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/pdp/condition"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
)

type fakePolicySource struct {
	policies []*model.FieldSecurityPolicy
	err      error
}

func (f *fakePolicySource) ActivePoliciesForEntity(ctx context.Context, tenantID, entityKey string) ([]*model.FieldSecurityPolicy, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.policies, nil
}

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

type recordingSink struct {
	mu      sync.Mutex
	records []audit.FieldAccessRecord
}

func (s *recordingSink) EmitFieldAccess(record audit.FieldAccessRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newEvaluator(t *testing.T, policies fieldsec.PolicySource, snapshots fieldsec.SnapshotSource, sink fieldsec.AuditSink) *fieldsec.Evaluator {
	t.Helper()
	logger.InitLogger(t.TempDir())
	conditions, err := condition.NewCELEvaluator()
	require.NoError(t, err)
	return fieldsec.NewEvaluator(policies, snapshots, conditions, sink)
}

func maskRequest(paths ...string) pdp_model.MaskRequest {
	return pdp_model.MaskRequest{
		TenantID:   "t1",
		Subject:    pdp_model.Subject{PrincipalID: "u1", Kind: model.SubjectUser},
		EntityKey:  "customer",
		FieldPaths: paths,
		Action:     model.FieldActionRead,
	}
}

func ssnPolicy(roles ...string) *model.FieldSecurityPolicy {
	return &model.FieldSecurityPolicy{
		ID: "fp1", TenantID: "t1", EntityKey: "customer",
		FieldPath: "ssn", PolicyType: model.FieldPolicyRead,
		Roles: roles, MaskStrategy: model.MaskRedact,
		ScopeType: model.ScopeEntity, Priority: 10, IsActive: true,
	}
}

func TestMaskFieldsRoleGate(t *testing.T) {
	snapshot := &model.Entitlements{TenantID: "t1", PrincipalID: "u1", Roles: []string{"agent"}}
	ev := newEvaluator(t,
		&fakePolicySource{policies: []*model.FieldSecurityPolicy{ssnPolicy("compliance")}},
		&fakeSnapshots{snapshot: snapshot},
		&recordingSink{},
	)

	decisions, err := ev.MaskFields(context.Background(), maskRequest("ssn", "name"))
	require.NoError(t, err)

	assert.False(t, decisions["ssn"].Allowed)
	assert.Equal(t, model.MaskRedact, decisions["ssn"].Strategy)
	assert.Equal(t, "fp1", decisions["ssn"].PolicyID)
	assert.True(t, decisions["name"].Allowed, "ungoverned fields are plainly visible")
	assert.Empty(t, decisions["name"].Strategy)
}

func TestMaskFieldsRoleSatisfied(t *testing.T) {
	snapshot := &model.Entitlements{TenantID: "t1", PrincipalID: "u1", Roles: []string{"compliance"}}
	ev := newEvaluator(t,
		&fakePolicySource{policies: []*model.FieldSecurityPolicy{ssnPolicy("compliance")}},
		&fakeSnapshots{snapshot: snapshot},
		&recordingSink{},
	)

	decisions, err := ev.MaskFields(context.Background(), maskRequest("ssn"))
	require.NoError(t, err)
	assert.True(t, decisions["ssn"].Allowed)
	assert.Equal(t, "fp1", decisions["ssn"].PolicyID)
}

func TestMaskFieldsActionFilter(t *testing.T) {
	policy := ssnPolicy("compliance")
	policy.PolicyType = model.FieldPolicyWrite
	ev := newEvaluator(t,
		&fakePolicySource{policies: []*model.FieldSecurityPolicy{policy}},
		&fakeSnapshots{snapshot: &model.Entitlements{TenantID: "t1", PrincipalID: "u1"}},
		&recordingSink{},
	)

	// A write-only policy does not govern reads.
	decisions, err := ev.MaskFields(context.Background(), maskRequest("ssn"))
	require.NoError(t, err)
	assert.True(t, decisions["ssn"].Allowed)

	req := maskRequest("ssn")
	req.Action = model.FieldActionWrite
	decisions, err = ev.MaskFields(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, decisions["ssn"].Allowed)
}

func TestMaskFieldsPriorityPicksFirst(t *testing.T) {
	loose := ssnPolicy()
	loose.ID = "fp-loose"
	loose.Priority = 20
	loose.MaskStrategy = model.MaskPartial
	strict := ssnPolicy("compliance")
	strict.ID = "fp-strict"
	strict.Priority = 5

	ev := newEvaluator(t,
		&fakePolicySource{policies: []*model.FieldSecurityPolicy{strict, loose}},
		&fakeSnapshots{snapshot: &model.Entitlements{TenantID: "t1", PrincipalID: "u1"}},
		&recordingSink{},
	)

	decisions, err := ev.MaskFields(context.Background(), maskRequest("ssn"))
	require.NoError(t, err)
	assert.False(t, decisions["ssn"].Allowed)
	assert.Equal(t, "fp-strict", decisions["ssn"].PolicyID, "lowest priority policy governs")
	assert.Equal(t, model.MaskRedact, decisions["ssn"].Strategy)
}

func TestMaskFieldsConditionGate(t *testing.T) {
	policy := ssnPolicy()
	policy.Condition = `ctx["purpose"] == "kyc"`
	ev := newEvaluator(t,
		&fakePolicySource{policies: []*model.FieldSecurityPolicy{policy}},
		&fakeSnapshots{snapshot: &model.Entitlements{TenantID: "t1", PrincipalID: "u1"}},
		&recordingSink{},
	)

	req := maskRequest("ssn")
	req.Environment = map[string]string{"purpose": "kyc"}
	decisions, err := ev.MaskFields(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decisions["ssn"].Allowed)

	req.Environment = map[string]string{"purpose": "marketing"}
	decisions, err = ev.MaskFields(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, decisions["ssn"].Allowed)
}

func TestMaskFieldsVersionScope(t *testing.T) {
	policy := ssnPolicy()
	policy.ScopeType = model.ScopeEntityVersion
	policy.ScopeKey = "v2"
	ev := newEvaluator(t,
		&fakePolicySource{policies: []*model.FieldSecurityPolicy{policy}},
		&fakeSnapshots{snapshot: &model.Entitlements{TenantID: "t1", PrincipalID: "u1"}},
		&recordingSink{},
	)

	req := maskRequest("ssn")
	req.Scope.EntityVersionKey = "v1"
	decisions, err := ev.MaskFields(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decisions["ssn"].Allowed, "policy scoped to another version does not apply")

	req.Scope.EntityVersionKey = "v2"
	decisions, err = ev.MaskFields(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, decisions["ssn"].Allowed)
}

func TestMaskFieldsLookupFailureMasksEverything(t *testing.T) {
	ev := newEvaluator(t,
		&fakePolicySource{err: arbiter_errors.ErrDatabaseOperation},
		&fakeSnapshots{snapshot: &model.Entitlements{TenantID: "t1", PrincipalID: "u1"}},
		&recordingSink{},
	)

	decisions, err := ev.MaskFields(context.Background(), maskRequest("ssn", "name"))
	require.NoError(t, err)
	for path, d := range decisions {
		assert.False(t, d.Allowed, path)
		assert.Equal(t, model.MaskRemove, d.Strategy, path)
	}
}

func TestMaskFieldsEmitsOneRecordPerField(t *testing.T) {
	sink := &recordingSink{}
	ev := newEvaluator(t,
		&fakePolicySource{policies: []*model.FieldSecurityPolicy{ssnPolicy("compliance")}},
		&fakeSnapshots{snapshot: &model.Entitlements{TenantID: "t1", PrincipalID: "u1"}},
		sink,
	)

	_, err := ev.MaskFields(context.Background(), maskRequest("ssn", "name", "email"))
	require.NoError(t, err)
	assert.Equal(t, 3, sink.count())
}

func TestMaskFieldsValidatesRequest(t *testing.T) {
	ev := newEvaluator(t,
		&fakePolicySource{},
		&fakeSnapshots{snapshot: &model.Entitlements{}},
		&recordingSink{},
	)

	req := maskRequest("ssn")
	req.TenantID = ""
	_, err := ev.MaskFields(context.Background(), req)
	assert.ErrorIs(t, err, arbiter_errors.ErrTenantRequired)

	req = maskRequest("ssn")
	req.Action = "peek"
	_, err = ev.MaskFields(context.Background(), req)
	assert.ErrorIs(t, err, arbiter_errors.ErrInvalidFieldPolicyData)
}
