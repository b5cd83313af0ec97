// test/mock/services.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/arbiterhq/arbiter/audit"
	"github.com/arbiterhq/arbiter/model"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
)

// MockAccessService is a mock implementation of service.IAccessService
type MockAccessService struct {
	mock.Mock
}

func (m *MockAccessService) Decide(ctx context.Context, req pdp_model.AccessRequest) (*pdp_model.Decision, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pdp_model.Decision), args.Error(1)
}

func (m *MockAccessService) MaskFields(ctx context.Context, req pdp_model.MaskRequest) (map[string]pdp_model.MaskDecision, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]pdp_model.MaskDecision), args.Error(1)
}

// MockPolicyService is a mock implementation of service.IPolicyService
type MockPolicyService struct {
	mock.Mock
}

func (m *MockPolicyService) CreatePolicy(ctx context.Context, policy model.PermissionPolicy) (*model.PermissionPolicy, error) {
	args := m.Called(ctx, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionPolicy), args.Error(1)
}

func (m *MockPolicyService) GetPolicy(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicy, error) {
	args := m.Called(ctx, tenantID, policyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionPolicy), args.Error(1)
}

func (m *MockPolicyService) CreateVersion(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicyVersion, error) {
	args := m.Called(ctx, tenantID, policyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionPolicyVersion), args.Error(1)
}

func (m *MockPolicyService) PublishVersion(ctx context.Context, tenantID, versionID string) (*model.PermissionPolicyVersion, error) {
	args := m.Called(ctx, tenantID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionPolicyVersion), args.Error(1)
}

func (m *MockPolicyService) AddRule(ctx context.Context, rule model.PermissionRule) (*model.PermissionRule, error) {
	args := m.Called(ctx, rule)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PermissionRule), args.Error(1)
}

func (m *MockPolicyService) Compile(ctx context.Context, tenantID, versionID string) (*pdp_model.CompiledArtifact, error) {
	args := m.Called(ctx, tenantID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pdp_model.CompiledArtifact), args.Error(1)
}

func (m *MockPolicyService) CreateEntityPolicy(ctx context.Context, policy model.EntityPolicy) (*model.EntityPolicy, error) {
	args := m.Called(ctx, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EntityPolicy), args.Error(1)
}

func (m *MockPolicyService) CreateFieldPolicy(ctx context.Context, policy model.FieldSecurityPolicy) (*model.FieldSecurityPolicy, error) {
	args := m.Called(ctx, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FieldSecurityPolicy), args.Error(1)
}

// MockIdentityService is a mock implementation of service.IIdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) CreatePrincipal(ctx context.Context, tenantID, principalID string, kind model.SubjectType) error {
	args := m.Called(ctx, tenantID, principalID, kind)
	return args.Error(0)
}

func (m *MockIdentityService) AssignRole(ctx context.Context, tenantID, principalID, roleCode string) error {
	args := m.Called(ctx, tenantID, principalID, roleCode)
	return args.Error(0)
}

func (m *MockIdentityService) AddToGroup(ctx context.Context, tenantID, principalID, groupCode string) error {
	args := m.Called(ctx, tenantID, principalID, groupCode)
	return args.Error(0)
}

func (m *MockIdentityService) GrantPersona(ctx context.Context, tenantID, principalID, personaCode string) error {
	args := m.Called(ctx, tenantID, principalID, personaCode)
	return args.Error(0)
}

func (m *MockIdentityService) AssignOU(ctx context.Context, tenantID, principalID, ouID string) error {
	args := m.Called(ctx, tenantID, principalID, ouID)
	return args.Error(0)
}

func (m *MockIdentityService) AssignModule(ctx context.Context, tenantID, principalID, moduleKey string) error {
	args := m.Called(ctx, tenantID, principalID, moduleKey)
	return args.Error(0)
}

func (m *MockIdentityService) CreateOU(ctx context.Context, node model.OUNode) (*model.OUNode, error) {
	args := m.Called(ctx, node)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OUNode), args.Error(1)
}

func (m *MockIdentityService) GetOU(ctx context.Context, tenantID, ouID string) (*model.OUNode, error) {
	args := m.Called(ctx, tenantID, ouID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OUNode), args.Error(1)
}

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) IndexDecision(ctx context.Context, record audit.DecisionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAuditRepository) IndexFieldAccess(ctx context.Context, record audit.FieldAccessRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAuditRepository) QueryDecisions(ctx context.Context, from, to time.Time, tenantID, principalID string) ([]audit.DecisionRecord, error) {
	args := m.Called(ctx, from, to, tenantID, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.DecisionRecord), args.Error(1)
}
