// service/policy_service.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/dao"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/pdp/compiler"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
	"github.com/arbiterhq/arbiter/util"
)

// IPolicyService defines the interface for policy administration
type IPolicyService interface {
	CreatePolicy(ctx context.Context, policy model.PermissionPolicy) (*model.PermissionPolicy, error)
	GetPolicy(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicy, error)
	CreateVersion(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicyVersion, error)
	PublishVersion(ctx context.Context, tenantID, versionID string) (*model.PermissionPolicyVersion, error)
	AddRule(ctx context.Context, rule model.PermissionRule) (*model.PermissionRule, error)
	Compile(ctx context.Context, tenantID, versionID string) (*pdp_model.CompiledArtifact, error)
	CreateEntityPolicy(ctx context.Context, policy model.EntityPolicy) (*model.EntityPolicy, error)
	CreateFieldPolicy(ctx context.Context, policy model.FieldSecurityPolicy) (*model.FieldSecurityPolicy, error)
}

// PolicyService handles business logic for policy administration
type PolicyService struct {
	policyDAO       *dao.PolicyDAO
	entityPolicyDAO *dao.EntityPolicyDAO
	fieldPolicyDAO  *dao.FieldPolicyDAO
	compiler        *compiler.Compiler
	validationUtil  *util.ValidationUtil
	eventBus        *util.EventBus
}

// NewPolicyService creates a new instance of PolicyService
func NewPolicyService(
	policyDAO *dao.PolicyDAO,
	entityPolicyDAO *dao.EntityPolicyDAO,
	fieldPolicyDAO *dao.FieldPolicyDAO,
	policyCompiler *compiler.Compiler,
	validationUtil *util.ValidationUtil,
	eventBus *util.EventBus,
) *PolicyService {
	service := &PolicyService{
		policyDAO:       policyDAO,
		entityPolicyDAO: entityPolicyDAO,
		fieldPolicyDAO:  fieldPolicyDAO,
		compiler:        policyCompiler,
		validationUtil:  validationUtil,
		eventBus:        eventBus,
	}

	// Freshly published versions are compiled eagerly so the first decision
	// against them never pays the compile cost.
	eventBus.Subscribe(util.EventPolicyPublished, service.handlePolicyPublished)

	return service
}

func (s *PolicyService) handlePolicyPublished(ctx context.Context, event util.Event) error {
	payload, ok := event.Payload.(util.PolicyPublishedPayload)
	if !ok {
		logger.Error("Invalid policy published payload", zap.Any("payload", event.Payload))
		return arbiter_errors.ErrInternalServer
	}
	if _, err := s.compiler.Compile(ctx, payload.TenantID, payload.PolicyVersionID); err != nil {
		logger.Error("Eager compilation of published version failed",
			zap.String("tenantId", payload.TenantID),
			zap.String("versionId", payload.PolicyVersionID),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *PolicyService) CreatePolicy(ctx context.Context, policy model.PermissionPolicy) (*model.PermissionPolicy, error) {
	if err := s.validationUtil.ValidatePolicy(policy); err != nil {
		logger.Warn("Rejected invalid policy", zap.Error(err))
		return nil, arbiter_errors.ErrInvalidPolicyData
	}
	return s.policyDAO.CreatePolicy(ctx, policy)
}

func (s *PolicyService) GetPolicy(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicy, error) {
	return s.policyDAO.GetPolicy(ctx, tenantID, policyID)
}

func (s *PolicyService) CreateVersion(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicyVersion, error) {
	return s.policyDAO.CreateVersion(ctx, tenantID, policyID)
}

func (s *PolicyService) PublishVersion(ctx context.Context, tenantID, versionID string) (*model.PermissionPolicyVersion, error) {
	version, err := s.policyDAO.PublishVersion(ctx, tenantID, versionID)
	if err != nil {
		return nil, err
	}

	logger.Info("Policy version published",
		zap.String("tenantId", tenantID),
		zap.String("versionId", versionID),
		zap.Int("versionNo", version.VersionNo))
	s.eventBus.Publish(ctx, util.EventPolicyPublished, util.PolicyPublishedPayload{
		TenantID:        tenantID,
		PolicyVersionID: versionID,
	})
	return version, nil
}

func (s *PolicyService) AddRule(ctx context.Context, rule model.PermissionRule) (*model.PermissionRule, error) {
	if err := s.validationUtil.ValidateRule(rule); err != nil {
		logger.Warn("Rejected invalid rule", zap.Error(err))
		return nil, arbiter_errors.ErrInvalidRuleData
	}
	return s.policyDAO.AddRule(ctx, rule)
}

func (s *PolicyService) Compile(ctx context.Context, tenantID, versionID string) (*pdp_model.CompiledArtifact, error) {
	return s.compiler.Compile(ctx, tenantID, versionID)
}

func (s *PolicyService) CreateEntityPolicy(ctx context.Context, policy model.EntityPolicy) (*model.EntityPolicy, error) {
	if err := s.validationUtil.ValidateEntityPolicy(policy); err != nil {
		logger.Warn("Rejected invalid entity policy", zap.Error(err))
		return nil, arbiter_errors.ErrInvalidPolicyData
	}
	return s.entityPolicyDAO.CreateEntityPolicy(ctx, policy)
}

func (s *PolicyService) CreateFieldPolicy(ctx context.Context, policy model.FieldSecurityPolicy) (*model.FieldSecurityPolicy, error) {
	if err := s.validationUtil.ValidateFieldPolicy(policy); err != nil {
		logger.Warn("Rejected invalid field policy", zap.Error(err))
		return nil, arbiter_errors.ErrInvalidFieldPolicyData
	}
	return s.fieldPolicyDAO.CreateFieldPolicy(ctx, policy)
}
