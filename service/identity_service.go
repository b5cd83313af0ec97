// service/identity_service.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/dao"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/util"
)

// IIdentityService defines the interface for identity and hierarchy writes
type IIdentityService interface {
	CreatePrincipal(ctx context.Context, tenantID, principalID string, kind model.SubjectType) error
	AssignRole(ctx context.Context, tenantID, principalID, roleCode string) error
	AddToGroup(ctx context.Context, tenantID, principalID, groupCode string) error
	GrantPersona(ctx context.Context, tenantID, principalID, personaCode string) error
	AssignOU(ctx context.Context, tenantID, principalID, ouID string) error
	AssignModule(ctx context.Context, tenantID, principalID, moduleKey string) error
	CreateOU(ctx context.Context, node model.OUNode) (*model.OUNode, error)
	GetOU(ctx context.Context, tenantID, ouID string) (*model.OUNode, error)
}

// SnapshotInvalidator busts one principal's cached entitlement snapshot.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, tenantID, principalID string) error
}

// IdentityService handles identity-provider writes. Every grant publishes an
// entitlements-changed event so the snapshot cache drops the stale
// materialization before the next decision.
type IdentityService struct {
	identityDAO    *dao.IdentityDAO
	ouDAO          *dao.OUDAO
	validationUtil *util.ValidationUtil
	eventBus       *util.EventBus
}

// NewIdentityService creates a new instance of IdentityService
func NewIdentityService(
	identityDAO *dao.IdentityDAO,
	ouDAO *dao.OUDAO,
	validationUtil *util.ValidationUtil,
	eventBus *util.EventBus,
	invalidator SnapshotInvalidator,
) *IdentityService {
	service := &IdentityService{
		identityDAO:    identityDAO,
		ouDAO:          ouDAO,
		validationUtil: validationUtil,
		eventBus:       eventBus,
	}

	eventBus.Subscribe(util.EventEntitlementsChanged, func(ctx context.Context, event util.Event) error {
		payload, ok := event.Payload.(util.EntitlementsChangedPayload)
		if !ok {
			logger.Error("Invalid entitlements changed payload", zap.Any("payload", event.Payload))
			return arbiter_errors.ErrInternalServer
		}
		if err := invalidator.Invalidate(ctx, payload.TenantID, payload.PrincipalID); err != nil {
			logger.Error("Failed to invalidate entitlement snapshot",
				zap.String("tenantId", payload.TenantID),
				zap.String("principalId", payload.PrincipalID),
				zap.Error(err))
			return err
		}
		return nil
	})

	return service
}

func (s *IdentityService) publishChanged(ctx context.Context, tenantID, principalID string) {
	s.eventBus.Publish(ctx, util.EventEntitlementsChanged, util.EntitlementsChangedPayload{
		TenantID:    tenantID,
		PrincipalID: principalID,
	})
}

func (s *IdentityService) CreatePrincipal(ctx context.Context, tenantID, principalID string, kind model.SubjectType) error {
	if err := s.validationUtil.ValidatePrincipal(tenantID, principalID, kind); err != nil {
		logger.Warn("Rejected invalid principal", zap.Error(err))
		return arbiter_errors.ErrInvalidPolicyData
	}
	return s.identityDAO.CreatePrincipal(ctx, tenantID, principalID, kind)
}

func (s *IdentityService) AssignRole(ctx context.Context, tenantID, principalID, roleCode string) error {
	if err := s.identityDAO.AssignRole(ctx, tenantID, principalID, roleCode); err != nil {
		return err
	}
	s.publishChanged(ctx, tenantID, principalID)
	return nil
}

func (s *IdentityService) AddToGroup(ctx context.Context, tenantID, principalID, groupCode string) error {
	if err := s.identityDAO.AddToGroup(ctx, tenantID, principalID, groupCode); err != nil {
		return err
	}
	s.publishChanged(ctx, tenantID, principalID)
	return nil
}

func (s *IdentityService) GrantPersona(ctx context.Context, tenantID, principalID, personaCode string) error {
	if err := s.identityDAO.GrantPersona(ctx, tenantID, principalID, personaCode); err != nil {
		return err
	}
	s.publishChanged(ctx, tenantID, principalID)
	return nil
}

func (s *IdentityService) AssignOU(ctx context.Context, tenantID, principalID, ouID string) error {
	if err := s.identityDAO.AssignOU(ctx, tenantID, principalID, ouID); err != nil {
		return err
	}
	s.publishChanged(ctx, tenantID, principalID)
	return nil
}

func (s *IdentityService) AssignModule(ctx context.Context, tenantID, principalID, moduleKey string) error {
	if err := s.identityDAO.AssignModule(ctx, tenantID, principalID, moduleKey); err != nil {
		return err
	}
	s.publishChanged(ctx, tenantID, principalID)
	return nil
}

func (s *IdentityService) CreateOU(ctx context.Context, node model.OUNode) (*model.OUNode, error) {
	if err := s.validationUtil.ValidateOUNode(node); err != nil {
		logger.Warn("Rejected invalid OU node", zap.Error(err))
		return nil, arbiter_errors.ErrMalformedOUPath
	}
	return s.ouDAO.CreateOU(ctx, node)
}

func (s *IdentityService) GetOU(ctx context.Context, tenantID, ouID string) (*model.OUNode, error) {
	return s.ouDAO.GetOU(ctx, tenantID, ouID)
}
