// service/access_service.go
package service

import (
	"context"

	"github.com/arbiterhq/arbiter/fieldsec"
	"github.com/arbiterhq/arbiter/pdp/engine"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
)

// IAccessService defines the interface for the decision surface
type IAccessService interface {
	Decide(ctx context.Context, req pdp_model.AccessRequest) (*pdp_model.Decision, error)
	MaskFields(ctx context.Context, req pdp_model.MaskRequest) (map[string]pdp_model.MaskDecision, error)
}

// AccessService fronts the rule and field evaluators for the HTTP layer.
type AccessService struct {
	engine *engine.Evaluator
	fields *fieldsec.Evaluator
}

func NewAccessService(ruleEngine *engine.Evaluator, fieldEvaluator *fieldsec.Evaluator) *AccessService {
	return &AccessService{
		engine: ruleEngine,
		fields: fieldEvaluator,
	}
}

func (s *AccessService) Decide(ctx context.Context, req pdp_model.AccessRequest) (*pdp_model.Decision, error) {
	return s.engine.Decide(ctx, req)
}

func (s *AccessService) MaskFields(ctx context.Context, req pdp_model.MaskRequest) (map[string]pdp_model.MaskDecision, error) {
	return s.fields.MaskFields(ctx, req)
}
