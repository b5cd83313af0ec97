// controller/controllers.go
package controller

import (
	"github.com/arbiterhq/arbiter/audit"
	"github.com/arbiterhq/arbiter/service"
)

type Controllers struct {
	Decision *DecisionController
	Policy   *PolicyController
	Identity *IdentityController
	Audit    *AuditController
}

func InitializeControllers(services *service.Services, auditRepo audit.Repository) *Controllers {
	return &Controllers{
		Decision: NewDecisionController(services.Access),
		Policy:   NewPolicyController(services.Policy),
		Identity: NewIdentityController(services.Identity),
		Audit:    NewAuditController(auditRepo),
	}
}
