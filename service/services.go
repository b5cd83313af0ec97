// service/services.go
package service

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/arbiterhq/arbiter/audit"
	"github.com/arbiterhq/arbiter/dao"
	"github.com/arbiterhq/arbiter/entitlement"
	"github.com/arbiterhq/arbiter/fieldsec"
	"github.com/arbiterhq/arbiter/pdp/compiler"
	"github.com/arbiterhq/arbiter/pdp/condition"
	"github.com/arbiterhq/arbiter/pdp/engine"
	"github.com/arbiterhq/arbiter/persona"
	"github.com/arbiterhq/arbiter/util"
)

type Services struct {
	Policy   IPolicyService
	Access   IAccessService
	Identity IIdentityService
}

func InitializeServices(
	driver neo4j.Driver,
	emitter *audit.Emitter,
	snapshotStore entitlement.SnapshotStore,
	personas *persona.Registry,
	snapshotTTL time.Duration,
	validationUtil *util.ValidationUtil,
	eventBus *util.EventBus,
) (*Services, error) {
	policyDAO := dao.NewPolicyDAO(driver)
	if err := policyDAO.EnsureConstraints(context.Background()); err != nil {
		return nil, err
	}
	compiledDAO := dao.NewCompiledPolicyDAO(driver)
	entityPolicyDAO := dao.NewEntityPolicyDAO(driver)
	fieldPolicyDAO := dao.NewFieldPolicyDAO(driver)
	identityDAO := dao.NewIdentityDAO(driver)
	ouDAO := dao.NewOUDAO(driver)

	conditions, err := condition.NewCELEvaluator()
	if err != nil {
		return nil, err
	}

	policyCompiler := compiler.NewCompiler(policyDAO, compiledDAO)
	snapshots := entitlement.NewCache(snapshotStore, identityDAO, personas, snapshotTTL)
	ruleEngine := engine.NewEvaluator(snapshots, policyCompiler, policyDAO, entityPolicyDAO, conditions, emitter)
	fieldEvaluator := fieldsec.NewEvaluator(fieldPolicyDAO, snapshots, conditions, emitter)

	services := &Services{
		Policy:   NewPolicyService(policyDAO, entityPolicyDAO, fieldPolicyDAO, policyCompiler, validationUtil, eventBus),
		Access:   NewAccessService(ruleEngine, fieldEvaluator),
		Identity: NewIdentityService(identityDAO, ouDAO, validationUtil, eventBus, snapshots),
	}

	return services, nil
}
