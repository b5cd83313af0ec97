// dao/entity_policy_dao.go
package dao

import (
	"context"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	arbiter_neo4j "github.com/arbiterhq/arbiter/model/neo4j"
)

type EntityPolicyDAO struct {
	Driver neo4j.Driver
}

func NewEntityPolicyDAO(driver neo4j.Driver) *EntityPolicyDAO {
	return &EntityPolicyDAO{Driver: driver}
}

// CreateEntityPolicy stores one entity policy. Exactly one of EntityKey and
// EntityVersionKey must be set; violating that is a configuration error
// rejected at write time.
func (dao *EntityPolicyDAO) CreateEntityPolicy(ctx context.Context, policy model.EntityPolicy) (*model.EntityPolicy, error) {
	if (policy.EntityKey == "") == (policy.EntityVersionKey == "") && policy.ModuleKey == "" {
		return nil, arbiter_errors.ErrInvalidPolicyData
	}
	if !policy.AccessMode.Valid() {
		return nil, arbiter_errors.ErrInvalidPolicyData
	}
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	if policy.OUScopeMode == "" {
		policy.OUScopeMode = model.OUScopeAny
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE (e:` + arbiter_neo4j.LabelEntityPolicy + ` {
            id: $id,
            tenantId: $tenantId,
            entityKey: $entityKey,
            entityVersionKey: $entityVersionKey,
            moduleKey: $moduleKey,
            accessMode: $accessMode,
            ouScopeMode: $ouScopeMode
        })
        RETURN e.id AS id
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"id":               policy.ID,
			"tenantId":         policy.TenantID,
			"entityKey":        policy.EntityKey,
			"entityVersionKey": policy.EntityVersionKey,
			"moduleKey":        policy.ModuleKey,
			"accessMode":       string(policy.AccessMode),
			"ouScopeMode":      string(policy.OUScopeMode),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Entity policy created",
		zap.String("entityPolicyID", policy.ID),
		zap.String("tenantID", policy.TenantID))
	return &policy, nil
}

// FindEntityPolicy returns the policy attached at one level of the scope
// hierarchy: entity-version, entity, module or global. The inherit walk
// across levels belongs to the evaluator.
func (dao *EntityPolicyDAO) FindEntityPolicy(ctx context.Context, tenantID string, level model.ScopeType, key string) (*model.EntityPolicy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	var where string
	switch level {
	case model.ScopeEntityVersion:
		where = "e.entityVersionKey = $key"
	case model.ScopeEntity:
		where = "e.entityKey = $key AND e.entityVersionKey = ''"
	case model.ScopeModule:
		where = "e.moduleKey = $key AND e.entityKey = '' AND e.entityVersionKey = ''"
	case model.ScopeGlobal:
		where = "e.moduleKey = '' AND e.entityKey = '' AND e.entityVersionKey = ''"
	default:
		return nil, arbiter_errors.ErrInvalidScopeType
	}

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (e:` + arbiter_neo4j.LabelEntityPolicy + ` {tenantId: $tenantId})
        WHERE ` + where + `
        RETURN e
        LIMIT 1
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"tenantId": tenantID,
			"key":      key,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrEntityPolicyNotFound
		}
		node := records.Record().Values[0].(neo4j.Node)
		props := node.Props
		return &model.EntityPolicy{
			ID:               props["id"].(string),
			TenantID:         props["tenantId"].(string),
			EntityKey:        stringProp(props, "entityKey"),
			EntityVersionKey: stringProp(props, "entityVersionKey"),
			ModuleKey:        stringProp(props, "moduleKey"),
			AccessMode:       model.AccessMode(props["accessMode"].(string)),
			OUScopeMode:      model.OUScopeMode(stringProp(props, "ouScopeMode")),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.EntityPolicy), nil
}
