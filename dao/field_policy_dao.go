// dao/field_policy_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	arbiter_neo4j "github.com/arbiterhq/arbiter/model/neo4j"
)

type FieldPolicyDAO struct {
	Driver neo4j.Driver
}

func NewFieldPolicyDAO(driver neo4j.Driver) *FieldPolicyDAO {
	return &FieldPolicyDAO{Driver: driver}
}

// CreateFieldPolicy stores one field security policy.
func (dao *FieldPolicyDAO) CreateFieldPolicy(ctx context.Context, policy model.FieldSecurityPolicy) (*model.FieldSecurityPolicy, error) {
	if policy.EntityKey == "" || policy.FieldPath == "" {
		return nil, arbiter_errors.ErrInvalidFieldPolicyData
	}
	if policy.MaskStrategy != "" && !policy.MaskStrategy.Valid() {
		return nil, arbiter_errors.ErrInvalidFieldPolicyData
	}
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	if policy.ScopeType == "" {
		policy.ScopeType = model.ScopeEntity
		policy.ScopeKey = policy.EntityKey
	}

	rolesJSON, err := json.Marshal(policy.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal field policy roles: %w", err)
	}

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE (f:` + arbiter_neo4j.LabelFieldPolicy + ` {
            id: $id,
            tenantId: $tenantId,
            entityKey: $entityKey,
            fieldPath: $fieldPath,
            policyType: $policyType,
            roles: $roles,
            condition: $condition,
            maskStrategy: $maskStrategy,
            scopeType: $scopeType,
            scopeKey: $scopeKey,
            priority: $priority,
            isActive: $isActive
        })
        RETURN f.id AS id
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"id":           policy.ID,
			"tenantId":     policy.TenantID,
			"entityKey":    policy.EntityKey,
			"fieldPath":    policy.FieldPath,
			"policyType":   string(policy.PolicyType),
			"roles":        string(rolesJSON),
			"condition":    policy.Condition,
			"maskStrategy": string(policy.MaskStrategy),
			"scopeType":    string(policy.ScopeType),
			"scopeKey":     policy.ScopeKey,
			"priority":     policy.Priority,
			"isActive":     policy.IsActive,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Field security policy created",
		zap.String("fieldPolicyID", policy.ID),
		zap.String("entityKey", policy.EntityKey),
		zap.String("fieldPath", policy.FieldPath))
	return &policy, nil
}

// ActivePoliciesForEntity returns the active field policies of one entity.
// Action filtering and ordering belong to the field security evaluator.
func (dao *FieldPolicyDAO) ActivePoliciesForEntity(ctx context.Context, tenantID, entityKey string) ([]*model.FieldSecurityPolicy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (f:` + arbiter_neo4j.LabelFieldPolicy + ` {tenantId: $tenantId, entityKey: $entityKey})
        WHERE f.isActive = true
        RETURN f
        ORDER BY f.priority ASC, f.id ASC
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"tenantId":  tenantID,
			"entityKey": entityKey,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}

		var policies []*model.FieldSecurityPolicy
		for records.Next() {
			props := records.Record().Values[0].(neo4j.Node).Props
			policy := &model.FieldSecurityPolicy{
				ID:           props["id"].(string),
				TenantID:     props["tenantId"].(string),
				EntityKey:    props["entityKey"].(string),
				FieldPath:    props["fieldPath"].(string),
				PolicyType:   model.FieldPolicyType(props["policyType"].(string)),
				Condition:    stringProp(props, "condition"),
				MaskStrategy: model.MaskStrategy(stringProp(props, "maskStrategy")),
				ScopeType:    model.ScopeType(props["scopeType"].(string)),
				ScopeKey:     stringProp(props, "scopeKey"),
				Priority:     int(props["priority"].(int64)),
				IsActive:     props["isActive"].(bool),
			}
			if raw := stringProp(props, "roles"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &policy.Roles); err != nil {
					return nil, fmt.Errorf("failed to unmarshal field policy roles: %w", err)
				}
			}
			policies = append(policies, policy)
		}
		return policies, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*model.FieldSecurityPolicy), nil
}
