// dao/policy_dao.go
package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	arbiter_neo4j "github.com/arbiterhq/arbiter/model/neo4j"
)

type PolicyDAO struct {
	Driver neo4j.Driver
}

func NewPolicyDAO(driver neo4j.Driver) *PolicyDAO {
	dao := &PolicyDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureConstraints(ctx); err != nil {
		logger.Fatal("Failed to ensure policy store constraints", zap.Error(err))
	}
	return dao
}

// EnsureConstraints creates the uniqueness constraints the store relies on.
// The compiled-artifact key constraint is what makes concurrent compilation
// converge on a single surviving row.
func (dao *PolicyDAO) EnsureConstraints(ctx context.Context) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close Neo4j session", zap.Error(err))
		}
	}()

	constraints := []string{
		`CREATE CONSTRAINT unique_policy_id IF NOT EXISTS
         FOR (p:` + arbiter_neo4j.LabelPolicy + `) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT unique_policy_version_id IF NOT EXISTS
         FOR (v:` + arbiter_neo4j.LabelPolicyVersion + `) REQUIRE v.id IS UNIQUE`,
		`CREATE CONSTRAINT unique_rule_id IF NOT EXISTS
         FOR (r:` + arbiter_neo4j.LabelRule + `) REQUIRE r.id IS UNIQUE`,
		`CREATE CONSTRAINT unique_compiled_key IF NOT EXISTS
         FOR (c:` + arbiter_neo4j.LabelCompiledPolicy + `)
         REQUIRE (c.tenantId, c.policyVersionId, c.compiledHash) IS UNIQUE`,
	}

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		for _, query := range constraints {
			if _, err := transaction.Run(query, nil); err != nil {
				return nil, fmt.Errorf("failed to create constraint: %w", err)
			}
		}
		return nil, nil
	})
	return err
}

// CreatePolicy creates a new tenant-scoped policy container.
func (dao *PolicyDAO) CreatePolicy(ctx context.Context, policy model.PermissionPolicy) (*model.PermissionPolicy, error) {
	logger.Info("Creating new policy",
		zap.String("tenantID", policy.TenantID),
		zap.String("policyName", policy.Name))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	policy.CreatedAt = time.Now().UTC()
	policy.UpdatedAt = policy.CreatedAt

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		checkQuery := `
        MATCH (p:` + arbiter_neo4j.LabelPolicy + ` {tenantId: $tenantId, name: $name})
        RETURN p.id
        `
		checkResult, err := transaction.Run(checkQuery, map[string]interface{}{
			"tenantId": policy.TenantID,
			"name":     policy.Name,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if checkResult.Next() {
			return nil, arbiter_errors.ErrPolicyConflict
		}

		createQuery := `
        CREATE (p:` + arbiter_neo4j.LabelPolicy + ` {
            id: $id,
            tenantId: $tenantId,
            name: $name,
            description: $description,
            scopeType: $scopeType,
            createdAt: $createdAt,
            updatedAt: $updatedAt
        })
        RETURN p.id AS id
        `
		_, err = transaction.Run(createQuery, map[string]interface{}{
			"id":          policy.ID,
			"tenantId":    policy.TenantID,
			"name":        policy.Name,
			"description": policy.Description,
			"scopeType":   string(policy.ScopeType),
			"createdAt":   policy.CreatedAt.Format(time.RFC3339),
			"updatedAt":   policy.UpdatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Policy created successfully", zap.String("policyID", policy.ID))
	return &policy, nil
}

// GetPolicy returns one policy by id within a tenant.
func (dao *PolicyDAO) GetPolicy(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicy, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:` + arbiter_neo4j.LabelPolicy + ` {id: $id, tenantId: $tenantId})
        RETURN p
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":       policyID,
			"tenantId": tenantID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPolicyNotFound
		}
		node := records.Record().Values[0].(neo4j.Node)
		return mapNodeToPolicy(node)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.PermissionPolicy), nil
}

// CreateVersion cuts a new draft version with the next monotonic version_no.
func (dao *PolicyDAO) CreateVersion(ctx context.Context, tenantID, policyID string) (*model.PermissionPolicyVersion, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	version := model.PermissionPolicyVersion{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		PolicyID:  policyID,
		Status:    model.VersionDraft,
		CreatedAt: time.Now().UTC(),
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:` + arbiter_neo4j.LabelPolicy + ` {id: $policyId, tenantId: $tenantId})
        OPTIONAL MATCH (p)-[:` + arbiter_neo4j.RelHasVersion + `]->(existing:` + arbiter_neo4j.LabelPolicyVersion + `)
        WITH p, coalesce(max(existing.versionNo), 0) + 1 AS nextNo
        CREATE (p)-[:` + arbiter_neo4j.RelHasVersion + `]->(v:` + arbiter_neo4j.LabelPolicyVersion + ` {
            id: $id,
            tenantId: $tenantId,
            policyId: $policyId,
            versionNo: nextNo,
            status: $status,
            createdAt: $createdAt
        })
        RETURN v.versionNo AS versionNo
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":        version.ID,
			"tenantId":  tenantID,
			"policyId":  policyID,
			"status":    string(model.VersionDraft),
			"createdAt": version.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPolicyNotFound
		}
		return records.Record().Values[0], nil
	})
	if err != nil {
		return nil, err
	}

	version.VersionNo = int(result.(int64))
	logger.Info("Policy version created",
		zap.String("policyID", policyID),
		zap.String("versionID", version.ID),
		zap.Int("versionNo", version.VersionNo))
	return &version, nil
}

// GetVersion returns one policy version by id within a tenant.
func (dao *PolicyDAO) GetVersion(ctx context.Context, tenantID, versionID string) (*model.PermissionPolicyVersion, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {id: $id, tenantId: $tenantId})
        RETURN v
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":       versionID,
			"tenantId": tenantID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPolicyVersionNotFound
		}
		node := records.Record().Values[0].(neo4j.Node)
		return mapNodeToVersion(node)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.PermissionPolicyVersion), nil
}

// PublishVersion freezes a draft version. Published rule sets are immutable;
// any further mutation requires cutting a new version.
func (dao *PolicyDAO) PublishVersion(ctx context.Context, tenantID, versionID string) (*model.PermissionPolicyVersion, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	publishedAt := time.Now().UTC()
	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {id: $id, tenantId: $tenantId})
        RETURN v.status AS status
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":       versionID,
			"tenantId": tenantID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPolicyVersionNotFound
		}
		if records.Record().Values[0].(string) != string(model.VersionDraft) {
			return nil, arbiter_errors.ErrVersionPublished
		}

		updateQuery := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {id: $id, tenantId: $tenantId})
        SET v.status = $status, v.publishedAt = $publishedAt
        RETURN v
        `
		updated, err := transaction.Run(updateQuery, map[string]interface{}{
			"id":          versionID,
			"tenantId":    tenantID,
			"status":      string(model.VersionPublished),
			"publishedAt": publishedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !updated.Next() {
			return nil, arbiter_errors.ErrPolicyVersionNotFound
		}
		node := updated.Record().Values[0].(neo4j.Node)
		return mapNodeToVersion(node)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Policy version published",
		zap.String("tenantID", tenantID),
		zap.String("versionID", versionID))
	return result.(*model.PermissionPolicyVersion), nil
}

// AddRule attaches a rule to a draft version. Adding to a published version
// violates immutability and is rejected.
func (dao *PolicyDAO) AddRule(ctx context.Context, rule model.PermissionRule) (*model.PermissionRule, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.CreatedAt = time.Now().UTC()

	operationsJSON, err := json.Marshal(rule.Operations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rule operations: %w", err)
	}

	_, err = session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {id: $versionId, tenantId: $tenantId})
        RETURN v.status AS status
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"versionId": rule.PolicyVersionID,
			"tenantId":  rule.TenantID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPolicyVersionNotFound
		}
		if records.Record().Values[0].(string) != string(model.VersionDraft) {
			return nil, arbiter_errors.ErrVersionPublished
		}

		createQuery := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {id: $versionId, tenantId: $tenantId})
        CREATE (v)-[:` + arbiter_neo4j.RelHasRule + `]->(r:` + arbiter_neo4j.LabelRule + ` {
            id: $id,
            tenantId: $tenantId,
            policyVersionId: $versionId,
            scopeType: $scopeType,
            scopeKey: $scopeKey,
            subjectType: $subjectType,
            subjectKey: $subjectKey,
            effect: $effect,
            condition: $condition,
            priority: $priority,
            isActive: $isActive,
            operations: $operations,
            createdAt: $createdAt
        })
        RETURN r.id AS id
        `
		_, err = transaction.Run(createQuery, map[string]interface{}{
			"id":          rule.ID,
			"tenantId":    rule.TenantID,
			"versionId":   rule.PolicyVersionID,
			"scopeType":   string(rule.ScopeType),
			"scopeKey":    rule.ScopeKey,
			"subjectType": string(rule.SubjectType),
			"subjectKey":  rule.SubjectKey,
			"effect":      string(rule.Effect),
			"condition":   rule.Condition,
			"priority":    rule.Priority,
			"isActive":    rule.IsActive,
			"operations":  string(operationsJSON),
			"createdAt":   rule.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Rule added to draft version",
		zap.String("ruleID", rule.ID),
		zap.String("versionID", rule.PolicyVersionID))
	return &rule, nil
}

// ActiveRules returns the active rules of one policy version.
func (dao *PolicyDAO) ActiveRules(ctx context.Context, tenantID, versionID string) ([]*model.PermissionRule, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {id: $versionId, tenantId: $tenantId})
              -[:` + arbiter_neo4j.RelHasRule + `]->(r:` + arbiter_neo4j.LabelRule + `)
        WHERE r.isActive = true
        RETURN r
        ORDER BY r.priority ASC, r.id ASC
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"versionId": versionID,
			"tenantId":  tenantID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}

		var rules []*model.PermissionRule
		for records.Next() {
			node := records.Record().Values[0].(neo4j.Node)
			rule, err := mapNodeToRule(node)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
		return rules, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*model.PermissionRule), nil
}

// PublishedVersionIDs returns the published version ids of every policy in
// the tenant, the candidate set the evaluator consults per decision.
func (dao *PolicyDAO) PublishedVersionIDs(ctx context.Context, tenantID string) ([]string, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {tenantId: $tenantId, status: $status})
        RETURN v.id AS id, v.policyId AS policyId
        ORDER BY v.policyId ASC, v.versionNo DESC
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"tenantId": tenantID,
			"status":   string(model.VersionPublished),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}

		var ids []string
		seenPolicy := map[string]bool{}
		for records.Next() {
			record := records.Record()
			id := record.Values[0].(string)
			policyID := record.Values[1].(string)
			// Latest published version per policy wins; older ones stay queryable.
			if seenPolicy[policyID] {
				continue
			}
			seenPolicy[policyID] = true
			ids = append(ids, id)
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func mapNodeToPolicy(node neo4j.Node) (*model.PermissionPolicy, error) {
	props := node.Props
	policy := &model.PermissionPolicy{
		ID:          props["id"].(string),
		TenantID:    props["tenantId"].(string),
		Name:        props["name"].(string),
		ScopeType:   model.ScopeType(props["scopeType"].(string)),
		Description: stringProp(props, "description"),
	}
	policy.CreatedAt, _ = time.Parse(time.RFC3339, stringProp(props, "createdAt"))
	policy.UpdatedAt, _ = time.Parse(time.RFC3339, stringProp(props, "updatedAt"))
	return policy, nil
}

func mapNodeToVersion(node neo4j.Node) (*model.PermissionPolicyVersion, error) {
	props := node.Props
	version := &model.PermissionPolicyVersion{
		ID:        props["id"].(string),
		TenantID:  props["tenantId"].(string),
		PolicyID:  props["policyId"].(string),
		VersionNo: int(props["versionNo"].(int64)),
		Status:    model.PolicyVersionStatus(props["status"].(string)),
	}
	version.CreatedAt, _ = time.Parse(time.RFC3339, stringProp(props, "createdAt"))
	if raw := stringProp(props, "publishedAt"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			version.PublishedAt = &t
		}
	}
	return version, nil
}

func mapNodeToRule(node neo4j.Node) (*model.PermissionRule, error) {
	props := node.Props
	rule := &model.PermissionRule{
		ID:              props["id"].(string),
		TenantID:        props["tenantId"].(string),
		PolicyVersionID: props["policyVersionId"].(string),
		ScopeType:       model.ScopeType(props["scopeType"].(string)),
		ScopeKey:        stringProp(props, "scopeKey"),
		SubjectType:     model.SubjectType(props["subjectType"].(string)),
		SubjectKey:      props["subjectKey"].(string),
		Effect:          model.Effect(props["effect"].(string)),
		Condition:       stringProp(props, "condition"),
		Priority:        int(props["priority"].(int64)),
		IsActive:        props["isActive"].(bool),
	}
	rule.CreatedAt, _ = time.Parse(time.RFC3339, stringProp(props, "createdAt"))

	if raw := stringProp(props, "operations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rule.Operations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule operations: %w", err)
		}
	}
	return rule, nil
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
