// dao/identity_dao.go
package dao

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	arbiter_neo4j "github.com/arbiterhq/arbiter/model/neo4j"
)

// IdentityFacts is the raw identity-provider state for one principal, the
// source-of-truth input to entitlement snapshot computation.
type IdentityFacts struct {
	PrincipalID string
	Kind        model.SubjectType
	Roles       []string
	Groups      []string
	OUPaths     []string
	Modules     []string
	Personas    []string
}

type IdentityDAO struct {
	Driver neo4j.Driver
}

func NewIdentityDAO(driver neo4j.Driver) *IdentityDAO {
	return &IdentityDAO{Driver: driver}
}

// CreatePrincipal registers a user or service principal within a tenant.
func (dao *IdentityDAO) CreatePrincipal(ctx context.Context, tenantID, principalID string, kind model.SubjectType) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (p:` + arbiter_neo4j.LabelPrincipal + ` {id: $id, tenantId: $tenantId})
        ON CREATE SET p.kind = $kind
        RETURN p.id AS id
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"id":       principalID,
			"tenantId": tenantID,
			"kind":     string(kind),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	return err
}

// AssignRole binds a role to a principal.
func (dao *IdentityDAO) AssignRole(ctx context.Context, tenantID, principalID, roleCode string) error {
	return dao.link(ctx, tenantID, principalID, arbiter_neo4j.LabelRole, arbiter_neo4j.RelHasRole, roleCode)
}

// AddToGroup adds a principal to a group.
func (dao *IdentityDAO) AddToGroup(ctx context.Context, tenantID, principalID, groupCode string) error {
	return dao.link(ctx, tenantID, principalID, arbiter_neo4j.LabelGroup, arbiter_neo4j.RelMemberOf, groupCode)
}

// GrantPersona attaches a persona template to a principal.
func (dao *IdentityDAO) GrantPersona(ctx context.Context, tenantID, principalID, personaCode string) error {
	return dao.link(ctx, tenantID, principalID, arbiter_neo4j.LabelPersona, arbiter_neo4j.RelHasPersona, personaCode)
}

// AssignOU places a principal in an organizational unit.
func (dao *IdentityDAO) AssignOU(ctx context.Context, tenantID, principalID, ouID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:` + arbiter_neo4j.LabelPrincipal + ` {id: $principalId, tenantId: $tenantId})
        MATCH (o:` + arbiter_neo4j.LabelOUNode + ` {id: $ouId, tenantId: $tenantId})
        MERGE (p)-[:` + arbiter_neo4j.RelAssignedOU + `]->(o)
        RETURN o.id AS id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"principalId": principalID,
			"tenantId":    tenantID,
			"ouId":        ouID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrOUNotFound
		}
		return nil, nil
	})
	return err
}

// AssignModule adds a module key to a principal's module scope.
func (dao *IdentityDAO) AssignModule(ctx context.Context, tenantID, principalID, moduleKey string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:` + arbiter_neo4j.LabelPrincipal + ` {id: $principalId, tenantId: $tenantId})
        MERGE (p)-[r:` + arbiter_neo4j.RelScopedToModule + ` {moduleKey: $moduleKey}]->(p)
        RETURN p.id AS id
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"principalId": principalID,
			"tenantId":    tenantID,
			"moduleKey":   moduleKey,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPrincipalNotFound
		}
		return nil, nil
	})
	return err
}

// FetchFacts walks role bindings, group memberships, OU assignments, module
// scope and persona grants for one principal in a single read transaction.
func (dao *IdentityDAO) FetchFacts(ctx context.Context, tenantID, principalID string) (*IdentityFacts, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:` + arbiter_neo4j.LabelPrincipal + ` {id: $principalId, tenantId: $tenantId})
        OPTIONAL MATCH (p)-[:` + arbiter_neo4j.RelHasRole + `]->(role:` + arbiter_neo4j.LabelRole + `)
        OPTIONAL MATCH (p)-[:` + arbiter_neo4j.RelMemberOf + `]->(grp:` + arbiter_neo4j.LabelGroup + `)
        OPTIONAL MATCH (p)-[:` + arbiter_neo4j.RelAssignedOU + `]->(ounit:` + arbiter_neo4j.LabelOUNode + `)
        OPTIONAL MATCH (p)-[:` + arbiter_neo4j.RelHasPersona + `]->(persona:` + arbiter_neo4j.LabelPersona + `)
        OPTIONAL MATCH (p)-[mod:` + arbiter_neo4j.RelScopedToModule + `]->()
        RETURN p.kind AS kind,
               collect(DISTINCT role.code) AS roles,
               collect(DISTINCT grp.code) AS groups,
               collect(DISTINCT ounit.path) AS ouPaths,
               collect(DISTINCT persona.code) AS personas,
               collect(DISTINCT mod.moduleKey) AS modules
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"principalId": principalID,
			"tenantId":    tenantID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPrincipalNotFound
		}
		record := records.Record()

		facts := &IdentityFacts{
			PrincipalID: principalID,
			Kind:        model.SubjectType(stringValue(record.Values[0])),
			Roles:       stringSlice(record.Values[1]),
			Groups:      stringSlice(record.Values[2]),
			OUPaths:     stringSlice(record.Values[3]),
			Personas:    stringSlice(record.Values[4]),
			Modules:     stringSlice(record.Values[5]),
		}
		if facts.Kind == "" {
			facts.Kind = model.SubjectUser
		}
		return facts, nil
	})
	if err != nil {
		return nil, err
	}

	facts := result.(*IdentityFacts)
	logger.Debug("Fetched identity facts",
		zap.String("tenantID", tenantID),
		zap.String("principalID", principalID),
		zap.Int("roles", len(facts.Roles)),
		zap.Int("groups", len(facts.Groups)))
	return facts, nil
}

func (dao *IdentityDAO) link(ctx context.Context, tenantID, principalID, targetLabel, rel, code string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (p:` + arbiter_neo4j.LabelPrincipal + ` {id: $principalId, tenantId: $tenantId})
        MERGE (t:` + targetLabel + ` {code: $code, tenantId: $tenantId})
        MERGE (p)-[:` + rel + `]->(t)
        RETURN t.code AS code
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"principalId": principalID,
			"tenantId":    tenantID,
			"code":        code,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPrincipalNotFound
		}
		return nil, nil
	})
	return err
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
