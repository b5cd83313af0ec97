// dao/compiled_dao.go
package dao

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	arbiter_neo4j "github.com/arbiterhq/arbiter/model/neo4j"
)

type CompiledPolicyDAO struct {
	Driver neo4j.Driver
}

func NewCompiledPolicyDAO(driver neo4j.Driver) *CompiledPolicyDAO {
	return &CompiledPolicyDAO{Driver: driver}
}

// SaveCompiled records one compiled artifact row. MERGE on the full
// (tenant, policy version, hash) key makes concurrent compilations of the
// same inputs converge on a single surviving row: the first writer creates
// it, every later writer matches it and keeps the original timestamp.
func (dao *CompiledPolicyDAO) SaveCompiled(ctx context.Context, record model.CompiledPolicyRecord) (*model.CompiledPolicyRecord, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	compiledAt := time.Now().UTC()
	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (v:` + arbiter_neo4j.LabelPolicyVersion + ` {id: $versionId, tenantId: $tenantId})
        MERGE (c:` + arbiter_neo4j.LabelCompiledPolicy + ` {
            tenantId: $tenantId,
            policyVersionId: $versionId,
            compiledHash: $hash
        })
        ON CREATE SET c.ruleCount = $ruleCount, c.compiledAt = $compiledAt
        MERGE (c)-[:` + arbiter_neo4j.RelCompiledFrom + `]->(v)
        RETURN c.compiledAt AS compiledAt, c.ruleCount AS ruleCount
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"tenantId":   record.TenantID,
			"versionId":  record.PolicyVersionID,
			"hash":       record.CompiledHash,
			"ruleCount":  record.RuleCount,
			"compiledAt": compiledAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrPolicyVersionNotFound
		}
		rec := records.Record()
		stored := record
		stored.RuleCount = int(rec.Values[1].(int64))
		stored.CompiledAt, _ = time.Parse(time.RFC3339, rec.Values[0].(string))
		return &stored, nil
	})
	if err != nil {
		return nil, err
	}

	stored := result.(*model.CompiledPolicyRecord)
	logger.Info("Compiled artifact row persisted",
		zap.String("tenantID", stored.TenantID),
		zap.String("versionID", stored.PolicyVersionID),
		zap.String("hash", stored.CompiledHash))
	return stored, nil
}

// GetCompiledHash returns the stored hash for a version, or "" when no
// compilation has been recorded yet.
func (dao *CompiledPolicyDAO) GetCompiledHash(ctx context.Context, tenantID, versionID string) (string, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:` + arbiter_neo4j.LabelCompiledPolicy + ` {tenantId: $tenantId, policyVersionId: $versionId})
        RETURN c.compiledHash AS hash
        ORDER BY c.compiledAt DESC
        LIMIT 1
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"tenantId":  tenantID,
			"versionId": versionID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return "", nil
		}
		return records.Record().Values[0].(string), nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
