// dao/ou_dao.go
package dao

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
	arbiter_neo4j "github.com/arbiterhq/arbiter/model/neo4j"
	"github.com/arbiterhq/arbiter/ou"
)

type OUDAO struct {
	Driver neo4j.Driver
}

func NewOUDAO(driver neo4j.Driver) *OUDAO {
	return &OUDAO{Driver: driver}
}

// CreateOU materializes the node's path and depth from its parent at write
// time. Malformed paths are rejected here and never surface at query time.
func (dao *OUDAO) CreateOU(ctx context.Context, node model.OUNode) (*model.OUNode, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	node.CreatedAt = time.Now().UTC()

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		if node.ParentID == "" {
			node.Path = ou.ChildPath("", node.ID)
			node.Depth = 1
		} else {
			parentQuery := `
            MATCH (parent:` + arbiter_neo4j.LabelOUNode + ` {id: $parentId, tenantId: $tenantId})
            RETURN parent.path AS path, parent.depth AS depth
            `
			records, err := transaction.Run(parentQuery, map[string]interface{}{
				"parentId": node.ParentID,
				"tenantId": node.TenantID,
			})
			if err != nil {
				return nil, arbiter_errors.ErrDatabaseOperation
			}
			if !records.Next() {
				return nil, arbiter_errors.ErrOUNotFound
			}
			record := records.Record()
			node.Path = ou.ChildPath(record.Values[0].(string), node.ID)
			node.Depth = int(record.Values[1].(int64)) + 1
		}

		if err := ou.ValidatePath(node.Path, node.Depth); err != nil {
			return nil, err
		}

		createQuery := `
        CREATE (o:` + arbiter_neo4j.LabelOUNode + ` {
            id: $id,
            tenantId: $tenantId,
            parentId: $parentId,
            name: $name,
            path: $path,
            depth: $depth,
            createdAt: $createdAt
        })
        RETURN o.id AS id
        `
		_, err := transaction.Run(createQuery, map[string]interface{}{
			"id":        node.ID,
			"tenantId":  node.TenantID,
			"parentId":  node.ParentID,
			"name":      node.Name,
			"path":      node.Path,
			"depth":     node.Depth,
			"createdAt": node.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	_ = result

	logger.Info("OU node created",
		zap.String("ouID", node.ID),
		zap.String("path", node.Path),
		zap.Int("depth", node.Depth))
	return &node, nil
}

// GetOU returns one OU node by id within a tenant.
func (dao *OUDAO) GetOU(ctx context.Context, tenantID, ouID string) (*model.OUNode, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (o:` + arbiter_neo4j.LabelOUNode + ` {id: $id, tenantId: $tenantId})
        RETURN o
        `
		records, err := transaction.Run(query, map[string]interface{}{
			"id":       ouID,
			"tenantId": tenantID,
		})
		if err != nil {
			return nil, arbiter_errors.ErrDatabaseOperation
		}
		if !records.Next() {
			return nil, arbiter_errors.ErrOUNotFound
		}
		props := records.Record().Values[0].(neo4j.Node).Props
		node := &model.OUNode{
			ID:       props["id"].(string),
			TenantID: props["tenantId"].(string),
			ParentID: stringProp(props, "parentId"),
			Name:     stringProp(props, "name"),
			Path:     props["path"].(string),
			Depth:    int(props["depth"].(int64)),
		}
		node.CreatedAt, _ = time.Parse(time.RFC3339, stringProp(props, "createdAt"))
		return node, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.OUNode), nil
}
