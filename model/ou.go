// model/ou.go
package model

import "time"

// OUNode is a node in the tenant's organizational-unit tree. Path and depth
// are materialized at creation time and never mutated in place; re-parenting
// recomputes the whole subtree in one coordinated write.
type OUNode struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Depth     int       `json:"depth"`
	CreatedAt time.Time `json:"created_at"`
}
