package model

import (
	"github.com/arbiterhq/arbiter/model"
)

// Subject identifies the caller of a decision or field-mask query.
type Subject struct {
	PrincipalID string            `json:"principal_id"`
	Kind        model.SubjectType `json:"kind"` // user or service
}

// ScopeContext describes the target of an access query. Narrower keys are
// optional: a query against an entity carries no record fields.
type ScopeContext struct {
	ModuleKey        string `json:"module_key,omitempty"`
	EntityKey        string `json:"entity_key,omitempty"`
	EntityVersionKey string `json:"entity_version_key,omitempty"`
	RecordID         string `json:"record_id,omitempty"`
	RecordOwnerID    string `json:"record_owner_id,omitempty"`
	RecordOUPath     string `json:"record_ou_path,omitempty"`
}

// AccessRequest is one decision query. Environment entries are merged into
// the condition evaluation context; wall-clock facts enter decisions only
// through values the caller supplies here.
type AccessRequest struct {
	TenantID    string            `json:"tenant_id"`
	Subject     Subject           `json:"subject"`
	Operation   string            `json:"operation"`
	Scope       ScopeContext      `json:"scope"`
	Environment map[string]string `json:"environment,omitempty"`
}

// MaskRequest is one field-mask query against a set of field paths.
type MaskRequest struct {
	TenantID    string            `json:"tenant_id"`
	Subject     Subject           `json:"subject"`
	EntityKey   string            `json:"entity_key"`
	FieldPaths  []string          `json:"field_paths"`
	Action      model.FieldAction `json:"action"`
	Scope       ScopeContext      `json:"scope"`
	Environment map[string]string `json:"environment,omitempty"`
}
