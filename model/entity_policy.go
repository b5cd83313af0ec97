// model/entity_policy.go
package model

// AccessMode is the fallback behavior when no permission rule matches.
type AccessMode string

const (
	AccessDefaultDeny  AccessMode = "default_deny"
	AccessDefaultAllow AccessMode = "default_allow"
	AccessInherit      AccessMode = "inherit"
)

func (m AccessMode) Valid() bool {
	switch m {
	case AccessDefaultDeny, AccessDefaultAllow, AccessInherit:
		return true
	}
	return false
}

// OUScopeMode controls whether record-scoped rules require the record's OU to
// sit inside the caller's OU subtree.
type OUScopeMode string

const (
	OUScopeStrict OUScopeMode = "strict"
	OUScopeAny    OUScopeMode = "any"
)

// EntityPolicy is the per-entity (or per-entity-version) default attached
// below the rule layer. Exactly one of EntityKey/EntityVersionKey is set.
type EntityPolicy struct {
	ID               string      `json:"id"`
	TenantID         string      `json:"tenant_id"`
	EntityKey        string      `json:"entity_key,omitempty"`
	EntityVersionKey string      `json:"entity_version_key,omitempty"`
	ModuleKey        string      `json:"module_key,omitempty"`
	AccessMode       AccessMode  `json:"access_mode"`
	OUScopeMode      OUScopeMode `json:"ou_scope_mode"`
}
