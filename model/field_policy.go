// model/field_policy.go
package model

// FieldAction is the access direction a field policy constrains.
type FieldAction string

const (
	FieldActionRead  FieldAction = "read"
	FieldActionWrite FieldAction = "write"
)

func (a FieldAction) Valid() bool {
	return a == FieldActionRead || a == FieldActionWrite
}

// FieldPolicyType selects which actions a field policy applies to.
type FieldPolicyType string

const (
	FieldPolicyRead  FieldPolicyType = "read"
	FieldPolicyWrite FieldPolicyType = "write"
	FieldPolicyBoth  FieldPolicyType = "both"
)

// AppliesTo reports whether the policy type covers the requested action.
func (t FieldPolicyType) AppliesTo(action FieldAction) bool {
	if t == FieldPolicyBoth {
		return true
	}
	return string(t) == string(action)
}

// MaskStrategy is how a disallowed field is rendered for the caller.
type MaskStrategy string

const (
	MaskNull    MaskStrategy = "null"
	MaskRedact  MaskStrategy = "redact"
	MaskHash    MaskStrategy = "hash"
	MaskPartial MaskStrategy = "partial"
	MaskRemove  MaskStrategy = "remove"
)

func (m MaskStrategy) Valid() bool {
	switch m {
	case MaskNull, MaskRedact, MaskHash, MaskPartial, MaskRemove:
		return true
	}
	return false
}

// FieldSecurityPolicy restricts one field path of an entity to a role list
// or an opaque condition, with the same scope hierarchy as permission rules.
type FieldSecurityPolicy struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	EntityKey    string          `json:"entity_key"`
	FieldPath    string          `json:"field_path"`
	PolicyType   FieldPolicyType `json:"policy_type"`
	Roles        []string        `json:"roles,omitempty"`
	Condition    string          `json:"condition,omitempty"`
	MaskStrategy MaskStrategy    `json:"mask_strategy"`
	ScopeType    ScopeType       `json:"scope_type"`
	ScopeKey     string          `json:"scope_key"`
	Priority     int             `json:"priority"`
	IsActive     bool            `json:"is_active"`
}
