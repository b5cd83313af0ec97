// model/policy.go
package model

import (
	"time"
)

// PolicyVersionStatus is the lifecycle state of a policy version.
type PolicyVersionStatus string

const (
	VersionDraft     PolicyVersionStatus = "draft"
	VersionPublished PolicyVersionStatus = "published"
	VersionRetired   PolicyVersionStatus = "retired"
)

// PermissionPolicy is a tenant-scoped named container of versioned rule sets.
type PermissionPolicy struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ScopeType   ScopeType `json:"scope_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PermissionPolicyVersion is immutable once published. Rule mutations
// require cutting a new version with a higher version number.
type PermissionPolicyVersion struct {
	ID          string              `json:"id"`
	TenantID    string              `json:"tenant_id"`
	PolicyID    string              `json:"policy_id"`
	VersionNo   int                 `json:"version_no"`
	Status      PolicyVersionStatus `json:"status"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// PermissionRule belongs to exactly one policy version.
type PermissionRule struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	PolicyVersionID string          `json:"policy_version_id"`
	ScopeType       ScopeType       `json:"scope_type"`
	ScopeKey        string          `json:"scope_key"`
	SubjectType     SubjectType     `json:"subject_type"`
	SubjectKey      string          `json:"subject_key"`
	Effect          Effect          `json:"effect"`
	Condition       string          `json:"condition,omitempty"` // opaque predicate, CEL by default
	Priority        int             `json:"priority"`            // lower evaluated first
	IsActive        bool            `json:"is_active"`
	Operations      []RuleOperation `json:"operations"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RuleOperation is the rule<->operation junction with an optional
// per-operation constraint override.
type RuleOperation struct {
	Operation  string         `json:"operation"`
	Constraint ConstraintType `json:"constraint"`
}

// GrantsOperation reports whether the rule's operation junction includes op,
// returning the effective constraint for it.
func (r *PermissionRule) GrantsOperation(op string) (ConstraintType, bool) {
	for _, ro := range r.Operations {
		if ro.Operation == op {
			if ro.Constraint == "" {
				return ConstraintNone, true
			}
			return ro.Constraint, true
		}
	}
	return "", false
}

// CompiledPolicyRecord is the persisted row for a compiled decision artifact,
// content-addressed by hash and unique per (tenant, policy version, hash).
type CompiledPolicyRecord struct {
	TenantID        string    `json:"tenant_id"`
	PolicyVersionID string    `json:"policy_version_id"`
	CompiledHash    string    `json:"compiled_hash"`
	RuleCount       int       `json:"rule_count"`
	CompiledAt      time.Time `json:"compiled_at"`
}
