// model/entitlement.go
package model

import "time"

// Entitlements is the cached materialization of a principal's effective
// roles, groups, OU memberships and persona-expanded capabilities. One
// snapshot per (tenant, principal), bounded by ExpiresAt.
type Entitlements struct {
	TenantID     string       `json:"tenant_id"`
	PrincipalID  string       `json:"principal_id"`
	Kind         SubjectType  `json:"kind"` // user or service
	Roles        []string     `json:"roles"`
	Groups       []string     `json:"groups"`
	OUPaths      []string     `json:"ou_paths"`
	Modules      []string     `json:"modules"`
	Personas     []string     `json:"personas"`
	Capabilities []Capability `json:"capabilities"`
	ComputedAt   time.Time    `json:"computed_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// HasRole reports whether the snapshot carries the given role code.
func (e *Entitlements) HasRole(role string) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasModule reports whether the snapshot's module scope contains the key.
func (e *Entitlements) HasModule(moduleKey string) bool {
	for _, m := range e.Modules {
		if m == moduleKey {
			return true
		}
	}
	return false
}
