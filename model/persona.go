// model/persona.go
package model

// ScopeMode is the breadth at which a persona's grants apply.
type ScopeMode string

const (
	ScopeModeTenant ScopeMode = "tenant"
	ScopeModeOU     ScopeMode = "ou"
	ScopeModeModule ScopeMode = "module"
)

// Capability is one (operation, constraint) grant, either expanded from a
// persona bundle or carried on a rule's operation junction.
type Capability struct {
	Operation  string         `json:"operation"`
	Constraint ConstraintType `json:"constraint"`
}

// Persona is a global, tenant-independent capability bundle template.
// Personas are provisioning-time templates, not part of the hot rule match:
// they are expanded once into entitlement snapshot capabilities.
type Persona struct {
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	ScopeMode    ScopeMode    `json:"scope_mode"`
	Priority     int          `json:"priority"`
	Capabilities []Capability `json:"capabilities"`
}
