// persona/registry.go
package persona

import (
	"sync"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	"github.com/arbiterhq/arbiter/model"
)

// Registry holds the global, tenant-independent persona templates. Bundles
// are registered at provisioning time and read-only on the evaluation path.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]model.Persona
}

// NewRegistry returns a registry seeded with the built-in persona templates.
func NewRegistry() *Registry {
	r := &Registry{bundles: make(map[string]model.Persona)}
	for _, p := range defaultPersonas() {
		r.bundles[p.Code] = p
	}
	return r
}

// Register adds a persona template. Re-registering an existing code is a
// conflict; templates are replaced by provisioning, not mutated ad hoc.
func (r *Registry) Register(p model.Persona) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bundles[p.Code]; exists {
		return arbiter_errors.ErrPersonaConflict
	}
	r.bundles[p.Code] = p
	return nil
}

// Capabilities returns the (operation, constraint) grant set of a persona.
func (r *Registry) Capabilities(personaCode string) ([]model.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bundles[personaCode]
	if !ok {
		return nil, arbiter_errors.ErrUnknownPersona
	}
	caps := make([]model.Capability, len(p.Capabilities))
	copy(caps, p.Capabilities)
	return caps, nil
}

// Get returns the full persona template.
func (r *Registry) Get(personaCode string) (model.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bundles[personaCode]
	if !ok {
		return model.Persona{}, arbiter_errors.ErrUnknownPersona
	}
	return p, nil
}

func defaultPersonas() []model.Persona {
	return []model.Persona{
		{
			Code:      "viewer",
			Name:      "Viewer",
			ScopeMode: model.ScopeModeOU,
			Priority:  100,
			Capabilities: []model.Capability{
				{Operation: "read", Constraint: model.ConstraintOU},
				{Operation: "list", Constraint: model.ConstraintOU},
			},
		},
		{
			Code:      "agent",
			Name:      "Agent",
			ScopeMode: model.ScopeModeOU,
			Priority:  80,
			Capabilities: []model.Capability{
				{Operation: "read", Constraint: model.ConstraintOU},
				{Operation: "list", Constraint: model.ConstraintOU},
				{Operation: "create", Constraint: model.ConstraintOU},
				{Operation: "update", Constraint: model.ConstraintOwn},
			},
		},
		{
			Code:      "manager",
			Name:      "Manager",
			ScopeMode: model.ScopeModeOU,
			Priority:  60,
			Capabilities: []model.Capability{
				{Operation: "read", Constraint: model.ConstraintOU},
				{Operation: "list", Constraint: model.ConstraintOU},
				{Operation: "create", Constraint: model.ConstraintOU},
				{Operation: "update", Constraint: model.ConstraintOU},
				{Operation: "approve", Constraint: model.ConstraintOU},
				{Operation: "assign", Constraint: model.ConstraintOU},
			},
		},
		{
			Code:      "auditor",
			Name:      "Auditor",
			ScopeMode: model.ScopeModeTenant,
			Priority:  40,
			Capabilities: []model.Capability{
				{Operation: "read", Constraint: model.ConstraintNone},
				{Operation: "list", Constraint: model.ConstraintNone},
				{Operation: "export", Constraint: model.ConstraintNone},
			},
		},
		{
			Code:      "admin",
			Name:      "Administrator",
			ScopeMode: model.ScopeModeTenant,
			Priority:  10,
			Capabilities: []model.Capability{
				{Operation: "read", Constraint: model.ConstraintNone},
				{Operation: "list", Constraint: model.ConstraintNone},
				{Operation: "create", Constraint: model.ConstraintNone},
				{Operation: "update", Constraint: model.ConstraintNone},
				{Operation: "delete", Constraint: model.ConstraintNone},
				{Operation: "approve", Constraint: model.ConstraintNone},
				{Operation: "assign", Constraint: model.ConstraintNone},
				{Operation: "export", Constraint: model.ConstraintNone},
			},
		},
	}
}
