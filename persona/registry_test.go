package persona_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/persona"
)

func TestRegistryDefaults(t *testing.T) {
	r := persona.NewRegistry()

	caps, err := r.Capabilities("viewer")
	require.NoError(t, err)
	assert.Contains(t, caps, model.Capability{Operation: "read", Constraint: model.ConstraintOU})

	caps, err = r.Capabilities("admin")
	require.NoError(t, err)
	assert.Contains(t, caps, model.Capability{Operation: "delete", Constraint: model.ConstraintNone})

	_, err = r.Capabilities("nope")
	assert.ErrorIs(t, err, arbiter_errors.ErrUnknownPersona)
}

func TestRegistryRegister(t *testing.T) {
	r := persona.NewRegistry()

	custom := model.Persona{
		Code:      "billing_clerk",
		Name:      "Billing Clerk",
		ScopeMode: model.ScopeModeModule,
		Priority:  70,
		Capabilities: []model.Capability{
			{Operation: "read", Constraint: model.ConstraintModule},
			{Operation: "update", Constraint: model.ConstraintModule},
		},
	}
	require.NoError(t, r.Register(custom))

	caps, err := r.Capabilities("billing_clerk")
	require.NoError(t, err)
	assert.Len(t, caps, 2)

	assert.ErrorIs(t, r.Register(custom), arbiter_errors.ErrPersonaConflict)

	// Returned slices are copies; mutating one must not leak into the registry.
	caps[0].Operation = "tampered"
	fresh, err := r.Capabilities("billing_clerk")
	require.NoError(t, err)
	assert.Equal(t, "read", fresh[0].Operation)
}
