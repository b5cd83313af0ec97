package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/pdp/condition"
)

func TestCELEvaluatorMatches(t *testing.T) {
	e, err := condition.NewCELEvaluator()
	require.NoError(t, err)

	evalCtx := map[string]string{
		"tenant_id":    "t1",
		"principal_id": "u1",
		"record_owner": "u1",
		"channel":      "api",
	}

	matched, err := e.Matches(`ctx["record_owner"] == ctx["principal_id"]`, evalCtx)
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = e.Matches(`ctx["channel"] == "ui"`, evalCtx)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestCELEvaluatorEmptyExpression(t *testing.T) {
	e, err := condition.NewCELEvaluator()
	require.NoError(t, err)

	matched, err := e.Matches("", nil)
	require.NoError(t, err)
	assert.True(t, matched, "a rule with no conditions always matches")

	matched, err = e.Matches("   ", map[string]string{})
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestCELEvaluatorRejectsNonBoolean(t *testing.T) {
	e, err := condition.NewCELEvaluator()
	require.NoError(t, err)

	_, err = e.Matches(`ctx["tenant_id"]`, map[string]string{"tenant_id": "t1"})
	assert.Error(t, err)
}

func TestCELEvaluatorInvalidExpression(t *testing.T) {
	e, err := condition.NewCELEvaluator()
	require.NoError(t, err)

	_, err = e.Matches(`ctx[`, map[string]string{})
	assert.Error(t, err)
}

func TestCELEvaluatorMissingKeyIsError(t *testing.T) {
	e, err := condition.NewCELEvaluator()
	require.NoError(t, err)

	// Guarded lookups are the rule author's responsibility.
	matched, err := e.Matches(`"region" in ctx && ctx["region"] == "emea"`, map[string]string{})
	require.NoError(t, err)
	assert.False(t, matched)
}
