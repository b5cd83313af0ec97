// pdp/condition/cel.go
package condition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELEvaluator evaluates rule conditions written as CEL boolean expressions
// over a `ctx` map of string attributes. Compiled programs are cached by
// expression text, so the hot path pays compilation once per distinct rule.
type CELEvaluator struct {
	env      *cel.Env
	programs sync.Map
}

func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELEvaluator{env: env}, nil
}

func (e *CELEvaluator) Matches(expr string, evalCtx map[string]string) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		// A rule with no conditions matches once scope and subject match.
		return true, nil
	}

	program, err := e.loadOrCompile(expr)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(map[string]any{"ctx": evalCtx})
	if err != nil {
		return false, fmt.Errorf("condition evaluation failed: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not produce a boolean", expr)
	}
	return matched, nil
}

func (e *CELEvaluator) loadOrCompile(expr string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition %q must produce a boolean, got %s", expr, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build condition program: %w", err)
	}
	e.programs.Store(expr, program)
	return program, nil
}
