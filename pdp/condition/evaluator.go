// pdp/condition/evaluator.go
package condition

// Evaluator evaluates one opaque rule predicate against a flat evaluation
// context. An empty expression always matches. Implementations must be
// deterministic for a fixed (expr, evalCtx) pair and safe for concurrent use.
type Evaluator interface {
	Matches(expr string, evalCtx map[string]string) (bool, error)
}
