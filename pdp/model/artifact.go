package model

import (
	"sort"

	"github.com/arbiterhq/arbiter/model"
)

// IndexKey addresses one bucket of the compiled decision index.
type IndexKey struct {
	ScopeType   model.ScopeType
	ScopeKey    string
	SubjectType model.SubjectType
	SubjectKey  string
}

// IndexedRule is one rule flattened into the compiled index. Operations maps
// operation code to its effective constraint.
type IndexedRule struct {
	RuleID          string
	PolicyVersionID string
	ScopeType       model.ScopeType
	ScopeKey        string
	Effect          model.Effect
	Priority        int
	Condition       string
	Operations      map[string]model.ConstraintType
}

// CompiledArtifact is the content-hashed, pre-sorted decision index for one
// published policy version. Shared read-only across evaluator goroutines.
type CompiledArtifact struct {
	TenantID        string
	PolicyVersionID string
	Hash            string
	Index           map[IndexKey][]*IndexedRule
	RuleCount       int
}

// Lookup returns the bucket for one (scope, subject) pair, already sorted.
func (a *CompiledArtifact) Lookup(key IndexKey) []*IndexedRule {
	return a.Index[key]
}

// SortRules orders candidates by priority ascending, scope specificity
// descending, then rule id ascending. The id tie-break keeps equal-priority,
// equal-specificity rule sets deterministic instead of leaving the outcome
// to map iteration order.
func SortRules(rules []*IndexedRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		si, sj := rules[i].ScopeType.Specificity(), rules[j].ScopeType.Specificity()
		if si != sj {
			return si > sj
		}
		return rules[i].RuleID < rules[j].RuleID
	})
}
