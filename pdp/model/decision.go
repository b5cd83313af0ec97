package model

import (
	"github.com/arbiterhq/arbiter/model"
)

// Decision is the outcome of one access query. Reason is human-readable;
// nothing beyond the matched rule id is surfaced to callers.
type Decision struct {
	Effect                 model.Effect `json:"effect"`
	MatchedRuleID          string       `json:"matched_rule_id,omitempty"`
	MatchedPolicyVersionID string       `json:"matched_policy_version_id,omitempty"`
	Reason                 string       `json:"reason"`
}

// MaskDecision is the per-field outcome of one field-mask query. Strategy is
// set only when the field is not plainly allowed.
type MaskDecision struct {
	Allowed  bool               `json:"allowed"`
	Strategy model.MaskStrategy `json:"strategy,omitempty"`
	PolicyID string             `json:"policy_id,omitempty"`
}
