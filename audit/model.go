// audit/model.go
package audit

import (
	"time"
)

// DecisionRecord is one append-only row describing an access decision.
type DecisionRecord struct {
	Timestamp              time.Time `json:"timestamp"`
	TenantID               string    `json:"tenant_id"`
	PrincipalID            string    `json:"principal_id"`
	Operation              string    `json:"operation"`
	EntityKey              string    `json:"entity_key,omitempty"`
	RecordID               string    `json:"record_id,omitempty"`
	Effect                 string    `json:"effect"`
	MatchedRuleID          string    `json:"matched_rule_id,omitempty"`
	MatchedPolicyVersionID string    `json:"matched_policy_version_id,omitempty"`
	Reason                 string    `json:"reason"`
}

// FieldAccessRecord is one append-only row describing a field-mask decision.
type FieldAccessRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	TenantID    string    `json:"tenant_id"`
	PrincipalID string    `json:"principal_id"`
	EntityKey   string    `json:"entity_key"`
	FieldPath   string    `json:"field_path"`
	Action      string    `json:"action"`
	Allowed     bool      `json:"allowed"`
	Strategy    string    `json:"strategy,omitempty"`
	PolicyID    string    `json:"policy_id,omitempty"`
}
