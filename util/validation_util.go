// util/validation_util.go

package util

import (
	"fmt"

	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/ou"
)

type ValidationUtil struct{}

func NewValidationUtil() *ValidationUtil {
	return &ValidationUtil{}
}

func (v *ValidationUtil) ValidatePolicy(policy model.PermissionPolicy) error {
	if policy.TenantID == "" {
		return fmt.Errorf("policy tenant ID cannot be empty")
	}
	if policy.Name == "" {
		return fmt.Errorf("policy name cannot be empty")
	}
	// Add more validation rules as needed
	return nil
}

func (v *ValidationUtil) ValidateRule(rule model.PermissionRule) error {
	if !rule.ScopeType.Valid() {
		return fmt.Errorf("rule scope type %q is not valid", rule.ScopeType)
	}
	if rule.ScopeType != model.ScopeGlobal && rule.ScopeKey == "" {
		return fmt.Errorf("rule scope key cannot be empty for %s scope", rule.ScopeType)
	}
	if !rule.SubjectType.Valid() {
		return fmt.Errorf("rule subject type %q is not valid", rule.SubjectType)
	}
	if rule.SubjectKey == "" {
		return fmt.Errorf("rule subject key cannot be empty")
	}
	if !rule.Effect.Valid() {
		return fmt.Errorf("rule effect must be either 'allow' or 'deny'")
	}
	if rule.Priority < 0 {
		return fmt.Errorf("rule priority cannot be negative")
	}
	if len(rule.Operations) == 0 {
		return fmt.Errorf("rule must grant at least one operation")
	}
	for _, op := range rule.Operations {
		if op.Operation == "" {
			return fmt.Errorf("rule operation code cannot be empty")
		}
		if op.Constraint != "" && !op.Constraint.Valid() {
			return fmt.Errorf("rule operation constraint %q is not valid", op.Constraint)
		}
	}
	return nil
}

func (v *ValidationUtil) ValidateEntityPolicy(policy model.EntityPolicy) error {
	if policy.TenantID == "" {
		return fmt.Errorf("entity policy tenant ID cannot be empty")
	}
	if !policy.AccessMode.Valid() {
		return fmt.Errorf("entity policy access mode %q is not valid", policy.AccessMode)
	}
	if policy.EntityKey == "" && policy.EntityVersionKey == "" && policy.ModuleKey == "" {
		return fmt.Errorf("entity policy must target an entity, entity version, or module")
	}
	if policy.EntityKey != "" && policy.EntityVersionKey != "" {
		return fmt.Errorf("entity policy cannot target both an entity and an entity version")
	}
	return nil
}

func (v *ValidationUtil) ValidateFieldPolicy(policy model.FieldSecurityPolicy) error {
	if policy.TenantID == "" {
		return fmt.Errorf("field policy tenant ID cannot be empty")
	}
	if policy.EntityKey == "" {
		return fmt.Errorf("field policy entity key cannot be empty")
	}
	if policy.FieldPath == "" {
		return fmt.Errorf("field policy field path cannot be empty")
	}
	if !policy.MaskStrategy.Valid() {
		return fmt.Errorf("field policy mask strategy %q is not valid", policy.MaskStrategy)
	}
	if len(policy.Roles) == 0 && policy.Condition == "" {
		return fmt.Errorf("field policy must carry a role list or a condition")
	}
	return nil
}

func (v *ValidationUtil) ValidateOUNode(node model.OUNode) error {
	if node.TenantID == "" {
		return fmt.Errorf("OU tenant ID cannot be empty")
	}
	if node.Name == "" {
		return fmt.Errorf("OU name cannot be empty")
	}
	if node.Path != "" {
		if err := ou.ValidatePath(node.Path, node.Depth); err != nil {
			return err
		}
	}
	return nil
}

func (v *ValidationUtil) ValidatePrincipal(tenantID, principalID string, kind model.SubjectType) error {
	if tenantID == "" {
		return fmt.Errorf("principal tenant ID cannot be empty")
	}
	if principalID == "" {
		return fmt.Errorf("principal ID cannot be empty")
	}
	if kind != "" && kind != model.SubjectUser && kind != model.SubjectService {
		return fmt.Errorf("principal kind must be 'user' or 'service'")
	}
	return nil
}
