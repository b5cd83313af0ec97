// model/neo4j/schema.go
package arbiter_neo4j

// Node Labels
const (
	// LabelTenant is the isolation boundary; every tenant-scoped node hangs off one
	LabelTenant = "Tenant"

	// LabelPolicy represents a permission policy container
	LabelPolicy = "PermissionPolicy"

	// LabelPolicyVersion represents one immutable-once-published rule set
	LabelPolicyVersion = "PolicyVersion"

	// LabelRule represents a permission rule within a policy version
	LabelRule = "PermissionRule"

	// LabelCompiledPolicy represents a content-addressed compiled artifact row
	LabelCompiledPolicy = "CompiledPolicy"

	// LabelEntityPolicy represents the per-entity default access behavior
	LabelEntityPolicy = "EntityPolicy"

	// LabelOUNode represents an organizational unit with a materialized path
	LabelOUNode = "OUNode"

	// LabelPrincipal represents a user or service principal
	LabelPrincipal = "Principal"

	// LabelRole represents an identity-provider role
	LabelRole = "Role"

	// LabelGroup represents an identity-provider group
	LabelGroup = "Group"

	// LabelPersona represents a global capability bundle template
	LabelPersona = "Persona"

	// LabelFieldPolicy represents a field security policy
	LabelFieldPolicy = "FieldSecurityPolicy"
)

// Relationship Types
const (
	// RelOwnedBy ties any tenant-scoped node to its tenant
	RelOwnedBy = "OWNED_BY"

	// RelHasVersion ties a policy to its versions
	RelHasVersion = "HAS_VERSION"

	// RelHasRule ties a policy version to its rules
	RelHasRule = "HAS_RULE"

	// RelCompiledFrom ties a compiled artifact row to its policy version
	RelCompiledFrom = "COMPILED_FROM"

	// RelChildOf ties an OU node to its parent
	RelChildOf = "CHILD_OF"

	// RelHasRole ties a principal to a bound role
	RelHasRole = "HAS_ROLE"

	// RelMemberOf ties a principal to a group
	RelMemberOf = "MEMBER_OF"

	// RelAssignedOU ties a principal to an OU node
	RelAssignedOU = "ASSIGNED_OU"

	// RelHasPersona ties a principal to a persona template
	RelHasPersona = "HAS_PERSONA"

	// RelScopedToModule carries a principal's module scope assignment
	RelScopedToModule = "SCOPED_TO_MODULE"
)
