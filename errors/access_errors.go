package errors

import "errors"

var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrTenantRequired    = errors.New("tenant identifier is required")

	ErrEntityPolicyNotFound = errors.New("entity policy not found")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrUnknownPersona       = errors.New("unknown persona")
	ErrPersonaConflict      = errors.New("persona conflict")

	ErrMalformedOUPath = errors.New("malformed organizational unit path")
	ErrOUNotFound      = errors.New("organizational unit not found")
	ErrOUConflict      = errors.New("organizational unit conflict")

	ErrInvalidScopeType   = errors.New("invalid scope type")
	ErrInvalidSubjectType = errors.New("invalid subject type")
	ErrInvalidEffect      = errors.New("invalid effect")
	ErrInvalidConstraint  = errors.New("invalid constraint type")

	ErrInvalidFieldPolicyData = errors.New("invalid field security policy data")

	ErrCacheUnavailable = errors.New("entitlement cache backend unavailable")
)
