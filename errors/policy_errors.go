// errors/policy_errors.go
package errors

import "errors"

var (
	ErrPolicyNotFound        = errors.New("policy not found")
	ErrPolicyVersionNotFound = errors.New("policy version not found")
	ErrPolicyConflict        = errors.New("policy conflict")
	ErrVersionPublished      = errors.New("policy version is published and immutable")
	ErrVersionNotPublished   = errors.New("policy version is not published")
	ErrDraftNotCompilable    = errors.New("draft policy version cannot be compiled")
	ErrInvalidPolicyData     = errors.New("invalid policy data")
	ErrInvalidRuleData       = errors.New("invalid rule data")
	ErrDatabaseOperation     = errors.New("database operation failed")
	ErrInternalServer        = errors.New("internal server error")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidPagination     = errors.New("invalid pagination parameters")
)
