// model/scope.go
package model

import (
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
)

// ScopeType is the breadth at which a rule or field policy applies.
type ScopeType string

const (
	ScopeGlobal        ScopeType = "global"
	ScopeModule        ScopeType = "module"
	ScopeEntity        ScopeType = "entity"
	ScopeEntityVersion ScopeType = "entity_version"
	ScopeRecord        ScopeType = "record"
)

// Specificity orders scope types from broadest (global) to narrowest (record).
// A higher value wins over a lower one at equal priority.
func (s ScopeType) Specificity() int {
	switch s {
	case ScopeGlobal:
		return 1
	case ScopeModule:
		return 2
	case ScopeEntity:
		return 3
	case ScopeEntityVersion:
		return 4
	case ScopeRecord:
		return 5
	default:
		return 0
	}
}

func (s ScopeType) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeModule, ScopeEntity, ScopeEntityVersion, ScopeRecord:
		return true
	}
	return false
}

func ParseScopeType(v string) (ScopeType, error) {
	s := ScopeType(v)
	if !s.Valid() {
		return "", arbiter_errors.ErrInvalidScopeType
	}
	return s, nil
}

// SubjectType identifies what kind of principal a rule's subject key names.
type SubjectType string

const (
	SubjectRole    SubjectType = "kc_role"
	SubjectGroup   SubjectType = "kc_group"
	SubjectUser    SubjectType = "user"
	SubjectService SubjectType = "service"
)

func (s SubjectType) Valid() bool {
	switch s {
	case SubjectRole, SubjectGroup, SubjectUser, SubjectService:
		return true
	}
	return false
}

func ParseSubjectType(v string) (SubjectType, error) {
	s := SubjectType(v)
	if !s.Valid() {
		return "", arbiter_errors.ErrInvalidSubjectType
	}
	return s, nil
}

// Effect is the outcome a matching rule produces.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

func ParseEffect(v string) (Effect, error) {
	e := Effect(v)
	if !e.Valid() {
		return "", arbiter_errors.ErrInvalidEffect
	}
	return e, nil
}

// ConstraintType qualifies how a granted operation is narrowed at match time.
type ConstraintType string

const (
	ConstraintNone   ConstraintType = "none"
	ConstraintOwn    ConstraintType = "own"
	ConstraintOU     ConstraintType = "ou"
	ConstraintModule ConstraintType = "module"
)

func (c ConstraintType) Valid() bool {
	switch c {
	case ConstraintNone, ConstraintOwn, ConstraintOU, ConstraintModule:
		return true
	}
	return false
}

func ParseConstraintType(v string) (ConstraintType, error) {
	if v == "" {
		return ConstraintNone, nil
	}
	c := ConstraintType(v)
	if !c.Valid() {
		return "", arbiter_errors.ErrInvalidConstraint
	}
	return c, nil
}
