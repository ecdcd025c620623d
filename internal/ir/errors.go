package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes nested-write failures.
type ErrorCode string

const (
	// ErrCodeMalformedSpec: structural problem in the seed document
	// (unknown type, relation or field, cardinality mismatch). Parse time.
	ErrCodeMalformedSpec ErrorCode = "MALFORMED_SPEC"

	// ErrCodeCycle: the dependency graph is not a DAG. Ordering time.
	ErrCodeCycle ErrorCode = "CYCLE"

	// ErrCodeValidation: a node's field set is inconsistent with its operation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeUniqueNotFound: a connect predicate matched no row.
	ErrCodeUniqueNotFound ErrorCode = "UNIQUE_NOT_FOUND"

	// ErrCodeConstraintViolation: the backend rejected a write, or a unique
	// predicate matched more than one row.
	ErrCodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"

	// ErrCodePlanOrdering: a node ran with an unresolved foreign-key slot.
	// Always an engine defect.
	ErrCodePlanOrdering ErrorCode = "PLAN_ORDERING"

	// ErrCodeTransactionAbort wraps any failure raised after the transaction
	// opened and signals that it was rolled back.
	ErrCodeTransactionAbort ErrorCode = "TRANSACTION_ABORT"
)

// Error is the single error type of the nested-write pipeline.
//
// Every error carries the dotted node path at which it occurred
// (entity.relation.relation...), so failures in deep graphs can be located
// without re-deriving the structure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Path is the dotted node path, e.g. "order.deliveryman.gender".
	Path string

	// Entity is the entity type of the failing node, when known.
	Entity string

	// Message is a human-readable description.
	Message string

	// Cycle lists entity types participating in a dependency cycle.
	Cycle []string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// HasCode reports whether any *Error in the chain has the given code.
// Unlike a single errors.As it looks past a TRANSACTION_ABORT wrapper.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// Cause returns the innermost *Error in the chain, skipping the
// TRANSACTION_ABORT wrapper. Returns nil if err carries no *Error.
func Cause(err error) *Error {
	var last *Error
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		last = e
		err = e.Err
	}
	return last
}

// PathOf returns the node path recorded on the innermost *Error, or "".
func PathOf(err error) string {
	if c := Cause(err); c != nil {
		return c.Path
	}
	return ""
}

// IsCycleError reports whether err is or wraps a CYCLE error.
func IsCycleError(err error) bool { return HasCode(err, ErrCodeCycle) }

// IsMalformedSpec reports whether err is or wraps a MALFORMED_SPEC error.
func IsMalformedSpec(err error) bool { return HasCode(err, ErrCodeMalformedSpec) }

// IsValidationError reports whether err is or wraps a VALIDATION error.
func IsValidationError(err error) bool { return HasCode(err, ErrCodeValidation) }

// IsUniqueNotFound reports whether err is or wraps a UNIQUE_NOT_FOUND error.
func IsUniqueNotFound(err error) bool { return HasCode(err, ErrCodeUniqueNotFound) }

// IsConstraintViolation reports whether err is or wraps a CONSTRAINT_VIOLATION error.
func IsConstraintViolation(err error) bool { return HasCode(err, ErrCodeConstraintViolation) }

// IsPlanOrderingError reports whether err is or wraps a PLAN_ORDERING error.
func IsPlanOrderingError(err error) bool { return HasCode(err, ErrCodePlanOrdering) }

// IsTransactionAbort reports whether the failure happened inside a
// transaction that was rolled back.
func IsTransactionAbort(err error) bool { return HasCode(err, ErrCodeTransactionAbort) }

// NewMalformedSpecError creates a MALFORMED_SPEC error.
func NewMalformedSpecError(path, format string, args ...any) *Error {
	return &Error{Code: ErrCodeMalformedSpec, Path: path, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError creates a VALIDATION error for a node.
func NewValidationError(path, entity, format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Path: path, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// NewCycleError creates a CYCLE error naming the participating entity types
// in cycle order, e.g. ["account", "profile", "account"].
func NewCycleError(path string, cycle []string) *Error {
	return &Error{
		Code:    ErrCodeCycle,
		Path:    path,
		Message: "relation cycle: " + strings.Join(cycle, " -> "),
		Cycle:   cycle,
	}
}

// NewUniqueNotFoundError creates a UNIQUE_NOT_FOUND error.
func NewUniqueNotFoundError(path, entity string, predicate IRObject) *Error {
	return &Error{
		Code:    ErrCodeUniqueNotFound,
		Path:    path,
		Entity:  entity,
		Message: fmt.Sprintf("no %s row matches %s", entity, Format(predicate)),
	}
}

// NewConstraintViolationError creates a CONSTRAINT_VIOLATION error.
func NewConstraintViolationError(path, entity, message string, cause error) *Error {
	return &Error{Code: ErrCodeConstraintViolation, Path: path, Entity: entity, Message: message, Err: cause}
}

// NewPlanOrderingError creates a PLAN_ORDERING error.
func NewPlanOrderingError(path, entity string, pending []string) *Error {
	return &Error{
		Code:    ErrCodePlanOrdering,
		Path:    path,
		Entity:  entity,
		Message: fmt.Sprintf("executed with unresolved foreign keys %v (planner defect)", pending),
	}
}

// NewTransactionAbortError wraps a mid-transaction failure after rollback.
func NewTransactionAbortError(cause error) *Error {
	return &Error{
		Code:    ErrCodeTransactionAbort,
		Path:    PathOf(cause),
		Message: "transaction rolled back",
		Err:     cause,
	}
}
