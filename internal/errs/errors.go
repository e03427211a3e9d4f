// Package errs provides the unified error type used across the server.
//
// Every subsystem (query building, database drivers, introspection, audit
// storage) wraps its native errors into *errs.Error before returning them.
// The Kind is what a tool caller sees; Message and Cause keep the detail.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindConstraintViolation, pgErr.Message, pgErr)
//
//	// In a caller, check the kind:
//	if errs.IsValidation(err) {
//	    // nothing reached the database
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing driver-specific codes.
// Postgres SQLSTATEs and MySQL error numbers both map onto these kinds.
type ErrKind int

const (
	ErrKindUnknown ErrKind = iota

	// Raised before any connection is acquired.
	ErrKindInvalidArgument       // malformed request shape
	ErrKindInvalidIdentifier     // table/column/schema name fails the format check
	ErrKindMissingWhereClause    // UPDATE/DELETE without filters
	ErrKindEmptyColumnSet        // INSERT/UPDATE without columns
	ErrKindUnsupportedOperator   // filter operator outside the allow-list
	ErrKindStatementKindMismatch // custom SQL disagrees with its declared kind

	// Raised by the database or the pool.
	ErrKindTableNotFound
	ErrKindPoolExhausted
	ErrKindConnectFailed
	ErrKindConstraintViolation
	ErrKindTimeout
	ErrKindQueryExecutionFailed
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindInvalidArgument:
		return "invalid_argument"
	case ErrKindInvalidIdentifier:
		return "invalid_identifier"
	case ErrKindMissingWhereClause:
		return "missing_where_clause"
	case ErrKindEmptyColumnSet:
		return "empty_column_set"
	case ErrKindUnsupportedOperator:
		return "unsupported_operator"
	case ErrKindStatementKindMismatch:
		return "statement_kind_mismatch"
	case ErrKindTableNotFound:
		return "table_not_found"
	case ErrKindPoolExhausted:
		return "pool_exhausted"
	case ErrKindConnectFailed:
		return "connect_failed"
	case ErrKindConstraintViolation:
		return "constraint_violation"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryExecutionFailed:
		return "query_execution_failed"
	default:
		return "unknown"
	}
}

// MarshalText lets kinds appear by name in JSON payloads and log fields.
func (k ErrKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is the single error type returned by all subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsValidation reports whether err was raised by request validation, which
// means no connection was acquired and no SQL was sent.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case ErrKindInvalidArgument,
		ErrKindInvalidIdentifier,
		ErrKindMissingWhereClause,
		ErrKindEmptyColumnSet,
		ErrKindUnsupportedOperator,
		ErrKindStatementKindMismatch:
		return true
	}
	return false
}

// IsTableNotFound reports whether err names a relation that does not exist.
func IsTableNotFound(err error) bool {
	return KindOf(err) == ErrKindTableNotFound
}

// IsConnectFailed reports whether err is a connectivity or auth failure.
// Read-only operations are retried once on this kind.
func IsConnectFailed(err error) bool {
	return KindOf(err) == ErrKindConnectFailed
}

// IsPoolExhausted reports whether the pool had no free connection within the
// acquire bound.
func IsPoolExhausted(err error) bool {
	return KindOf(err) == ErrKindPoolExhausted
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConstraintViolation reports whether the database rejected a write
// because of a unique, foreign key, not-null or check constraint.
func IsConstraintViolation(err error) bool {
	return KindOf(err) == ErrKindConstraintViolation
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// MessageOf returns the caller-facing message of err. Database messages are
// kept verbatim so the caller sees what the server reported.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
