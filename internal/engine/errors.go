package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes query evaluation failures.
type ErrorCode string

const (
	// CodeInvalidQuery indicates an undefined table, alias, or column,
	// or a structurally broken query description. A caller bug.
	CodeInvalidQuery ErrorCode = "INVALID_QUERY"

	// CodeSchemaMismatch indicates operands with incompatible arity or
	// column types, e.g. a set operation over differently shaped inputs.
	CodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// CodeTypeError indicates a value of the wrong kind reaching an
	// operation, e.g. summing a text column.
	CodeTypeError ErrorCode = "TYPE_ERROR"
)

// Error is a structured, recoverable evaluation failure. Evaluation is
// read-only; a failed query never changes store state.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidQuery reports whether err is an invalid-query failure.
// Uses errors.As to handle wrapped errors.
func IsInvalidQuery(err error) bool { return hasCode(err, CodeInvalidQuery) }

// IsSchemaMismatch reports whether err is an operand shape mismatch.
func IsSchemaMismatch(err error) bool { return hasCode(err, CodeSchemaMismatch) }

// IsTypeError reports whether err is a value kind mismatch.
func IsTypeError(err error) bool { return hasCode(err, CodeTypeError) }

func hasCode(err error, code ErrorCode) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

func invalidQueryf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidQuery, Message: fmt.Sprintf(format, args...)}
}

func schemaMismatchf(format string, args ...any) *Error {
	return &Error{Code: CodeSchemaMismatch, Message: fmt.Sprintf(format, args...)}
}

func typeErrorf(format string, args ...any) *Error {
	return &Error{Code: CodeTypeError, Message: fmt.Sprintf(format, args...)}
}

// wrapInvalid promotes plain evaluation errors (unknown or ambiguous
// columns surfacing through expression evaluation) to InvalidQuery
// without double-wrapping structured errors.
func wrapInvalid(err error) error {
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	return &Error{Code: CodeInvalidQuery, Message: err.Error()}
}
