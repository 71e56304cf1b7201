package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store mutation failures.
type ErrorCode string

const (
	// CodeConstraintViolation indicates a domain, entity, or check
	// constraint failure. User-correctable: fix the data and retry.
	CodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"

	// CodeReferentialBlock indicates a delete or update blocked by a
	// RESTRICT foreign key from a referencing table.
	CodeReferentialBlock ErrorCode = "REFERENTIAL_BLOCK"

	// CodeTypeError indicates a value that does not conform to its
	// column's declared type (including row arity mismatches).
	CodeTypeError ErrorCode = "TYPE_ERROR"

	// CodeUnknownTable indicates a mutation addressed to a table the
	// store does not hold.
	CodeUnknownTable ErrorCode = "UNKNOWN_TABLE"
)

// Error is a structured, recoverable store failure. Every failed
// operation leaves prior state unchanged; callers inspect Code to decide
// retry or user-message behavior.
type Error struct {
	Code       ErrorCode
	Message    string
	Table      string
	Column     string // offending column, when known
	Constraint string // key or check name, when known
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Constraint != "":
		return fmt.Sprintf("%s: %s (table=%s, constraint=%s)", e.Code, e.Message, e.Table, e.Constraint)
	case e.Column != "":
		return fmt.Sprintf("%s: %s (table=%s, column=%s)", e.Code, e.Message, e.Table, e.Column)
	case e.Table != "":
		return fmt.Sprintf("%s: %s (table=%s)", e.Code, e.Message, e.Table)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsConstraintViolation reports whether err is a constraint violation.
// Uses errors.As to handle wrapped errors.
func IsConstraintViolation(err error) bool { return hasCode(err, CodeConstraintViolation) }

// IsReferentialBlock reports whether err is a RESTRICT block.
func IsReferentialBlock(err error) bool { return hasCode(err, CodeReferentialBlock) }

// IsTypeError reports whether err is a type conformance failure.
func IsTypeError(err error) bool { return hasCode(err, CodeTypeError) }

// IsUnknownTable reports whether err names a missing table.
func IsUnknownTable(err error) bool { return hasCode(err, CodeUnknownTable) }

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func violationf(table, constraint, format string, args ...any) *Error {
	return &Error{
		Code:       CodeConstraintViolation,
		Message:    fmt.Sprintf(format, args...),
		Table:      table,
		Constraint: constraint,
	}
}

func typeErrorf(table, column, format string, args ...any) *Error {
	return &Error{
		Code:    CodeTypeError,
		Message: fmt.Sprintf(format, args...),
		Table:   table,
		Column:  column,
	}
}

func referentialBlockf(table, constraint, format string, args ...any) *Error {
	return &Error{
		Code:       CodeReferentialBlock,
		Message:    fmt.Sprintf(format, args...),
		Table:      table,
		Constraint: constraint,
	}
}

func unknownTable(name string) *Error {
	return &Error{
		Code:    CodeUnknownTable,
		Message: "table does not exist",
		Table:   name,
	}
}
