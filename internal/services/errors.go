// Package services defines the business logic orchestrating the booking
// repository, cache, and perf monitor. This file centralizes the error
// taxonomy so that service methods return consistent, checkable errors and
// callers can translate them into user-facing results.
//
// The taxonomy:
//   - *ValidationError: caller input malformed; the request never reached
//     storage.
//   - ErrNotFound: the record is absent or belongs to another tenant. The
//     two cases are deliberately indistinguishable so error messages cannot
//     be used to probe other tenants' data.
//   - ErrVersionConflict: an optimistic-lock mismatch; the caller should
//     re-read and retry. Not fatal, and never retried automatically here.
//   - *StorageError: the underlying store failed; wraps the cause.
package services

import (
	"errors"
	"strings"
)

// ErrNotFound indicates that the requested booking does not exist or is
// not accessible to the given owner.
var ErrNotFound = errors.New("booking not found")

// ErrVersionConflict indicates that the optimistic-lock token supplied by
// the caller no longer matches the stored row: another writer committed in
// between. Re-read and retry.
var ErrVersionConflict = errors.New("booking was modified concurrently")

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field-level failure for a request, so
// callers can report all problems at once instead of one per round trip.
type ValidationError struct {
	Fields []FieldError
}

// Error renders the failures as "validation failed: field: message; ...".
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed")
	for i, f := range e.Fields {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		sb.WriteString(f.Field)
		sb.WriteString(": ")
		sb.WriteString(f.Message)
	}
	return sb.String()
}

// add appends a field failure.
func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// ok reports whether no failures were collected.
func (e *ValidationError) ok() bool { return len(e.Fields) == 0 }

// StorageError wraps a failure of the underlying store. Op names the
// operation that failed; Err is the driver/ORM cause, reachable through
// errors.Is / errors.As.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

// Unwrap exposes the underlying cause.
func (e *StorageError) Unwrap() error { return e.Err }

// storage wraps err into a *StorageError for op.
func storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
