package shared

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness, relationship-state or referential violation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed input local to one field.
	ErrValidation = errors.New("validation failed")
)
