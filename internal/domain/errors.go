package domain

import "errors"

var (
	// ErrNotFound marks lookups for entities that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks operations rejected by the current entity state.
	ErrConflict = errors.New("conflict")
	// ErrInvalid marks malformed input.
	ErrInvalid = errors.New("invalid input")
)
