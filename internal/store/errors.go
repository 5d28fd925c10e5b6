package store

import "errors"

// Predefined errors for the store layer.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate indicates a uniqueness violation, e.g., a receipt whose
	// fingerprint already exists.
	ErrDuplicate = errors.New("duplicate resource")

	// ErrConflict indicates a state conflict, e.g., a status transition whose
	// precondition no longer holds.
	ErrConflict = errors.New("conflict")
)
