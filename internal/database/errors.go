package database

import "errors"

// Sentinel errors shared across the recognition and attendance components.
// Callers match them with errors.Is; implementations wrap them with context.
var (
	// ErrNotFound indicates an unknown session, student or record.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate active session for the same course and day.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState indicates an operation on a session that has already ended.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnavailable indicates the descriptor or record store is unreachable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrMalformedInput indicates bad input such as a wrong descriptor
	// dimensionality or a missing image.
	ErrMalformedInput = errors.New("malformed input")
)
