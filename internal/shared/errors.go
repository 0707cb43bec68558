package shared

import "errors"

var (
	// ErrNotFound indicates a referenced record is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation, typically a duplicate document number.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition occurs when a status edge is not in the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnauthorized indicates the supervisor credential did not match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest indicates missing guard input or malformed amount/line data.
	ErrBadRequest = errors.New("bad request")
	// ErrRenderFailure indicates document generation could not complete.
	ErrRenderFailure = errors.New("render failure")
)
