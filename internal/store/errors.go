package store

import "errors"

// Sentinel errors wrapped by store operations so callers can branch with
// errors.Is without parsing message strings.
var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a uniqueness violation (duplicate phone).
	ErrAlreadyExists = errors.New("already exists")

	// ErrPermissionDenied indicates the record exists but the caller does not
	// own the transition it asked for.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInsufficientFunds indicates a withdrawal larger than the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
