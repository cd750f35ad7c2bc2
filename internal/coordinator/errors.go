package coordinator

import (
	"errors"

	"lifeline/internal/geo"
	"lifeline/internal/store"
)

// The coordinator's error taxonomy. Every store, identity, or geolocation
// failure is recovered at this boundary and turned into one of these kinds;
// raw transport errors never propagate past the coordinator.
var (
	// ErrLocationUnavailable: geolocation denied or unsupported. The operation
	// aborts before any record is created.
	ErrLocationUnavailable = geo.ErrLocationUnavailable

	// ErrStoreUnavailable: transient backend failure on insert, transaction,
	// or delete. Safe to retry the same operation; no partial state is left.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAlreadyTaken: the expected, non-exceptional outcome of a lost accept
	// race. The losing responder falls back to idle or the next offer.
	ErrAlreadyTaken = errors.New("alert already taken")

	// ErrNotAuthenticated: the caller has no verified identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCategory: the requested category is not in the configured set.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrPermissionDenied: the record exists but belongs to someone else.
	ErrPermissionDenied = errors.New("permission denied")
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, store.ErrPermissionDenied)
}
