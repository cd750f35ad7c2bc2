// Package geo defines the geolocation source contract consumed by the coordinator.
// The actual reading comes from the requester's device; the service only ever sees
// it through the Locator interface.
package geo

import (
	"context"
	"errors"
)

// ErrLocationUnavailable indicates the geolocation source errored or no reading
// was supplied. The coordinator aborts alert creation without writing anything.
var ErrLocationUnavailable = errors.New("location unavailable")

// Position is a one-shot latitude/longitude reading.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator supplies a single position reading or an error.
type Locator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// FixedLocator wraps an already-captured reading, such as the one a client sends
// with its create-alert request.
type FixedLocator struct {
	Position Position
}

// CurrentPosition returns the captured reading.
func (f FixedLocator) CurrentPosition(_ context.Context) (Position, error) {
	return f.Position, nil
}

// NoLocator models a device without a usable geolocation source.
type NoLocator struct{}

// CurrentPosition always fails with ErrLocationUnavailable.
func (NoLocator) CurrentPosition(_ context.Context) (Position, error) {
	return Position{}, ErrLocationUnavailable
}
