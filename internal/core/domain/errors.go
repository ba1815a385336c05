package domain

import (
	"errors"
	"fmt"
)

// Error classes surfaced by the core. Adapters wrap them with %w so callers can use errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoRouteFound       = errors.New("no route found")
)

// PartialLoadError reports a catalog load aborted mid-pagination.
// Loaded stations remain usable.
type PartialLoadError struct {
	Loaded int
	Offset int
	Err    error
}

func (e *PartialLoadError) Error() string {
	return fmt.Sprintf("catalog load aborted at offset %d after %d stations: %v", e.Offset, e.Loaded, e.Err)
}

func (e *PartialLoadError) Unwrap() error {
	return e.Err
}
