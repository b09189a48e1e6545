package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound          = errors.New("resource not found")
	ErrFitNotFound       = fmt.Errorf("%w: fit result", ErrNotFound)
	ErrScanNotFound      = fmt.Errorf("%w: scan result", ErrNotFound)
	ErrChannelNotFound   = fmt.Errorf("%w: channel", ErrNotFound)
	ErrParameterNotFound = fmt.Errorf("%w: parameter", ErrNotFound)

	// Validation errors
	ErrBinMismatch       = errors.New("bin count mismatch within channel")
	ErrUnknownPOI        = errors.New("parameter of interest matches no normalization factor")
	ErrUnknownModifier   = errors.New("unknown modifier type")
	ErrEmptyWorkspace    = errors.New("workspace declares no channels")
	ErrObservationOrphan = errors.New("observation references undeclared channel")
	ErrOutOfBounds       = errors.New("value outside declared parameter bounds")

	// Fit errors
	ErrNoConvergence   = errors.New("optimizer failed to converge")
	ErrSingularHessian = errors.New("singular hessian, uncertainties unavailable")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewBinMismatchError(channel string, want, got int) error {
	return fmt.Errorf("%w: channel %s expects %d bins, got %d", ErrBinMismatch, channel, want, got)
}

func NewUnknownPOIError(poi string) error {
	return fmt.Errorf("%w: %q", ErrUnknownPOI, poi)
}

func NewOutOfBoundsError(param string, value, lo, hi float64) error {
	return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrOutOfBounds, param, value, lo, hi)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrBinMismatch) ||
		errors.Is(err, ErrUnknownPOI) ||
		errors.Is(err, ErrUnknownModifier) ||
		errors.Is(err, ErrEmptyWorkspace) ||
		errors.Is(err, ErrObservationOrphan) ||
		errors.Is(err, ErrOutOfBounds)
}

func IsFitError(err error) bool {
	return errors.Is(err, ErrNoConvergence) ||
		errors.Is(err, ErrSingularHessian)
}
