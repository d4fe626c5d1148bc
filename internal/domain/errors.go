package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database, or is not in the state the
// operation expects (e.g. finishing a trip that is already closed).
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing vehicle, implausible distance, overlapping trip).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrOpenTripExists is returned when a vehicle already has an open trip.
// It wraps ErrValidation so callers can match either.
var ErrOpenTripExists = fmt.Errorf("%w: vehicle already has an open trip", ErrValidation)

// ErrConflict is returned when a uniquely named resource (e.g. a template name)
// already exists. It wraps ErrValidation.
var ErrConflict = fmt.Errorf("%w: already exists", ErrValidation)

// ErrProviderUnavailable is returned by odometer providers when the upstream
// system timed out or answered with an error. Trip operations never fail on it;
// the odometer resolver treats it as "no reading".
var ErrProviderUnavailable = errors.New("odometer provider unavailable")

// ErrNotConfigured is returned when an integration is called without the
// settings it needs (e.g. Home Assistant base URL or token missing).
var ErrNotConfigured = fmt.Errorf("%w: integration not configured", ErrValidation)
