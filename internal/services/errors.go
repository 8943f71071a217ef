// Package services defines the business logic for the cached product catalog,
// webhook event admission, and the upstream sync call. This file centralizes
// service-level error values so that service methods return them consistently
// and callers can check them with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Validation errors.
var (
	// ErrMissingEventID is returned when a webhook event carries no id, or only
	// whitespace.
	ErrMissingEventID = errors.New("eventId is required")

	// ErrInvalidEventID is returned when an event id exceeds MaxEventIDLen.
	ErrInvalidEventID = errors.New("eventId is too long")

	// ErrInvalidQuery is returned for product queries with non-finite prices.
	ErrInvalidQuery = errors.New("invalid product query")
)

// Dependency errors.
var (
	// ErrStoreUnavailable wraps failures of the catalog database, or of the
	// cache when it cannot be bypassed.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUpstreamUnavailable wraps token issuer and external sync failures,
	// including timeouts.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingEventID) ||
		errors.Is(err, ErrInvalidEventID) ||
		errors.Is(err, ErrInvalidQuery)
}
