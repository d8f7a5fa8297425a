package service

import (
	"errors"
	"fmt"

	"dispatch/internal/maps"
)

// Error classes. Every error returned by this package wraps exactly one of
// these (or repository.ErrNotFound), so the transport can map by class.
var (
	// ErrValidation marks malformed input. Field detail is carried by *FieldError.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden marks a caller that does not own the entity or lacks the role.
	ErrForbidden = errors.New("forbidden")

	// ErrStateConflict marks an operation that does not fit the current state.
	// The caller must re-read before trying again.
	ErrStateConflict = errors.New("state conflict")

	// ErrProviderUnavailable marks a failed route provider call.
	ErrProviderUnavailable = maps.ErrProviderUnavailable
)

var (
	// ErrClientRoleRequired is returned when a non-client tries to create a trip.
	ErrClientRoleRequired = fmt.Errorf("%w: client role required", ErrForbidden)

	// ErrDriverRoleRequired is returned when a non-driver tries to bid or browse open trips.
	ErrDriverRoleRequired = fmt.Errorf("%w: driver role required", ErrForbidden)

	// ErrNotTripOwner is returned when the caller neither owns the trip nor is an admin.
	ErrNotTripOwner = fmt.Errorf("%w: caller does not own this trip", ErrForbidden)

	// ErrNotTripClient is returned when an action is reserved for the trip's client.
	ErrNotTripClient = fmt.Errorf("%w: only the trip's client may do this", ErrForbidden)

	// ErrNotAssignedDriver is returned when an action is reserved for the assigned driver.
	ErrNotAssignedDriver = fmt.Errorf("%w: only the assigned driver may do this", ErrForbidden)

	// ErrNotOfferOwner is returned when a driver reads another driver's offer.
	ErrNotOfferOwner = fmt.Errorf("%w: caller does not own this offer", ErrForbidden)
)

var (
	// ErrTripNotRequested is returned when the trip has left the REQUESTED state.
	ErrTripNotRequested = fmt.Errorf("%w: trip is not in REQUESTED state", ErrStateConflict)

	// ErrTripNotCancellable is returned when cancelling outside REQUESTED or ACCEPTED.
	ErrTripNotCancellable = fmt.Errorf("%w: trip can only be cancelled while REQUESTED or ACCEPTED", ErrStateConflict)

	// ErrInvalidTransition is returned for any other illegal status change.
	ErrInvalidTransition = fmt.Errorf("%w: transition not allowed from current status", ErrStateConflict)

	// ErrTripClosed is returned when pricing a completed or cancelled trip.
	ErrTripClosed = fmt.Errorf("%w: trip is closed", ErrStateConflict)

	// ErrOfferNotPending is returned when the offer was already accepted or rejected.
	ErrOfferNotPending = fmt.Errorf("%w: offer already processed", ErrStateConflict)

	// ErrDuplicateOffer is returned when the driver already bid on the trip.
	ErrDuplicateOffer = fmt.Errorf("%w: driver already has an offer on this trip", ErrStateConflict)

	// ErrTripBusy is returned when another accept for the same trip is in flight.
	ErrTripBusy = fmt.Errorf("%w: trip is being accepted by another request", ErrStateConflict)
)

// FieldError is a validation failure on a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}
