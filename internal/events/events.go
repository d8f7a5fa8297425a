// Package events publishes trip lifecycle facts after their transaction commits.
// Downstream systems such as notifications or identity subscribe to them
// instead of hooking into persistence.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TripCreated    = "trip.created"
	TripUpdated    = "trip.updated"
	TripCancelled  = "trip.cancelled"
	TripStarted    = "trip.started"
	TripCompleted  = "trip.completed"
	FareRefined    = "fare.refined"
	OfferSubmitted = "offer.submitted"
	OfferAccepted  = "offer.accepted"
)

// Event is a committed state change.
type Event struct {
	Type       string    `json:"type"`
	TripID     string    `json:"trip_id"`
	OfferID    string    `json:"offer_id,omitempty"`
	ClientID   string    `json:"client_id,omitempty"`
	DriverID   string    `json:"driver_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Publishing never affects the committed state,
// so callers log failures instead of returning them.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}
