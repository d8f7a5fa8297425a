package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// OfferRepository defines the persistence operations for trip offers.
type OfferRepository interface {
	// Create persists a new offer. Returns ErrDuplicate when the driver
	// already holds an offer on the trip.
	Create(ctx context.Context, offer *domain.TripOffer) error

	// GetByID retrieves an offer by ID.
	GetByID(ctx context.Context, id string) (*domain.TripOffer, error)

	// Update updates an existing offer.
	Update(ctx context.Context, offer *domain.TripOffer) error

	// ListByTrip returns all offers for a trip, most recent first.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.TripOffer, error)

	// ListByDriver returns all offers made by a driver, most recent first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.TripOffer, error)

	// RejectOthers marks every pending offer of the trip except keepID as REJECTED.
	RejectOthers(ctx context.Context, tripID, keepID string, at time.Time) (int64, error)

	// RejectPending marks every pending offer of the trip as REJECTED.
	RejectPending(ctx context.Context, tripID string, at time.Time) (int64, error)
}
