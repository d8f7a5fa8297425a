package repository

import (
	"context"

	"dispatch/internal/domain"
)

// FareRepository defines the persistence operations for fares.
type FareRepository interface {
	// Create persists a new fare. Returns ErrDuplicate if the trip already has one.
	Create(ctx context.Context, fare *domain.Fare) error

	// GetByTripID retrieves the fare owned by a trip.
	GetByTripID(ctx context.Context, tripID string) (*domain.Fare, error)

	// GetByTripIDs retrieves fares for several trips keyed by trip ID.
	// Trips without a fare are absent from the result.
	GetByTripIDs(ctx context.Context, tripIDs []string) (map[string]*domain.Fare, error)

	// Update updates an existing fare.
	Update(ctx context.Context, fare *domain.Fare) error
}
