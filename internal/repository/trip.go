package repository

import (
	"context"

	"dispatch/internal/domain"
)

// NearbyTrip is an open trip together with its pickup distance from a search center.
type NearbyTrip struct {
	Trip       *domain.Trip
	DistanceKm float64
}

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByIDForUpdate retrieves a trip and holds an exclusive lock on it
	// until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error)

	// Update updates an existing trip.
	Update(ctx context.Context, trip *domain.Trip) error

	// ListByClient returns the client's trips, newest first.
	ListByClient(ctx context.Context, clientID string) ([]*domain.Trip, error)

	// ListByDriver returns the trips assigned to the driver, newest first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Trip, error)

	// ListRequested returns every REQUESTED trip without a driver.
	ListRequested(ctx context.Context) ([]*domain.Trip, error)

	// FindRequestedWithin returns REQUESTED trips without a driver whose pickup
	// point lies within radiusKm of center, ordered by ascending geodesic distance.
	FindRequestedWithin(ctx context.Context, center domain.Point, radiusKm float64) ([]NearbyTrip, error)
}
