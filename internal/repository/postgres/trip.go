package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Points are stored as geography(Point, 4326); ST_MakePoint takes (lng, lat).
const tripColumns = `
	id, client_id, driver_id, pickup_address, destination_address,
	ST_Y(pickup_point::geometry), ST_X(pickup_point::geometry),
	ST_Y(destination_point::geometry), ST_X(destination_point::geometry),
	vehicle_type, service_type, status, proposed_price, created_at, updated_at`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (
			id, client_id, driver_id, pickup_address, destination_address,
			pickup_point, destination_point,
			vehicle_type, service_type, status, proposed_price, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5,
			ST_SetSRID(ST_MakePoint($6::float8, $7::float8), 4326)::geography,
			ST_SetSRID(ST_MakePoint($8::float8, $9::float8), 4326)::geography,
			$10, $11, $12, $13, $14, $15
		)
	`

	pickupLng, pickupLat := pointArgs(trip.PickupPoint)
	destLng, destLat := pointArgs(trip.DestinationPoint)

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.ClientID,
		nullString(trip.DriverID),
		trip.PickupAddress,
		trip.DestinationAddress,
		pickupLng, pickupLat,
		destLng, destLat,
		trip.VehicleType,
		trip.ServiceType,
		trip.Status,
		nullFloat(trip.ProposedPrice),
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a trip and locks its row for the rest of the transaction.
func (r *TripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *TripRepository) getOne(ctx context.Context, query string, id string) (*domain.Trip, error) {
	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

// Update updates an existing trip. The client reference is immutable and never written.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE trips
		SET driver_id = $1,
			pickup_address = $2,
			destination_address = $3,
			pickup_point = ST_SetSRID(ST_MakePoint($4::float8, $5::float8), 4326)::geography,
			destination_point = ST_SetSRID(ST_MakePoint($6::float8, $7::float8), 4326)::geography,
			vehicle_type = $8,
			service_type = $9,
			status = $10,
			proposed_price = $11,
			updated_at = $12
		WHERE id = $13
	`

	pickupLng, pickupLat := pointArgs(trip.PickupPoint)
	destLng, destLat := pointArgs(trip.DestinationPoint)

	result, err := r.q.ExecContext(ctx, query,
		nullString(trip.DriverID),
		trip.PickupAddress,
		trip.DestinationAddress,
		pickupLng, pickupLat,
		destLng, destLat,
		trip.VehicleType,
		trip.ServiceType,
		trip.Status,
		nullFloat(trip.ProposedPrice),
		trip.UpdatedAt,
		trip.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByClient returns the client's trips, newest first.
func (r *TripRepository) ListByClient(ctx context.Context, clientID string) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE client_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, clientID)
}

// ListByDriver returns the trips assigned to the driver, newest first.
func (r *TripRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE driver_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, driverID)
}

// ListRequested returns every REQUESTED trip without a driver.
func (r *TripRepository) ListRequested(ctx context.Context) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE status = $1 AND driver_id IS NULL ORDER BY created_at`
	return r.list(ctx, query, domain.TripStatusRequested)
}

// FindRequestedWithin uses the geography type so ST_DWithin and ST_Distance
// measure on the spheroid rather than in degrees.
func (r *TripRepository) FindRequestedWithin(ctx context.Context, center domain.Point, radiusKm float64) ([]repository.NearbyTrip, error) {
	query := `
		WITH origin AS (
			SELECT ST_SetSRID(ST_MakePoint($1::float8, $2::float8), 4326)::geography AS g
		)
		SELECT ` + tripColumns + `, ST_Distance(pickup_point, origin.g) / 1000.0 AS distance_km
		FROM trips, origin
		WHERE status = $3
			AND driver_id IS NULL
			AND pickup_point IS NOT NULL
			AND ST_DWithin(pickup_point, origin.g, $4)
		ORDER BY distance_km ASC, created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, center.Lng, center.Lat, domain.TripStatusRequested, radiusKm*1000)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nearby []repository.NearbyTrip
	for rows.Next() {
		var distanceKm float64
		trip, err := scanTrip(rows, &distanceKm)
		if err != nil {
			return nil, err
		}
		nearby = append(nearby, repository.NearbyTrip{Trip: trip, DistanceKm: distanceKm})
	}

	return nearby, rows.Err()
}

func (r *TripRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Trip, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// scanTrip scans tripColumns followed by any extra destinations.
func scanTrip(row rowScanner, extra ...any) (*domain.Trip, error) {
	var trip domain.Trip
	var driverID sql.NullString
	var pickupLat, pickupLng, destLat, destLng sql.NullFloat64
	var proposedPrice sql.NullFloat64

	dest := []any{
		&trip.ID,
		&trip.ClientID,
		&driverID,
		&trip.PickupAddress,
		&trip.DestinationAddress,
		&pickupLat, &pickupLng,
		&destLat, &destLng,
		&trip.VehicleType,
		&trip.ServiceType,
		&trip.Status,
		&proposedPrice,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	trip.DriverID = driverID.String
	trip.PickupPoint = pointFrom(pickupLat, pickupLng)
	trip.DestinationPoint = pointFrom(destLat, destLng)
	if proposedPrice.Valid {
		price := proposedPrice.Float64
		trip.ProposedPrice = &price
	}

	return &trip, nil
}

func pointArgs(p *domain.Point) (lng, lat sql.NullFloat64) {
	if p == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Lng, Valid: true}, sql.NullFloat64{Float64: p.Lat, Valid: true}
}

func pointFrom(lat, lng sql.NullFloat64) *domain.Point {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.Point{Lat: lat.Float64, Lng: lng.Float64}
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
