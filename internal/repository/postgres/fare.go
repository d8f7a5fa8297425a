package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const fareColumns = `id, trip_id, base_fare, distance_km, surcharge_per_km, amount, currency, created_at, updated_at`

// FareRepository is a PostgreSQL implementation of repository.FareRepository.
type FareRepository struct {
	q Querier
}

// NewFareRepository creates a new PostgreSQL fare repository.
func NewFareRepository(db *sql.DB) *FareRepository {
	return &FareRepository{q: db}
}

// NewFareRepositoryWithTx creates a fare repository using a transaction.
func NewFareRepositoryWithTx(tx *sql.Tx) *FareRepository {
	return &FareRepository{q: tx}
}

// Create persists a new fare.
func (r *FareRepository) Create(ctx context.Context, fare *domain.Fare) error {
	query := `
		INSERT INTO fares (id, trip_id, base_fare, distance_km, surcharge_per_km, amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		fare.ID,
		fare.TripID,
		fare.BaseFare,
		fare.DistanceKm,
		fare.SurchargePerKm,
		fare.Amount,
		fare.Currency,
		fare.CreatedAt,
		fare.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByTripID retrieves the fare owned by a trip.
func (r *FareRepository) GetByTripID(ctx context.Context, tripID string) (*domain.Fare, error) {
	query := `SELECT ` + fareColumns + ` FROM fares WHERE trip_id = $1`

	fare, err := scanFare(r.q.QueryRowContext(ctx, query, tripID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return fare, nil
}

// GetByTripIDs retrieves fares for several trips in one round trip.
func (r *FareRepository) GetByTripIDs(ctx context.Context, tripIDs []string) (map[string]*domain.Fare, error) {
	fares := make(map[string]*domain.Fare, len(tripIDs))
	if len(tripIDs) == 0 {
		return fares, nil
	}

	query := `SELECT ` + fareColumns + ` FROM fares WHERE trip_id = ANY($1)`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(tripIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		fare, err := scanFare(rows)
		if err != nil {
			return nil, err
		}
		fares[fare.TripID] = fare
	}

	return fares, rows.Err()
}

// Update updates an existing fare.
func (r *FareRepository) Update(ctx context.Context, fare *domain.Fare) error {
	query := `
		UPDATE fares
		SET base_fare = $1, distance_km = $2, surcharge_per_km = $3, amount = $4, currency = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := r.q.ExecContext(ctx, query,
		fare.BaseFare,
		fare.DistanceKm,
		fare.SurchargePerKm,
		fare.Amount,
		fare.Currency,
		fare.UpdatedAt,
		fare.ID,
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

func scanFare(row rowScanner) (*domain.Fare, error) {
	var fare domain.Fare
	if err := row.Scan(
		&fare.ID,
		&fare.TripID,
		&fare.BaseFare,
		&fare.DistanceKm,
		&fare.SurchargePerKm,
		&fare.Amount,
		&fare.Currency,
		&fare.CreatedAt,
		&fare.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &fare, nil
}

// Ensure FareRepository implements repository.FareRepository.
var _ repository.FareRepository = (*FareRepository)(nil)
