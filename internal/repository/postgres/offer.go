package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const offerColumns = `id, trip_id, driver_id, offered_price, estimated_arrival_minutes, status, created_at, updated_at`

// OfferRepository is a PostgreSQL implementation of repository.OfferRepository.
type OfferRepository struct {
	q Querier
}

// NewOfferRepository creates a new PostgreSQL offer repository.
func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{q: db}
}

// NewOfferRepositoryWithTx creates an offer repository using a transaction.
func NewOfferRepositoryWithTx(tx *sql.Tx) *OfferRepository {
	return &OfferRepository{q: tx}
}

// Create inserts the offer; the (trip_id, driver_id) unique constraint
// turns a concurrent second bid into repository.ErrDuplicate.
func (r *OfferRepository) Create(ctx context.Context, offer *domain.TripOffer) error {
	query := `
		INSERT INTO trip_offers (id, trip_id, driver_id, offered_price, estimated_arrival_minutes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		offer.ID,
		offer.TripID,
		offer.DriverID,
		offer.OfferedPrice,
		offer.EstimatedArrivalMinutes,
		offer.Status,
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves an offer by ID.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*domain.TripOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM trip_offers WHERE id = $1`

	offer, err := scanOffer(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return offer, nil
}

// Update updates an existing offer.
func (r *OfferRepository) Update(ctx context.Context, offer *domain.TripOffer) error {
	query := `
		UPDATE trip_offers
		SET offered_price = $1, estimated_arrival_minutes = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		offer.OfferedPrice,
		offer.EstimatedArrivalMinutes,
		offer.Status,
		offer.UpdatedAt,
		offer.ID,
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

// ListByTrip returns all offers for a trip, most recent first.
func (r *OfferRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.TripOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM trip_offers WHERE trip_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, tripID)
}

// ListByDriver returns all offers made by a driver, most recent first.
func (r *OfferRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.TripOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM trip_offers WHERE driver_id = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, driverID)
}

// RejectOthers rejects every pending offer of the trip except keepID.
func (r *OfferRepository) RejectOthers(ctx context.Context, tripID, keepID string, at time.Time) (int64, error) {
	query := `
		UPDATE trip_offers
		SET status = $1, updated_at = $2
		WHERE trip_id = $3 AND id <> $4 AND status = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.OfferStatusRejected, at, tripID, keepID, domain.OfferStatusPending)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RejectPending rejects every pending offer of the trip.
func (r *OfferRepository) RejectPending(ctx context.Context, tripID string, at time.Time) (int64, error) {
	query := `
		UPDATE trip_offers
		SET status = $1, updated_at = $2
		WHERE trip_id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.OfferStatusRejected, at, tripID, domain.OfferStatusPending)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OfferRepository) list(ctx context.Context, query string, args ...any) ([]*domain.TripOffer, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*domain.TripOffer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}

	return offers, rows.Err()
}

func scanOffer(row rowScanner) (*domain.TripOffer, error) {
	var offer domain.TripOffer
	if err := row.Scan(
		&offer.ID,
		&offer.TripID,
		&offer.DriverID,
		&offer.OfferedPrice,
		&offer.EstimatedArrivalMinutes,
		&offer.Status,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &offer, nil
}

// Ensure OfferRepository implements repository.OfferRepository.
var _ repository.OfferRepository = (*OfferRepository)(nil)
