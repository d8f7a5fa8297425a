package repository

import "context"

// Repositories groups the repositories that share one connection or transaction.
type Repositories struct {
	Trips  TripRepository
	Offers OfferRepository
	Fares  FareRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	// Repositories returns non-transactional repositories for plain reads.
	Repositories() Repositories

	// WithinTx runs fn against transaction-scoped repositories. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
