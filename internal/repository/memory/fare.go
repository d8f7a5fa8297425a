package memory

import (
	"context"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type fareRepository struct {
	s *Store
}

var _ repository.FareRepository = (*fareRepository)(nil)

func (r *fareRepository) Create(ctx context.Context, fare *domain.Fare) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.trips[fare.TripID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.fares[fare.TripID]; ok {
		return repository.ErrDuplicate
	}
	r.s.fares[fare.TripID] = copyFare(fare)
	return nil
}

func (r *fareRepository) GetByTripID(ctx context.Context, tripID string) (*domain.Fare, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.fares[tripID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyFare(f), nil
}

func (r *fareRepository) GetByTripIDs(ctx context.Context, tripIDs []string) (map[string]*domain.Fare, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]*domain.Fare, len(tripIDs))
	for _, id := range tripIDs {
		if f, ok := r.s.fares[id]; ok {
			out[id] = copyFare(f)
		}
	}
	return out, nil
}

func (r *fareRepository) Update(ctx context.Context, fare *domain.Fare) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.fares[fare.TripID]
	if !ok || existing.ID != fare.ID {
		return repository.ErrNotFound
	}
	stored := copyFare(fare)
	stored.CreatedAt = existing.CreatedAt
	r.s.fares[fare.TripID] = stored
	return nil
}
