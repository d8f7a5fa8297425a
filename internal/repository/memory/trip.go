package memory

import (
	"context"
	"sort"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type tripRepository struct {
	s *Store
}

var _ repository.TripRepository = (*tripRepository)(nil)

func (r *tripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.trips[trip.ID]; ok {
		return repository.ErrDuplicate
	}
	stored := copyTrip(trip)
	r.s.trips[trip.ID] = stored
	r.s.nextSeq(trip.ID)
	r.s.index.upsert(stored)
	return nil
}

func (r *tripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTrip(t), nil
}

// GetByIDForUpdate needs no row lock: WithinTx already serializes writers.
func (r *tripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	return r.GetByID(ctx, id)
}

func (r *tripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.trips[trip.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored := copyTrip(trip)
	stored.ClientID = existing.ClientID
	stored.CreatedAt = existing.CreatedAt
	r.s.trips[trip.ID] = stored
	r.s.index.upsert(stored)
	return nil
}

func (r *tripRepository) ListByClient(ctx context.Context, clientID string) ([]*domain.Trip, error) {
	return r.filter(func(t *domain.Trip) bool { return t.ClientID == clientID }, true), nil
}

func (r *tripRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Trip, error) {
	if driverID == "" {
		return nil, nil
	}
	return r.filter(func(t *domain.Trip) bool { return t.DriverID == driverID }, true), nil
}

func (r *tripRepository) ListRequested(ctx context.Context) ([]*domain.Trip, error) {
	return r.filter(func(t *domain.Trip) bool { return t.IsOpen() }, false), nil
}

func (r *tripRepository) FindRequestedWithin(ctx context.Context, center domain.Point, radiusKm float64) ([]repository.NearbyTrip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var nearby []repository.NearbyTrip
	for _, id := range r.s.index.candidates(center, radiusKm) {
		t := r.s.trips[id]
		if t == nil || !t.IsOpen() || t.PickupPoint == nil {
			continue
		}
		d := domain.HaversineKm(center, *t.PickupPoint)
		if d > radiusKm {
			continue
		}
		nearby = append(nearby, repository.NearbyTrip{Trip: copyTrip(t), DistanceKm: d})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].DistanceKm != nearby[j].DistanceKm {
			return nearby[i].DistanceKm < nearby[j].DistanceKm
		}
		return r.s.seq[nearby[i].Trip.ID] < r.s.seq[nearby[j].Trip.ID]
	})
	return nearby, nil
}

// filter returns matching trips ordered by insertion, or newest first when desc is set.
func (r *tripRepository) filter(match func(*domain.Trip) bool, desc bool) []*domain.Trip {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Trip
	for _, t := range r.s.trips {
		if match(t) {
			out = append(out, copyTrip(t))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := r.s.seq[out[i].ID], r.s.seq[out[j].ID]
		if desc {
			return a > b
		}
		return a < b
	})
	return out
}
