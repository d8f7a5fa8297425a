package memory

import (
	"context"
	"sort"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type offerRepository struct {
	s *Store
}

var _ repository.OfferRepository = (*offerRepository)(nil)

func (r *offerRepository) Create(ctx context.Context, offer *domain.TripOffer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.trips[offer.TripID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.offers[offer.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, o := range r.s.offers {
		if o.TripID == offer.TripID && o.DriverID == offer.DriverID {
			return repository.ErrDuplicate
		}
	}

	r.s.offers[offer.ID] = copyOffer(offer)
	r.s.nextSeq(offer.ID)
	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*domain.TripOffer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOffer(o), nil
}

func (r *offerRepository) Update(ctx context.Context, offer *domain.TripOffer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.offers[offer.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored := copyOffer(offer)
	stored.TripID = existing.TripID
	stored.DriverID = existing.DriverID
	stored.CreatedAt = existing.CreatedAt
	r.s.offers[offer.ID] = stored
	return nil
}

func (r *offerRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.TripOffer, error) {
	return r.newestFirst(func(o *domain.TripOffer) bool { return o.TripID == tripID }), nil
}

func (r *offerRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.TripOffer, error) {
	return r.newestFirst(func(o *domain.TripOffer) bool { return o.DriverID == driverID }), nil
}

func (r *offerRepository) RejectOthers(ctx context.Context, tripID, keepID string, at time.Time) (int64, error) {
	return r.reject(func(o *domain.TripOffer) bool {
		return o.TripID == tripID && o.ID != keepID
	}, at), nil
}

func (r *offerRepository) RejectPending(ctx context.Context, tripID string, at time.Time) (int64, error) {
	return r.reject(func(o *domain.TripOffer) bool { return o.TripID == tripID }, at), nil
}

func (r *offerRepository) reject(match func(*domain.TripOffer) bool, at time.Time) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, o := range r.s.offers {
		if o.Status != domain.OfferStatusPending || !match(o) {
			continue
		}
		updated := copyOffer(o)
		updated.Status = domain.OfferStatusRejected
		updated.UpdatedAt = at
		r.s.offers[id] = updated
		n++
	}
	return n
}

func (r *offerRepository) newestFirst(match func(*domain.TripOffer) bool) []*domain.TripOffer {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.TripOffer
	for _, o := range r.s.offers {
		if match(o) {
			out = append(out, copyOffer(o))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.s.seq[out[i].ID] > r.s.seq[out[j].ID]
	})
	return out
}
