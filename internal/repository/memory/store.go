// Package memory is an in-process repository.Store used by tests and local runs.
// Transactions are serialized by a store-wide lock and rolled back by restoring
// a snapshot, which gives the same all-or-nothing behavior as the SQL store.
package memory

import (
	"context"
	"maps"
	"sync"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Store is an in-memory implementation of repository.Store.
type Store struct {
	txMu sync.Mutex

	mu     sync.RWMutex
	trips  map[string]*domain.Trip
	offers map[string]*domain.TripOffer
	fares  map[string]*domain.Fare // keyed by trip ID
	seq    map[string]int64        // insertion order for offers and trips
	next   int64
	index  *pickupIndex
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		trips:  make(map[string]*domain.Trip),
		offers: make(map[string]*domain.TripOffer),
		fares:  make(map[string]*domain.Fare),
		seq:    make(map[string]int64),
		index:  newPickupIndex(),
	}
}

// Repositories returns repositories reading and writing the store directly.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Trips:  &tripRepository{s: s},
		Offers: &offerRepository{s: s},
		Fares:  &fareRepository{s: s},
	}
}

// WithinTx runs fn while holding the transaction lock. Any error restores
// the state captured before fn ran.
func (s *Store) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(s.Repositories())
}

type snapshot struct {
	trips  map[string]*domain.Trip
	offers map[string]*domain.TripOffer
	fares  map[string]*domain.Fare
	seq    map[string]int64
	next   int64
}

// Stored values are never mutated in place, so shallow map copies suffice.
func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return snapshot{
		trips:  maps.Clone(s.trips),
		offers: maps.Clone(s.offers),
		fares:  maps.Clone(s.fares),
		seq:    maps.Clone(s.seq),
		next:   s.next,
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trips = snap.trips
	s.offers = snap.offers
	s.fares = snap.fares
	s.seq = snap.seq
	s.next = snap.next

	s.index = newPickupIndex()
	for _, t := range s.trips {
		s.index.upsert(t)
	}
}

// nextSeq must be called with mu held.
func (s *Store) nextSeq(id string) {
	s.next++
	s.seq[id] = s.next
}

func copyTrip(t *domain.Trip) *domain.Trip {
	cp := *t
	if t.PickupPoint != nil {
		p := *t.PickupPoint
		cp.PickupPoint = &p
	}
	if t.DestinationPoint != nil {
		p := *t.DestinationPoint
		cp.DestinationPoint = &p
	}
	if t.ProposedPrice != nil {
		v := *t.ProposedPrice
		cp.ProposedPrice = &v
	}
	return &cp
}

func copyOffer(o *domain.TripOffer) *domain.TripOffer {
	cp := *o
	return &cp
}

func copyFare(f *domain.Fare) *domain.Fare {
	cp := *f
	return &cp
}
