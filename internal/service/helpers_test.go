package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/maps"
	"dispatch/internal/repository/memory"
)

var (
	client  = domain.Caller{ID: "client-1", Role: domain.RoleClient}
	client2 = domain.Caller{ID: "client-2", Role: domain.RoleClient}
	driver  = domain.Caller{ID: "driver-1", Role: domain.RoleDriver, ActiveVehicleType: domain.VehicleTypeCar}
	driver2 = domain.Caller{ID: "driver-2", Role: domain.RoleDriver}
	admin   = domain.Caller{ID: "admin-1", Role: domain.RoleAdmin}

	riohacha = domain.Point{Lat: 11.5444, Lng: -72.9072}
)

// fixture wires every service against one in-memory store.
type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	provider  *fakeProvider
	cache     *fakeRouteCache
	locks     *mockLockStore
	fares     *FareCalculator
	matching  *MatchingService
	routes    *RouteService
	trips     *TripService
	offers    *OfferService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:     memory.NewStore(),
		publisher: &recordingPublisher{},
		provider:  &fakeProvider{route: &maps.Route{DistanceMeters: 2000, DurationSeconds: 300}},
		cache:     newFakeRouteCache(),
		locks:     newMockLockStore(),
		fares:     NewFareCalculator(DefaultFareConfig()),
	}
	f.matching = NewMatchingService(f.store, DefaultSearchRadiusKm, logger)
	f.routes = NewRouteService(f.provider, f.cache, f.fares, logger)
	f.trips = NewTripService(f.store, f.fares, f.matching, f.routes, f.publisher, logger)
	f.offers = NewOfferService(f.store, f.locks, f.publisher, logger)
	return f
}

func (f *fixture) createTrip(t *testing.T, caller domain.Caller, pickup *domain.Point) *TripDetail {
	t.Helper()

	dest := domain.Point{Lat: 11.5300, Lng: -72.9200}
	detail, err := f.trips.CreateTrip(context.Background(), caller, CreateTripRequest{
		PickupAddress:      "Calle 1 #2-3",
		DestinationAddress: "Carrera 7 #10-20",
		PickupPoint:        pickup,
		DestinationPoint:   &dest,
		VehicleType:        domain.VehicleTypeCar,
	})
	require.NoError(t, err)
	return detail
}

func (f *fixture) submitOffer(t *testing.T, caller domain.Caller, tripID string, price float64) *domain.TripOffer {
	t.Helper()

	offer, err := f.offers.SubmitOffer(context.Background(), caller, SubmitOfferRequest{
		TripID:     tripID,
		Price:      price,
		EtaMinutes: 5,
	})
	require.NoError(t, err)
	return offer
}

func ptr[T any](v T) *T {
	return &v
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeProvider struct {
	route *maps.Route
	err   error
	calls atomic.Int32
}

func (p *fakeProvider) GetRoute(ctx context.Context, origin, destination domain.Point) (*maps.Route, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	r := *p.route
	return &r, nil
}

type fakeRouteCache struct {
	mu      sync.Mutex
	routes  map[[2]domain.Point]*maps.Route
	readErr error
}

func newFakeRouteCache() *fakeRouteCache {
	return &fakeRouteCache{routes: make(map[[2]domain.Point]*maps.Route)}
}

func (c *fakeRouteCache) GetRoute(ctx context.Context, origin, destination domain.Point) (*maps.Route, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.routes[[2]domain.Point{origin, destination}], nil
}

func (c *fakeRouteCache) SetRoute(ctx context.Context, origin, destination domain.Point, route *maps.Route) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[[2]domain.Point{origin, destination}] = route
	return nil
}

// mockLockStore mimics the Redis SetNX lock with expiry.
type mockLockStore struct {
	mu    sync.Mutex
	locks map[string]lockEntry

	acquireCalls atomic.Int32
	releaseCalls atomic.Int32

	acquireErr   error
	forceFailure bool
}

type lockEntry struct {
	token  string
	expiry time.Time
}

func newMockLockStore() *mockLockStore {
	return &mockLockStore{locks: make(map[string]lockEntry)}
}

func (m *mockLockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (string, error) {
	n := m.acquireCalls.Add(1)
	if m.acquireErr != nil {
		return "", m.acquireErr
	}
	if m.forceFailure {
		return "", nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:trip:" + tripID
	if e, ok := m.locks[key]; ok && time.Now().Before(e.expiry) {
		return "", nil
	}
	token := fmt.Sprintf("token-%d", n)
	m.locks[key] = lockEntry{token: token, expiry: time.Now().Add(ttl)}
	return token, nil
}

func (m *mockLockStore) ReleaseTripLock(ctx context.Context, tripID, token string) error {
	m.releaseCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "lock:trip:" + tripID
	if e, ok := m.locks[key]; ok && e.token == token {
		delete(m.locks, key)
	}
	return nil
}

func (m *mockLockStore) isLocked(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks["lock:trip:"+tripID]
	return ok && time.Now().Before(e.expiry)
}
