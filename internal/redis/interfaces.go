package redis

import (
	"context"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/maps"
)

// LockStoreInterface is the per-trip accept lock. An empty token from
// AcquireTripLock means the lock is held elsewhere.
type LockStoreInterface interface {
	AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (token string, err error)
	ReleaseTripLock(ctx context.Context, tripID, token string) error
}

// RouteCacheInterface defines the interface for route caching.
type RouteCacheInterface interface {
	GetRoute(ctx context.Context, origin, destination domain.Point) (*maps.Route, error)
	SetRoute(ctx context.Context, origin, destination domain.Point, route *maps.Route) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface  = (*LockStore)(nil)
	_ RouteCacheInterface = (*RouteCache)(nil)
)
