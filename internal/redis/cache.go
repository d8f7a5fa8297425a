package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
	"dispatch/internal/maps"
)

// RouteCacheTTL bounds how long a resolved route is reused.
const RouteCacheTTL = 10 * time.Minute

// routeHashPrecision of 8 characters is a cell of roughly 38m x 19m.
const routeHashPrecision = 8

const routeCachePrefix = "cache:route:"

// RouteCache stores resolved routes keyed by the geohash cells of both ends.
type RouteCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRouteCache creates a RouteCache. A non-positive ttl uses RouteCacheTTL.
func NewRouteCache(client *redis.Client, ttl time.Duration) *RouteCache {
	if ttl <= 0 {
		ttl = RouteCacheTTL
	}
	return &RouteCache{client: client, ttl: ttl}
}

// RouteKey returns the cache key for a route between two points.
func RouteKey(origin, destination domain.Point) string {
	return routeCachePrefix +
		geohash.EncodeWithPrecision(origin.Lat, origin.Lng, routeHashPrecision) + ":" +
		geohash.EncodeWithPrecision(destination.Lat, destination.Lng, routeHashPrecision)
}

// GetRoute retrieves a route from cache. Returns nil, nil on a miss.
func (c *RouteCache) GetRoute(ctx context.Context, origin, destination domain.Point) (*maps.Route, error) {
	data, err := c.client.Get(ctx, RouteKey(origin, destination)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var route maps.Route
	if err := json.Unmarshal(data, &route); err != nil {
		return nil, err
	}
	return &route, nil
}

// SetRoute stores a route in cache.
func (c *RouteCache) SetRoute(ctx context.Context, origin, destination domain.Point, route *maps.Route) error {
	data, err := json.Marshal(route)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, RouteKey(origin, destination), data, c.ttl).Err()
}
