package service

import (
	"context"
	"fmt"
	"log/slog"

	"dispatch/internal/domain"
	"dispatch/internal/maps"
	"dispatch/internal/observability"
	"dispatch/internal/redis"
)

// RouteService resolves driving routes and prices them.
type RouteService struct {
	provider maps.Provider
	cache    redis.RouteCacheInterface
	fares    *FareCalculator
	logger   *slog.Logger
}

// NewRouteService creates a new RouteService. cache may be nil.
func NewRouteService(provider maps.Provider, cache redis.RouteCacheInterface, fares *FareCalculator, logger *slog.Logger) *RouteService {
	return &RouteService{
		provider: provider,
		cache:    cache,
		fares:    fares,
		logger:   loggerOrDefault(logger),
	}
}

// Route returns the driving route between two points, from cache when possible.
// Cache failures are logged and the provider is asked instead.
func (s *RouteService) Route(ctx context.Context, origin, destination domain.Point) (*maps.Route, error) {
	if s.cache != nil {
		cached, err := s.cache.GetRoute(ctx, origin, destination)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "route cache read failed", slog.Any("error", err))
			observability.RouteCacheTotal.WithLabelValues("error").Inc()
		case cached != nil:
			observability.RouteCacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			observability.RouteCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	return s.ExactRoute(ctx, origin, destination)
}

// ExactRoute asks the provider for the route between exactly these points.
// Cache entries are shared by every point in a geohash cell, so the cache is
// written but not read here. Persisted fares use this instead of Route.
func (s *RouteService) ExactRoute(ctx context.Context, origin, destination domain.Point) (*maps.Route, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no route provider configured", ErrProviderUnavailable)
	}

	route, err := s.provider.GetRoute(ctx, origin, destination)
	if err != nil {
		s.logger.WarnContext(ctx, "route lookup failed", slog.Any("error", err))
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRoute(ctx, origin, destination, route); err != nil {
			s.logger.WarnContext(ctx, "route cache write failed", slog.Any("error", err))
		}
	}
	return route, nil
}

// EstimateRequest contains the parameters for a price estimate.
type EstimateRequest struct {
	Origin      *domain.Point
	Destination *domain.Point
	VehicleType domain.VehicleType // defaults to the caller's active vehicle, then CAR
}

// Estimate is a priced route.
type Estimate struct {
	EstimatedPrice  float64
	DistanceKm      float64
	DurationMinutes float64
	Currency        string
	VehicleType     domain.VehicleType
	EncodedPolyline string
	Geometry        []domain.Point
}

// Estimate prices the driving route between two points without persisting anything.
func (s *RouteService) Estimate(ctx context.Context, caller domain.Caller, req EstimateRequest) (*Estimate, error) {
	if req.Origin == nil {
		return nil, invalid("origin", "is required")
	}
	if req.Destination == nil {
		return nil, invalid("destination", "is required")
	}
	if err := validatePoint("origin", req.Origin); err != nil {
		return nil, err
	}
	if err := validatePoint("destination", req.Destination); err != nil {
		return nil, err
	}

	vt := req.VehicleType
	if vt == "" {
		vt = caller.ActiveVehicleType
	}
	if vt == "" {
		vt = domain.VehicleTypeCar
	}
	if !vt.Valid() {
		return nil, invalid("vehicle_type", "must be CAR or MOTORCYCLE")
	}

	route, err := s.Route(ctx, *req.Origin, *req.Destination)
	if err != nil {
		return nil, err
	}

	distanceKm := route.DistanceKm()
	price, err := s.fares.ComputeAmount(vt, distanceKm, nil)
	if err != nil {
		return nil, err
	}

	geometry := route.Geometry
	if len(geometry) == 0 && route.EncodedPolyline != "" {
		decoded, err := maps.DecodePolyline(route.EncodedPolyline)
		if err != nil {
			s.logger.WarnContext(ctx, "route polyline could not be decoded", slog.Any("error", err))
		} else {
			geometry = decoded
		}
	}

	return &Estimate{
		EstimatedPrice:  price,
		DistanceKm:      distanceKm,
		DurationMinutes: route.DurationMinutes(),
		Currency:        s.fares.Currency(),
		VehicleType:     vt,
		EncodedPolyline: route.EncodedPolyline,
		Geometry:        geometry,
	}, nil
}
