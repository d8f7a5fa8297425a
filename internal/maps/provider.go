// Package maps turns two coordinates into a driving route using an external
// directions provider.
package maps

import (
	"context"
	"errors"
	"fmt"

	gmaps "googlemaps.github.io/maps"

	"dispatch/internal/domain"
)

var (
	// ErrProviderUnavailable is returned for network failures, non-success
	// responses, and empty route results. Callers decide whether to retry.
	ErrProviderUnavailable = errors.New("route provider unavailable")

	// ErrNoRoute is returned when the provider answers without any route.
	ErrNoRoute = fmt.Errorf("%w: no route found", ErrProviderUnavailable)
)

// Route is a driving route between two points.
type Route struct {
	DistanceMeters  float64        `json:"distance_meters"`
	DurationSeconds float64        `json:"duration_seconds"`
	EncodedPolyline string         `json:"encoded_polyline"`
	Geometry        []domain.Point `json:"geometry"`
}

// DistanceKm returns the route length in kilometers, rounded to two decimals.
func (r *Route) DistanceKm() float64 {
	return domain.Round2(r.DistanceMeters / 1000)
}

// DurationMinutes returns the route duration in minutes, rounded to two decimals.
func (r *Route) DurationMinutes() float64 {
	return domain.Round2(r.DurationSeconds / 60)
}

// Provider resolves a driving route. Implementations make a single attempt
// bounded by their own timeout and never substitute an estimate on failure.
type Provider interface {
	GetRoute(ctx context.Context, origin, destination domain.Point) (*Route, error)
}

// DecodePolyline decodes a precision-5 encoded polyline into points.
func DecodePolyline(encoded string) ([]domain.Point, error) {
	if encoded == "" {
		return nil, nil
	}
	latLngs, err := gmaps.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	points := make([]domain.Point, len(latLngs))
	for i, ll := range latLngs {
		points[i] = domain.Point{Lat: ll.Lat, Lng: ll.Lng}
	}
	return points, nil
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, fmt.Sprintf(format, args...))
}
