package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/maps"
)

func TestEstimate(t *testing.T) {
	f := newFixture(t)
	f.provider.route = &maps.Route{
		DistanceMeters:  2000,
		DurationSeconds: 450,
		EncodedPolyline: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
	}
	origin := riohacha
	dest := domain.Point{Lat: 11.53, Lng: -72.92}

	est, err := f.routes.Estimate(context.Background(), client, EstimateRequest{
		Origin:      &origin,
		Destination: &dest,
		VehicleType: domain.VehicleTypeMotorcycle,
	})
	require.NoError(t, err)
	assert.Equal(t, 7000.0, est.EstimatedPrice)
	assert.Equal(t, 2.0, est.DistanceKm)
	assert.Equal(t, 7.5, est.DurationMinutes)
	assert.Equal(t, "COP", est.Currency)
	assert.Equal(t, domain.VehicleTypeMotorcycle, est.VehicleType)
	require.Len(t, est.Geometry, 3)
	assert.InDelta(t, 38.5, est.Geometry[0].Lat, 1e-6)
	assert.InDelta(t, -120.2, est.Geometry[0].Lng, 1e-6)
}

func TestEstimate_VehicleTypeDefaults(t *testing.T) {
	f := newFixture(t)
	origin, dest := riohacha, domain.Point{Lat: 11.53, Lng: -72.92}

	est, err := f.routes.Estimate(context.Background(), client, EstimateRequest{Origin: &origin, Destination: &dest})
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleTypeCar, est.VehicleType)
	assert.Equal(t, 11000.0, est.EstimatedPrice)

	moto := domain.Caller{ID: "d", Role: domain.RoleDriver, ActiveVehicleType: domain.VehicleTypeMotorcycle}
	est, err = f.routes.Estimate(context.Background(), moto, EstimateRequest{Origin: &origin, Destination: &dest})
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleTypeMotorcycle, est.VehicleType)
}

func TestEstimate_Validation(t *testing.T) {
	f := newFixture(t)
	ok := riohacha
	bad := domain.Point{Lat: 0, Lng: 200}

	tests := []struct {
		name  string
		req   EstimateRequest
		field string
	}{
		{"missing origin", EstimateRequest{Destination: &ok}, "origin"},
		{"missing destination", EstimateRequest{Origin: &ok}, "destination"},
		{"bad destination", EstimateRequest{Origin: &ok, Destination: &bad}, "destination"},
		{"bad vehicle", EstimateRequest{Origin: &ok, Destination: &ok, VehicleType: "BUS"}, "vehicle_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.routes.Estimate(context.Background(), client, tt.req)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
	assert.Zero(t, f.provider.calls.Load())
}

func TestEstimate_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.err = fmt.Errorf("%w: status 502", maps.ErrProviderUnavailable)
	origin, dest := riohacha, domain.Point{Lat: 11.53, Lng: -72.92}

	_, err := f.routes.Estimate(context.Background(), client, EstimateRequest{Origin: &origin, Destination: &dest})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRoute_UsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	origin, dest := riohacha, domain.Point{Lat: 11.53, Lng: -72.92}

	first, err := f.routes.Route(ctx, origin, dest)
	require.NoError(t, err)
	second, err := f.routes.Route(ctx, origin, dest)
	require.NoError(t, err)

	assert.Equal(t, first.DistanceMeters, second.DistanceMeters)
	assert.Equal(t, int32(1), f.provider.calls.Load())
}

func TestRoute_CacheErrorFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.cache.readErr = errors.New("redis down")

	route, err := f.routes.Route(context.Background(), riohacha, domain.Point{Lat: 11.53, Lng: -72.92})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, route.DistanceMeters)
	assert.Equal(t, int32(1), f.provider.calls.Load())
}

func TestRoute_NoProvider(t *testing.T) {
	svc := NewRouteService(nil, nil, NewFareCalculator(DefaultFareConfig()), nil)

	_, err := svc.Route(context.Background(), riohacha, riohacha)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
