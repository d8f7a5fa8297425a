package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/maps"
	"dispatch/internal/repository"
)

func TestCreateTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.trips.CreateTrip(ctx, client, CreateTripRequest{
		PickupAddress:      "  Calle 1 #2-3 ",
		DestinationAddress: "Carrera 7 #10-20",
		PickupPoint:        &riohacha,
		VehicleType:        domain.VehicleTypeMotorcycle,
		InitialDistanceKm:  2,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TripStatusRequested, detail.Trip.Status)
	assert.Equal(t, client.ID, detail.Trip.ClientID)
	assert.Empty(t, detail.Trip.DriverID)
	assert.Equal(t, "Calle 1 #2-3", detail.Trip.PickupAddress)
	assert.Equal(t, domain.ServiceTypeTrip, detail.Trip.ServiceType)
	assert.Equal(t, 7000.0, detail.Fare.Amount)
	assert.Equal(t, 3000.0, detail.Fare.BaseFare)

	stored, err := f.trips.GetTrip(ctx, client, detail.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.Fare.Amount, stored.Fare.Amount)
	assert.Equal(t, []string{events.TripCreated}, f.publisher.types())
}

func TestCreateTrip_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := CreateTripRequest{
		PickupAddress:      "a",
		DestinationAddress: "b",
		VehicleType:        domain.VehicleTypeCar,
	}

	tests := []struct {
		name  string
		edit  func(r *CreateTripRequest)
		field string
	}{
		{"blank pickup", func(r *CreateTripRequest) { r.PickupAddress = "   " }, "pickup_address"},
		{"missing destination", func(r *CreateTripRequest) { r.DestinationAddress = "" }, "destination_address"},
		{"missing vehicle", func(r *CreateTripRequest) { r.VehicleType = "" }, "vehicle_type"},
		{"unknown vehicle", func(r *CreateTripRequest) { r.VehicleType = "BUS" }, "vehicle_type"},
		{"unknown service", func(r *CreateTripRequest) { r.ServiceType = "FREIGHT" }, "service_type"},
		{"bad pickup point", func(r *CreateTripRequest) { r.PickupPoint = &domain.Point{Lat: 91} }, "pickup_point"},
		{"zero proposed price", func(r *CreateTripRequest) { r.ProposedPrice = ptr(0.0) }, "proposed_price"},
		{"proposed price below a cent", func(r *CreateTripRequest) { r.ProposedPrice = ptr(0.004) }, "proposed_price"},
		{"negative distance", func(r *CreateTripRequest) { r.InitialDistanceKm = -1 }, "distance_km"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.edit(&req)

			_, err := f.trips.CreateTrip(ctx, client, req)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateTrip_RequiresClientRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.trips.CreateTrip(context.Background(), driver, CreateTripRequest{
		PickupAddress:      "a",
		DestinationAddress: "b",
		VehicleType:        domain.VehicleTypeCar,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateTrip_RepricesFare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)

	updated, err := f.trips.UpdateTrip(ctx, client, created.Trip.ID, UpdateTripRequest{
		DestinationAddress: ptr("Avenida Primera"),
		ProposedPrice:      ptr(9000.0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Avenida Primera", updated.Trip.DestinationAddress)
	assert.Equal(t, 9000.0, updated.Fare.BaseFare)
	assert.Equal(t, 9000.0, updated.Fare.Amount)

	detail, err := f.trips.GetTrip(ctx, client, created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, detail.Fare.Amount)
	assert.Equal(t, "Calle 1 #2-3", detail.Trip.PickupAddress, "untouched fields are kept")
}

func TestProposedPrice_RoundedToCents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.trips.CreateTrip(ctx, client, CreateTripRequest{
		PickupAddress:      "a",
		DestinationAddress: "b",
		VehicleType:        domain.VehicleTypeCar,
		ProposedPrice:      ptr(15000.004),
		InitialDistanceKm:  1.5,
	})
	require.NoError(t, err)

	fare := detail.Fare
	assert.Equal(t, 15000.0, *detail.Trip.ProposedPrice)
	assert.Equal(t, 15000.0, fare.BaseFare)
	assert.Equal(t, 18000.0, fare.Amount)
	assert.Equal(t, fare.BaseFare+fare.DistanceKm*fare.SurchargePerKm, fare.Amount)

	updated, err := f.trips.UpdateTrip(ctx, client, detail.Trip.ID, UpdateTripRequest{ProposedPrice: ptr(9000.126)})
	require.NoError(t, err)

	fare = updated.Fare
	assert.Equal(t, 9000.13, *updated.Trip.ProposedPrice)
	assert.Equal(t, 9000.13, fare.BaseFare)
	assert.Equal(t, fare.BaseFare+fare.DistanceKm*fare.SurchargePerKm, fare.Amount)

	stored, err := f.trips.GetTrip(ctx, client, detail.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, fare.Amount, stored.Fare.Amount)
}

func TestUpdateTrip_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)

	_, err := f.trips.UpdateTrip(ctx, client2, created.Trip.ID, UpdateTripRequest{PickupAddress: ptr("x")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.trips.UpdateTrip(ctx, driver, created.Trip.ID, UpdateTripRequest{PickupAddress: ptr("x")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.trips.UpdateTrip(ctx, admin, created.Trip.ID, UpdateTripRequest{PickupAddress: ptr("Admin fix")})
	assert.NoError(t, err)

	_, err = f.trips.UpdateTrip(ctx, client, "missing", UpdateTripRequest{PickupAddress: ptr("x")})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateTrip_OnlyWhileRequested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)
	offer := f.submitOffer(t, driver, created.Trip.ID, 8000)
	_, err := f.offers.AcceptOffer(ctx, client, offer.ID)
	require.NoError(t, err)

	_, err = f.trips.UpdateTrip(ctx, client, created.Trip.ID, UpdateTripRequest{PickupAddress: ptr("x")})
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestCancelTrip_RejectsPendingOffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)
	offer := f.submitOffer(t, driver, created.Trip.ID, 8000)

	trip, err := f.trips.CancelTrip(ctx, client, created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusCancelled, trip.Status)

	got, err := f.offers.GetOffer(ctx, driver, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusRejected, got.Status)

	_, err = f.trips.CancelTrip(ctx, client, created.Trip.ID)
	assert.ErrorIs(t, err, ErrStateConflict, "cancelled is terminal")
}

func TestCancelTrip_AcceptedReleasesDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)
	offer := f.submitOffer(t, driver, created.Trip.ID, 8000)
	_, err := f.offers.AcceptOffer(ctx, client, offer.ID)
	require.NoError(t, err)

	trip, err := f.trips.CancelTrip(ctx, driver, created.Trip.ID)
	require.NoError(t, err, "the assigned driver owns the trip too")
	assert.Equal(t, domain.TripStatusCancelled, trip.Status)
	assert.Empty(t, trip.DriverID)
}

func TestCancelTrip_ForbiddenForStranger(t *testing.T) {
	f := newFixture(t)
	created := f.createTrip(t, client, &riohacha)

	_, err := f.trips.CancelTrip(context.Background(), client2, created.Trip.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStartAndCompleteTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)

	_, err := f.trips.StartTrip(ctx, admin, created.Trip.ID)
	assert.ErrorIs(t, err, ErrStateConflict, "cannot start a REQUESTED trip")

	offer := f.submitOffer(t, driver, created.Trip.ID, 8000)
	_, err = f.offers.AcceptOffer(ctx, client, offer.ID)
	require.NoError(t, err)

	_, err = f.trips.StartTrip(ctx, driver2, created.Trip.ID)
	assert.ErrorIs(t, err, ErrNotAssignedDriver)

	_, err = f.trips.CompleteTrip(ctx, driver, created.Trip.ID)
	assert.ErrorIs(t, err, ErrStateConflict, "cannot complete before starting")

	trip, err := f.trips.StartTrip(ctx, driver, created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusInProgress, trip.Status)

	_, err = f.trips.CancelTrip(ctx, client, created.Trip.ID)
	assert.ErrorIs(t, err, ErrTripNotCancellable)

	trip, err = f.trips.CompleteTrip(ctx, driver, created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TripStatusCompleted, trip.Status)
	assert.Equal(t, driver.ID, trip.DriverID)

	assert.Equal(t, []string{
		events.TripCreated, events.OfferSubmitted, events.OfferAccepted, events.TripStarted, events.TripCompleted,
	}, f.publisher.types())
}

func TestGetTrip_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)

	_, err := f.trips.GetTrip(ctx, client2, created.Trip.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.trips.GetTrip(ctx, admin, created.Trip.ID)
	assert.NoError(t, err)

	_, err = f.trips.GetTrip(ctx, client, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createTrip(t, client, &riohacha)
	second := f.createTrip(t, client, &riohacha)
	f.createTrip(t, client2, &riohacha)

	mine, err := f.trips.ListMine(ctx, client, nil)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.Trip.ID, mine[0].ID, "newest first")
	assert.Equal(t, first.Trip.ID, mine[1].ID)

	open, err := f.trips.ListMine(ctx, driver, nil)
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

func TestRefineFare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)
	f.provider.route = &maps.Route{DistanceMeters: 3456, DurationSeconds: 600}

	fare, err := f.trips.RefineFare(ctx, client, created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.46, fare.DistanceKm)
	assert.Equal(t, 13920.0, fare.Amount)

	detail, err := f.trips.GetTrip(ctx, client, created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 13920.0, detail.Fare.Amount)
}

func TestRefineFare_IgnoresCachedNeighbourRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)
	trip := created.Trip

	// A route cached for a point in the same cell must not price this trip.
	require.NoError(t, f.cache.SetRoute(ctx, *trip.PickupPoint, *trip.DestinationPoint,
		&maps.Route{DistanceMeters: 9999, DurationSeconds: 900}))
	f.provider.route = &maps.Route{DistanceMeters: 3456, DurationSeconds: 600}

	fare, err := f.trips.RefineFare(ctx, client, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.46, fare.DistanceKm)
	assert.Equal(t, int32(1), f.provider.calls.Load())

	cached, err := f.cache.GetRoute(ctx, *trip.PickupPoint, *trip.DestinationPoint)
	require.NoError(t, err)
	assert.Equal(t, 3456.0, cached.DistanceMeters, "fresh route refreshes the cache")
}

func TestRefineFare_ProviderFailureLeavesFare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, client, &riohacha)
	f.provider.err = maps.ErrNoRoute

	_, err := f.trips.RefineFare(ctx, client, created.Trip.ID)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	detail, err := f.trips.GetTrip(ctx, client, created.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Fare.Amount, detail.Fare.Amount)
}

func TestRefineFare_RequiresPoints(t *testing.T) {
	f := newFixture(t)
	created, err := f.trips.CreateTrip(context.Background(), client, CreateTripRequest{
		PickupAddress:      "a",
		DestinationAddress: "b",
		VehicleType:        domain.VehicleTypeCar,
	})
	require.NoError(t, err)

	_, err = f.trips.RefineFare(context.Background(), client, created.Trip.ID)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "pickup_point", fe.Field)
	assert.Zero(t, f.provider.calls.Load())
}
