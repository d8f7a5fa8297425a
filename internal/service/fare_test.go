package service

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

func TestComputeAmount(t *testing.T) {
	calc := NewFareCalculator(DefaultFareConfig())

	tests := []struct {
		name     string
		vt       domain.VehicleType
		km       float64
		override *float64
		want     float64
	}{
		{name: "motorcycle two km", vt: domain.VehicleTypeMotorcycle, km: 2, want: 7000},
		{name: "car zero km", vt: domain.VehicleTypeCar, km: 0, want: 7000},
		{name: "car fractional km", vt: domain.VehicleTypeCar, km: 3.456, want: 13912},
		{name: "unknown type uses car rate", vt: domain.VehicleType("TRUCK"), km: 1, want: 9000},
		{name: "override replaces base", vt: domain.VehicleTypeCar, km: 1, override: ptr(5000.0), want: 7000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.ComputeAmount(tt.vt, tt.km, tt.override)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestComputeAmount_RejectsBadInput(t *testing.T) {
	calc := NewFareCalculator(DefaultFareConfig())

	for _, km := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := calc.ComputeAmount(domain.VehicleTypeCar, km, nil)
		assert.ErrorIs(t, err, ErrValidation, "distance %v", km)
	}

	_, err := calc.ComputeAmount(domain.VehicleTypeCar, 1, ptr(0.0))
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "proposed_price", fe.Field)
}

func TestNewFare_UsesProposedPriceAsBase(t *testing.T) {
	calc := NewFareCalculator(DefaultFareConfig())
	trip := &domain.Trip{
		ID:            "t1",
		VehicleType:   domain.VehicleTypeMotorcycle,
		ProposedPrice: ptr(4500.0),
		CreatedAt:     time.Now(),
	}

	fare, err := calc.NewFare(trip, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 4500.0, fare.BaseFare)
	assert.Equal(t, 7500.0, fare.Amount)
	assert.Equal(t, "COP", fare.Currency)
	assert.Equal(t, "t1", fare.TripID)
}

func TestSetDistance_KeepsAmountInSync(t *testing.T) {
	calc := NewFareCalculator(DefaultFareConfig())
	trip := &domain.Trip{ID: "t1", VehicleType: domain.VehicleTypeCar, CreatedAt: time.Now()}

	fare, err := calc.NewFare(trip, 0)
	require.NoError(t, err)
	require.Equal(t, 7000.0, fare.Amount)

	require.NoError(t, calc.SetDistance(fare, trip, 4.25, time.Now()))
	assert.Equal(t, 4.25, fare.DistanceKm)
	assert.Equal(t, 15500.0, fare.Amount)

	assert.ErrorIs(t, calc.SetDistance(fare, trip, -2, time.Now()), ErrValidation)
	assert.Equal(t, 15500.0, fare.Amount, "failed update must leave the fare untouched")
}

func TestFareConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultFareConfig().Validate())

	cfg := DefaultFareConfig()
	cfg.Currency = ""
	cfg.SurchargePerKm = -1
	cfg.DefaultVehicleType = "BUS"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currency")
	assert.Contains(t, err.Error(), "surcharge")
	assert.Contains(t, err.Error(), "BUS")
}
