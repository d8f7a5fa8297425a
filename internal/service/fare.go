package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
)

// FareConfig is the pricing table. It is passed explicitly rather than read
// from globals so tests and deployments can price differently.
type FareConfig struct {
	BaseFares          map[domain.VehicleType]float64
	DefaultVehicleType domain.VehicleType // rate used for unknown vehicle types
	SurchargePerKm     float64
	Currency           string
}

// DefaultFareConfig returns the standard COP pricing.
func DefaultFareConfig() FareConfig {
	return FareConfig{
		BaseFares: map[domain.VehicleType]float64{
			domain.VehicleTypeCar:        7000,
			domain.VehicleTypeMotorcycle: 3000,
		},
		DefaultVehicleType: domain.VehicleTypeCar,
		SurchargePerKm:     2000,
		Currency:           "COP",
	}
}

// Validate checks the table is usable.
func (c FareConfig) Validate() error {
	var errs []error
	if len(c.BaseFares) == 0 {
		errs = append(errs, errors.New("fare: at least one base fare is required"))
	}
	for vt, base := range c.BaseFares {
		if base < 0 || math.IsNaN(base) {
			errs = append(errs, fmt.Errorf("fare: base fare for %s must be >= 0", vt))
		}
	}
	if _, ok := c.BaseFares[c.DefaultVehicleType]; !ok {
		errs = append(errs, fmt.Errorf("fare: default vehicle type %q has no base fare", c.DefaultVehicleType))
	}
	if c.SurchargePerKm < 0 || math.IsNaN(c.SurchargePerKm) {
		errs = append(errs, errors.New("fare: surcharge per km must be >= 0"))
	}
	if c.Currency == "" {
		errs = append(errs, errors.New("fare: currency is required"))
	}
	return errors.Join(errs...)
}

// FareCalculator prices trips from a FareConfig.
type FareCalculator struct {
	cfg FareConfig
}

// NewFareCalculator creates a FareCalculator.
func NewFareCalculator(cfg FareConfig) *FareCalculator {
	return &FareCalculator{cfg: cfg}
}

// Currency returns the configured currency code.
func (c *FareCalculator) Currency() string {
	return c.cfg.Currency
}

// BaseFare returns the base fare for a vehicle type, falling back to the default type's rate.
func (c *FareCalculator) BaseFare(vt domain.VehicleType) float64 {
	if base, ok := c.cfg.BaseFares[vt]; ok {
		return base
	}
	return c.cfg.BaseFares[c.cfg.DefaultVehicleType]
}

// ComputeAmount returns baseFare + distanceKm * surchargePerKm. A non-nil
// baseOverride replaces the vehicle type's base fare.
func (c *FareCalculator) ComputeAmount(vt domain.VehicleType, distanceKm float64, baseOverride *float64) (float64, error) {
	if err := validateDistance(distanceKm); err != nil {
		return 0, err
	}
	base := c.BaseFare(vt)
	if baseOverride != nil {
		if err := validatePrice("proposed_price", *baseOverride); err != nil {
			return 0, err
		}
		base = domain.Round2(*baseOverride)
	}
	return domain.Round2(base + distanceKm*c.cfg.SurchargePerKm), nil
}

// NewFare seeds the fare for a freshly created trip.
func (c *FareCalculator) NewFare(trip *domain.Trip, distanceKm float64) (*domain.Fare, error) {
	if err := validateDistance(distanceKm); err != nil {
		return nil, err
	}
	fare := &domain.Fare{
		ID:             uuid.NewString(),
		TripID:         trip.ID,
		DistanceKm:     domain.Round2(distanceKm),
		SurchargePerKm: c.cfg.SurchargePerKm,
		Currency:       c.cfg.Currency,
		CreatedAt:      trip.CreatedAt,
		UpdatedAt:      trip.CreatedAt,
	}
	c.Reprice(fare, trip)
	return fare, nil
}

// Reprice re-derives the base fare from the trip and recomputes the amount.
// The trip's proposed price, when set, is the base; otherwise the vehicle type's.
func (c *FareCalculator) Reprice(fare *domain.Fare, trip *domain.Trip) {
	fare.BaseFare = c.BaseFare(trip.VehicleType)
	if trip.ProposedPrice != nil {
		fare.BaseFare = domain.Round2(*trip.ProposedPrice)
	}
	fare.Recompute()
}

// SetDistance updates the fare's distance and recomputes it against the trip.
func (c *FareCalculator) SetDistance(fare *domain.Fare, trip *domain.Trip, distanceKm float64, at time.Time) error {
	if err := validateDistance(distanceKm); err != nil {
		return err
	}
	fare.DistanceKm = domain.Round2(distanceKm)
	fare.UpdatedAt = at
	c.Reprice(fare, trip)
	return nil
}

func validateDistance(distanceKm float64) error {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return invalid("distance_km", "must be a finite number >= 0")
	}
	return nil
}

func validatePrice(field string, price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return invalid(field, "must be greater than 0")
	}
	return nil
}
