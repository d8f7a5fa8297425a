package domain

import "time"

// Fare is the priced record owned by exactly one trip.
type Fare struct {
	ID             string
	TripID         string
	BaseFare       float64
	DistanceKm     float64
	SurchargePerKm float64
	Amount         float64
	Currency       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recompute re-establishes Amount = BaseFare + DistanceKm * SurchargePerKm.
// Every mutation of the three inputs must be followed by a call to Recompute.
func (f *Fare) Recompute() {
	f.Amount = Round2(f.BaseFare + f.DistanceKm*f.SurchargePerKm)
}
