package domain

import "time"

// OfferStatus represents the current status of a trip offer.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusRejected OfferStatus = "REJECTED"
)

// TripOffer is one driver's bid on one trip.
type TripOffer struct {
	ID                      string
	TripID                  string
	DriverID                string
	OfferedPrice            float64
	EstimatedArrivalMinutes int
	Status                  OfferStatus
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// OwnerIdentities returns the bidding driver.
func (o *TripOffer) OwnerIdentities() []string {
	return []string{o.DriverID}
}
