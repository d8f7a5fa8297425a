package domain

import "time"

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusRequested  TripStatus = "REQUESTED"
	TripStatusAccepted   TripStatus = "ACCEPTED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// AllowedTransitions lists every legal status change. Terminal states have no entry.
var AllowedTransitions = map[TripStatus][]TripStatus{
	TripStatusRequested:  {TripStatusAccepted, TripStatusCancelled},
	TripStatusAccepted:   {TripStatusInProgress, TripStatusCancelled},
	TripStatusInProgress: {TripStatusCompleted},
}

// CanTransition reports whether a trip may move from one status to another.
func CanTransition(from, to TripStatus) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// HasDriver reports whether a trip in this status must carry a driver.
func (s TripStatus) HasDriver() bool {
	return s == TripStatusAccepted || s == TripStatusInProgress || s == TripStatusCompleted
}

// VehicleType is the class of vehicle a trip asks for.
type VehicleType string

const (
	VehicleTypeCar        VehicleType = "CAR"
	VehicleTypeMotorcycle VehicleType = "MOTORCYCLE"
)

// Valid reports whether v is a known vehicle type.
func (v VehicleType) Valid() bool {
	return v == VehicleTypeCar || v == VehicleTypeMotorcycle
}

// ServiceType distinguishes passenger trips from deliveries.
type ServiceType string

const (
	ServiceTypeTrip     ServiceType = "TRIP"
	ServiceTypeDelivery ServiceType = "DELIVERY"
)

// Valid reports whether s is a known service type.
func (s ServiceType) Valid() bool {
	return s == ServiceTypeTrip || s == ServiceTypeDelivery
}

// Trip is a client's request to be moved (or to have something moved)
// from a pickup address to a destination.
type Trip struct {
	ID                 string
	ClientID           string
	DriverID           string // empty until an offer is accepted
	PickupAddress      string
	DestinationAddress string
	PickupPoint        *Point
	DestinationPoint   *Point
	VehicleType        VehicleType
	ServiceType        ServiceType
	Status             TripStatus
	ProposedPrice      *float64 // client's own price, used as the fare's base when set
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OwnerIdentities returns the client and, once assigned, the driver.
func (t *Trip) OwnerIdentities() []string {
	if t.DriverID == "" {
		return []string{t.ClientID}
	}
	return []string{t.ClientID, t.DriverID}
}

// IsOpen reports whether drivers may still bid on the trip.
func (t *Trip) IsOpen() bool {
	return t.Status == TripStatusRequested && t.DriverID == ""
}
