package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/observability"
	"dispatch/internal/repository"
)

// TripService owns the trip state machine and the fare paired with each trip.
type TripService struct {
	store     repository.Store
	fares     *FareCalculator
	matching  *MatchingService
	routes    *RouteService
	publisher events.Publisher
	logger    *slog.Logger
}

// NewTripService creates a new TripService. routes may be nil, in which
// case RefineFare reports the provider as unavailable.
func NewTripService(
	store repository.Store,
	fares *FareCalculator,
	matching *MatchingService,
	routes *RouteService,
	publisher events.Publisher,
	logger *slog.Logger,
) *TripService {
	return &TripService{
		store:     store,
		fares:     fares,
		matching:  matching,
		routes:    routes,
		publisher: publisher,
		logger:    loggerOrDefault(logger),
	}
}

// TripDetail is a trip together with its fare.
type TripDetail struct {
	Trip *domain.Trip
	Fare *domain.Fare
}

// CreateTripRequest contains the parameters for creating a trip.
type CreateTripRequest struct {
	PickupAddress      string
	DestinationAddress string
	PickupPoint        *domain.Point
	DestinationPoint   *domain.Point
	VehicleType        domain.VehicleType
	ServiceType        domain.ServiceType // defaults to TRIP
	ProposedPrice      *float64
	InitialDistanceKm  float64
}

// CreateTrip opens a REQUESTED trip and its fare in one transaction.
func (s *TripService) CreateTrip(ctx context.Context, caller domain.Caller, req CreateTripRequest) (*TripDetail, error) {
	if caller.Role != domain.RoleClient && !caller.IsAdmin() {
		return nil, ErrClientRoleRequired
	}

	req.PickupAddress = strings.TrimSpace(req.PickupAddress)
	req.DestinationAddress = strings.TrimSpace(req.DestinationAddress)
	if req.ServiceType == "" {
		req.ServiceType = domain.ServiceTypeTrip
	}
	req.ProposedPrice = roundedPrice(req.ProposedPrice)
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	at := now()
	trip := &domain.Trip{
		ID:                 uuid.NewString(),
		ClientID:           caller.ID,
		PickupAddress:      req.PickupAddress,
		DestinationAddress: req.DestinationAddress,
		PickupPoint:        req.PickupPoint,
		DestinationPoint:   req.DestinationPoint,
		VehicleType:        req.VehicleType,
		ServiceType:        req.ServiceType,
		Status:             domain.TripStatusRequested,
		ProposedPrice:      req.ProposedPrice,
		CreatedAt:          at,
		UpdatedAt:          at,
	}

	fare, err := s.fares.NewFare(trip, req.InitialDistanceKm)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Trips.Create(ctx, trip); err != nil {
			return fmt.Errorf("create trip: %w", err)
		}
		if err := repos.Fares.Create(ctx, fare); err != nil {
			return fmt.Errorf("create fare: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.TripsCreatedTotal.WithLabelValues(string(trip.VehicleType)).Inc()
	s.logger.InfoContext(ctx, "trip created",
		slog.String("trip_id", trip.ID),
		slog.String("client_id", trip.ClientID),
		slog.String("vehicle_type", string(trip.VehicleType)),
		slog.Float64("fare_amount", fare.Amount),
	)
	publish(ctx, s.publisher, s.logger, tripEvent(events.TripCreated, trip))

	return &TripDetail{Trip: trip, Fare: fare}, nil
}

// UpdateTripRequest carries the fields to change. Nil fields are left untouched.
type UpdateTripRequest struct {
	PickupAddress      *string
	DestinationAddress *string
	PickupPoint        *domain.Point
	DestinationPoint   *domain.Point
	ServiceType        *domain.ServiceType
	ProposedPrice      *float64
}

// UpdateTrip edits a REQUESTED trip. Only the client or an admin may do this,
// and the fare is repriced in the same transaction.
func (s *TripService) UpdateTrip(ctx context.Context, caller domain.Caller, tripID string, req UpdateTripRequest) (*TripDetail, error) {
	req.ProposedPrice = roundedPrice(req.ProposedPrice)
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	var detail TripDetail
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := repos.Trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && caller.ID != trip.ClientID {
			return ErrNotTripOwner
		}
		if trip.Status != domain.TripStatusRequested {
			return ErrTripNotRequested
		}

		applyUpdate(trip, req)
		trip.UpdatedAt = now()
		if err := repos.Trips.Update(ctx, trip); err != nil {
			return err
		}

		fare, err := repos.Fares.GetByTripID(ctx, trip.ID)
		if err != nil {
			return fmt.Errorf("load fare: %w", err)
		}
		s.fares.Reprice(fare, trip)
		fare.UpdatedAt = trip.UpdatedAt
		if err := repos.Fares.Update(ctx, fare); err != nil {
			return err
		}

		detail = TripDetail{Trip: trip, Fare: fare}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, tripEvent(events.TripUpdated, detail.Trip))
	return &detail, nil
}

// CancelTrip cancels a REQUESTED or ACCEPTED trip. The driver is released and
// any pending offers are rejected.
func (s *TripService) CancelTrip(ctx context.Context, caller domain.Caller, tripID string) (*domain.Trip, error) {
	return s.transition(ctx, caller, tripID, domain.TripStatusCancelled, ErrTripNotCancellable, events.TripCancelled,
		func(c domain.Caller, t *domain.Trip) error {
			if !domain.CanAccess(c, t) {
				return ErrNotTripOwner
			}
			return nil
		})
}

// StartTrip moves an ACCEPTED trip to IN_PROGRESS.
func (s *TripService) StartTrip(ctx context.Context, caller domain.Caller, tripID string) (*domain.Trip, error) {
	return s.transition(ctx, caller, tripID, domain.TripStatusInProgress, ErrInvalidTransition, events.TripStarted, requireAssignedDriver)
}

// CompleteTrip moves an IN_PROGRESS trip to COMPLETED.
func (s *TripService) CompleteTrip(ctx context.Context, caller domain.Caller, tripID string) (*domain.Trip, error) {
	return s.transition(ctx, caller, tripID, domain.TripStatusCompleted, ErrInvalidTransition, events.TripCompleted, requireAssignedDriver)
}

func requireAssignedDriver(c domain.Caller, t *domain.Trip) error {
	if c.IsAdmin() || (t.DriverID != "" && c.ID == t.DriverID) {
		return nil
	}
	return ErrNotAssignedDriver
}

func (s *TripService) transition(
	ctx context.Context,
	caller domain.Caller,
	tripID string,
	to domain.TripStatus,
	conflict error,
	eventType string,
	authorize func(domain.Caller, *domain.Trip) error,
) (*domain.Trip, error) {
	var trip *domain.Trip
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		t, err := repos.Trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if err := authorize(caller, t); err != nil {
			return err
		}
		if !domain.CanTransition(t.Status, to) {
			return conflict
		}

		from := t.Status
		t.Status = to
		t.UpdatedAt = now()
		if !to.HasDriver() {
			t.DriverID = ""
		}
		if to == domain.TripStatusCancelled && from == domain.TripStatusRequested {
			if _, err := repos.Offers.RejectPending(ctx, t.ID, t.UpdatedAt); err != nil {
				return fmt.Errorf("reject pending offers: %w", err)
			}
		}
		if err := repos.Trips.Update(ctx, t); err != nil {
			return err
		}
		trip = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.TripTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.logger.InfoContext(ctx, "trip status changed",
		slog.String("trip_id", trip.ID),
		slog.String("status", string(trip.Status)),
		slog.String("caller_id", caller.ID),
	)
	publish(ctx, s.publisher, s.logger, tripEvent(eventType, trip))
	return trip, nil
}

// GetTrip returns a trip and its fare to an owner or admin.
func (s *TripService) GetTrip(ctx context.Context, caller domain.Caller, tripID string) (*TripDetail, error) {
	repos := s.store.Repositories()

	trip, err := repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !domain.CanAccess(caller, trip) {
		return nil, ErrNotTripOwner
	}

	fare, err := repos.Fares.GetByTripID(ctx, tripID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	return &TripDetail{Trip: trip, Fare: fare}, nil
}

// ListMine returns a client's own trips, newest first. Drivers and admins get
// the open trips near location plus the trips assigned to them.
func (s *TripService) ListMine(ctx context.Context, caller domain.Caller, location *domain.Point) ([]*domain.Trip, error) {
	switch caller.Role {
	case domain.RoleClient:
		return s.store.Repositories().Trips.ListByClient(ctx, caller.ID)
	case domain.RoleDriver, domain.RoleAdmin:
		return s.matching.FindOpenTrips(ctx, location, caller.ID, 0)
	default:
		return nil, ErrForbidden
	}
}

// RefineFare replaces the fare's distance with the driving distance between
// the trip's points. The provider call happens before any lock is taken.
func (s *TripService) RefineFare(ctx context.Context, caller domain.Caller, tripID string) (*domain.Fare, error) {
	trip, err := s.store.Repositories().Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !domain.CanAccess(caller, trip) {
		return nil, ErrNotTripOwner
	}
	if trip.Status.IsTerminal() {
		return nil, ErrTripClosed
	}
	if trip.PickupPoint == nil {
		return nil, invalid("pickup_point", "is required to refine the fare")
	}
	if trip.DestinationPoint == nil {
		return nil, invalid("destination_point", "is required to refine the fare")
	}
	if s.routes == nil {
		return nil, fmt.Errorf("%w: no route provider configured", ErrProviderUnavailable)
	}

	route, err := s.routes.ExactRoute(ctx, *trip.PickupPoint, *trip.DestinationPoint)
	if err != nil {
		return nil, err
	}

	var fare *domain.Fare
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		current, err := repos.Trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return ErrTripClosed
		}
		if !samePoint(current.PickupPoint, trip.PickupPoint) || !samePoint(current.DestinationPoint, trip.DestinationPoint) {
			return fmt.Errorf("%w: trip points changed while the route was resolved", ErrStateConflict)
		}

		f, err := repos.Fares.GetByTripID(ctx, tripID)
		if err != nil {
			return fmt.Errorf("load fare: %w", err)
		}
		if err := s.fares.SetDistance(f, current, route.DistanceKm(), now()); err != nil {
			return err
		}
		if err := repos.Fares.Update(ctx, f); err != nil {
			return err
		}
		fare = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := tripEvent(events.FareRefined, trip)
	evt.Amount = fare.Amount
	evt.OccurredAt = fare.UpdatedAt
	publish(ctx, s.publisher, s.logger, evt)
	return fare, nil
}

func validateCreate(req CreateTripRequest) error {
	if req.PickupAddress == "" {
		return invalid("pickup_address", "is required")
	}
	if req.DestinationAddress == "" {
		return invalid("destination_address", "is required")
	}
	if req.VehicleType == "" {
		return invalid("vehicle_type", "is required")
	}
	if !req.VehicleType.Valid() {
		return invalid("vehicle_type", "must be CAR or MOTORCYCLE")
	}
	if !req.ServiceType.Valid() {
		return invalid("service_type", "must be TRIP or DELIVERY")
	}
	if err := validatePoint("pickup_point", req.PickupPoint); err != nil {
		return err
	}
	if err := validatePoint("destination_point", req.DestinationPoint); err != nil {
		return err
	}
	if req.ProposedPrice != nil {
		if err := validatePrice("proposed_price", *req.ProposedPrice); err != nil {
			return err
		}
	}
	return validateDistance(req.InitialDistanceKm)
}

func validateUpdate(req UpdateTripRequest) error {
	if req.PickupAddress != nil && strings.TrimSpace(*req.PickupAddress) == "" {
		return invalid("pickup_address", "must not be empty")
	}
	if req.DestinationAddress != nil && strings.TrimSpace(*req.DestinationAddress) == "" {
		return invalid("destination_address", "must not be empty")
	}
	if req.ServiceType != nil && !req.ServiceType.Valid() {
		return invalid("service_type", "must be TRIP or DELIVERY")
	}
	if err := validatePoint("pickup_point", req.PickupPoint); err != nil {
		return err
	}
	if err := validatePoint("destination_point", req.DestinationPoint); err != nil {
		return err
	}
	if req.ProposedPrice != nil {
		return validatePrice("proposed_price", *req.ProposedPrice)
	}
	return nil
}

func applyUpdate(trip *domain.Trip, req UpdateTripRequest) {
	if req.PickupAddress != nil {
		trip.PickupAddress = strings.TrimSpace(*req.PickupAddress)
	}
	if req.DestinationAddress != nil {
		trip.DestinationAddress = strings.TrimSpace(*req.DestinationAddress)
	}
	if req.PickupPoint != nil {
		p := *req.PickupPoint
		trip.PickupPoint = &p
	}
	if req.DestinationPoint != nil {
		p := *req.DestinationPoint
		trip.DestinationPoint = &p
	}
	if req.ServiceType != nil {
		trip.ServiceType = *req.ServiceType
	}
	if req.ProposedPrice != nil {
		v := *req.ProposedPrice
		trip.ProposedPrice = &v
	}
}

// roundedPrice returns a copy of p rounded to cents, the precision fares are stored at.
func roundedPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := domain.Round2(*p)
	return &v
}

func validatePoint(field string, p *domain.Point) error {
	if p != nil && !p.Valid() {
		return invalid(field, "latitude must be within [-90, 90] and longitude within [-180, 180]")
	}
	return nil
}

func samePoint(a, b *domain.Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
