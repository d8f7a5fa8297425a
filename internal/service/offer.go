package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/observability"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// tripLockTTL bounds the accept guard if the holder dies before releasing it.
const tripLockTTL = 10 * time.Second

// OfferService runs the auction: drivers bid, the client accepts one bid.
type OfferService struct {
	store     repository.Store
	lockStore redis.LockStoreInterface
	publisher events.Publisher
	logger    *slog.Logger
}

// NewOfferService creates a new OfferService. lockStore may be nil; the
// transaction's row lock alone is sufficient for correctness.
func NewOfferService(
	store repository.Store,
	lockStore redis.LockStoreInterface,
	publisher events.Publisher,
	logger *slog.Logger,
) *OfferService {
	return &OfferService{
		store:     store,
		lockStore: lockStore,
		publisher: publisher,
		logger:    loggerOrDefault(logger),
	}
}

// SubmitOfferRequest contains the parameters for bidding on a trip.
type SubmitOfferRequest struct {
	TripID     string
	Price      float64
	EtaMinutes int
}

// SubmitOffer creates a PENDING offer from the calling driver. The trip row is
// locked so a bid can never land after an accept has closed the auction.
func (s *OfferService) SubmitOffer(ctx context.Context, caller domain.Caller, req SubmitOfferRequest) (*domain.TripOffer, error) {
	if caller.Role != domain.RoleDriver && !caller.IsAdmin() {
		return nil, ErrDriverRoleRequired
	}
	if err := validatePrice("price", req.Price); err != nil {
		return nil, err
	}
	if req.EtaMinutes <= 0 {
		return nil, invalid("eta_minutes", "must be greater than 0")
	}

	var offer *domain.TripOffer
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := repos.Trips.GetByIDForUpdate(ctx, req.TripID)
		if err != nil {
			return err
		}
		if trip.Status != domain.TripStatusRequested {
			return ErrTripNotRequested
		}

		at := now()
		o := &domain.TripOffer{
			ID:                      uuid.NewString(),
			TripID:                  trip.ID,
			DriverID:                caller.ID,
			OfferedPrice:            domain.Round2(req.Price),
			EstimatedArrivalMinutes: req.EtaMinutes,
			Status:                  domain.OfferStatusPending,
			CreatedAt:               at,
			UpdatedAt:               at,
		}
		if err := repos.Offers.Create(ctx, o); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateOffer
			}
			return fmt.Errorf("create offer: %w", err)
		}
		offer = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.OffersSubmittedTotal.Inc()
	s.logger.InfoContext(ctx, "offer submitted",
		slog.String("offer_id", offer.ID),
		slog.String("trip_id", offer.TripID),
		slog.String("driver_id", offer.DriverID),
		slog.Float64("price", offer.OfferedPrice),
	)
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:       events.OfferSubmitted,
		TripID:     offer.TripID,
		OfferID:    offer.ID,
		DriverID:   offer.DriverID,
		Status:     string(offer.Status),
		Amount:     offer.OfferedPrice,
		OccurredAt: offer.CreatedAt,
	})

	return offer, nil
}

// ListOffers returns the trip's offers, newest first, to the trip's client.
func (s *OfferService) ListOffers(ctx context.Context, caller domain.Caller, tripID string) ([]*domain.TripOffer, error) {
	repos := s.store.Repositories()

	trip, err := repos.Trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if caller.ID != trip.ClientID {
		return nil, ErrNotTripClient
	}

	return repos.Offers.ListByTrip(ctx, tripID)
}

// GetOffer returns an offer to its driver, the trip's client, or an admin.
func (s *OfferService) GetOffer(ctx context.Context, caller domain.Caller, offerID string) (*domain.TripOffer, error) {
	repos := s.store.Repositories()

	offer, err := repos.Offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if domain.CanAccess(caller, offer) {
		return offer, nil
	}

	trip, err := repos.Trips.GetByID(ctx, offer.TripID)
	if err != nil {
		return nil, err
	}
	if caller.ID != trip.ClientID {
		return nil, ErrNotOfferOwner
	}
	return offer, nil
}

// ListMyOffers returns the calling driver's offers, newest first.
func (s *OfferService) ListMyOffers(ctx context.Context, caller domain.Caller) ([]*domain.TripOffer, error) {
	if caller.Role != domain.RoleDriver && !caller.IsAdmin() {
		return nil, ErrDriverRoleRequired
	}
	return s.store.Repositories().Offers.ListByDriver(ctx, caller.ID)
}

// AcceptResult is the trip and offer after a successful accept.
type AcceptResult struct {
	Trip  *domain.Trip
	Offer *domain.TripOffer
}

// AcceptOffer closes the auction in favor of one offer. Everything from the
// re-read to rejecting the competing offers happens in one transaction holding
// the trip row lock, so of two racing accepts on the same trip exactly one wins.
func (s *OfferService) AcceptOffer(ctx context.Context, caller domain.Caller, offerID string) (result *AcceptResult, err error) {
	start := time.Now()
	defer func() {
		observability.OfferAcceptLatency.Observe(time.Since(start).Seconds())
		observability.OfferAcceptsTotal.WithLabelValues(acceptOutcome(err)).Inc()
	}()

	offer, err := s.store.Repositories().Offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	// Fast-fail guard across instances. The row lock below is what guarantees correctness.
	if s.lockStore != nil {
		token, lockErr := s.lockStore.AcquireTripLock(ctx, offer.TripID, tripLockTTL)
		if lockErr != nil {
			s.logger.WarnContext(ctx, "trip lock unavailable, relying on row lock",
				slog.String("trip_id", offer.TripID), slog.Any("error", lockErr))
		} else if token == "" {
			return nil, ErrTripBusy
		} else {
			defer func() {
				if relErr := s.lockStore.ReleaseTripLock(context.WithoutCancel(ctx), offer.TripID, token); relErr != nil {
					s.logger.WarnContext(ctx, "failed to release trip lock",
						slog.String("trip_id", offer.TripID), slog.Any("error", relErr))
				}
			}()
		}
	}

	var rejected int64
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		trip, err := repos.Trips.GetByIDForUpdate(ctx, offer.TripID)
		if err != nil {
			return err
		}
		current, err := repos.Offers.GetByID(ctx, offerID)
		if err != nil {
			return err
		}

		if caller.ID != trip.ClientID {
			return ErrNotTripClient
		}
		if trip.Status != domain.TripStatusRequested {
			return ErrTripNotRequested
		}
		if current.Status != domain.OfferStatusPending {
			return ErrOfferNotPending
		}

		at := now()
		current.Status = domain.OfferStatusAccepted
		current.UpdatedAt = at
		if err := repos.Offers.Update(ctx, current); err != nil {
			return fmt.Errorf("accept offer: %w", err)
		}

		trip.DriverID = current.DriverID
		trip.Status = domain.TripStatusAccepted
		trip.UpdatedAt = at
		if err := repos.Trips.Update(ctx, trip); err != nil {
			return fmt.Errorf("assign trip: %w", err)
		}

		rejected, err = repos.Offers.RejectOthers(ctx, trip.ID, current.ID, at)
		if err != nil {
			return fmt.Errorf("reject competing offers: %w", err)
		}

		result = &AcceptResult{Trip: trip, Offer: current}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "offer accepted",
		slog.String("offer_id", result.Offer.ID),
		slog.String("trip_id", result.Trip.ID),
		slog.String("driver_id", result.Trip.DriverID),
		slog.Int64("rejected_offers", rejected),
	)
	evt := tripEvent(events.OfferAccepted, result.Trip)
	evt.OfferID = result.Offer.ID
	evt.Amount = result.Offer.OfferedPrice
	publish(ctx, s.publisher, s.logger, evt)

	return result, nil
}

func acceptOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrStateConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
