package service

import (
	"context"
	"log/slog"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DefaultSearchRadiusKm is the matching radius when none is configured.
const DefaultSearchRadiusKm = 5.0

// MatchingService finds the open trips a driver can bid on. It only reads.
type MatchingService struct {
	store    repository.Store
	radiusKm float64
	logger   *slog.Logger
}

// NewMatchingService creates a new MatchingService. A non-positive radius uses DefaultSearchRadiusKm.
func NewMatchingService(store repository.Store, radiusKm float64, logger *slog.Logger) *MatchingService {
	if radiusKm <= 0 {
		radiusKm = DefaultSearchRadiusKm
	}
	return &MatchingService{
		store:    store,
		radiusKm: radiusKm,
		logger:   loggerOrDefault(logger),
	}
}

// FindOpenTrips returns REQUESTED, unassigned trips whose pickup lies within
// radiusKm of location, nearest first, followed by the trips already assigned
// to driverID. A missing or malformed location degrades to every REQUESTED
// trip in no particular order.
func (s *MatchingService) FindOpenTrips(ctx context.Context, location *domain.Point, driverID string, radiusKm float64) ([]*domain.Trip, error) {
	if radiusKm <= 0 {
		radiusKm = s.radiusKm
	}
	repos := s.store.Repositories()

	var open []*domain.Trip
	if location != nil && location.Valid() {
		nearby, err := repos.Trips.FindRequestedWithin(ctx, *location, radiusKm)
		if err != nil {
			return nil, err
		}
		open = make([]*domain.Trip, 0, len(nearby))
		for _, n := range nearby {
			open = append(open, n.Trip)
		}
	} else {
		s.logger.DebugContext(ctx, "no usable driver location, listing all open trips",
			slog.String("driver_id", driverID))
		all, err := repos.Trips.ListRequested(ctx)
		if err != nil {
			return nil, err
		}
		open = all
	}

	if driverID == "" {
		return open, nil
	}

	assigned, err := repos.Trips.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(open))
	for _, t := range open {
		seen[t.ID] = struct{}{}
	}
	for _, t := range assigned {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		open = append(open, t)
	}

	return open, nil
}

// TripSummary is an open trip as shown to drivers browsing for work.
type TripSummary struct {
	Trip       *domain.Trip
	FareAmount float64
	Currency   string
	DistanceKm *float64 // nil when no location was supplied
}

// AvailableForDrivers lists REQUESTED, unassigned trips with their fares.
// With a valid location the list is limited to the radius and ordered by distance.
func (s *MatchingService) AvailableForDrivers(ctx context.Context, caller domain.Caller, location *domain.Point) ([]TripSummary, error) {
	if caller.Role != domain.RoleDriver && !caller.IsAdmin() {
		return nil, ErrDriverRoleRequired
	}
	repos := s.store.Repositories()

	var summaries []TripSummary
	if location != nil && location.Valid() {
		nearby, err := repos.Trips.FindRequestedWithin(ctx, *location, s.radiusKm)
		if err != nil {
			return nil, err
		}
		for _, n := range nearby {
			d := domain.Round2(n.DistanceKm)
			summaries = append(summaries, TripSummary{Trip: n.Trip, DistanceKm: &d})
		}
	} else {
		trips, err := repos.Trips.ListRequested(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range trips {
			summaries = append(summaries, TripSummary{Trip: t})
		}
	}

	if len(summaries) == 0 {
		return summaries, nil
	}

	ids := make([]string, len(summaries))
	for i, sum := range summaries {
		ids[i] = sum.Trip.ID
	}
	fares, err := repos.Fares.GetByTripIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if f, ok := fares[summaries[i].Trip.ID]; ok {
			summaries[i].FareAmount = f.Amount
			summaries[i].Currency = f.Currency
		}
	}

	return summaries, nil
}
