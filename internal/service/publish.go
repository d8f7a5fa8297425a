package service

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/events"
)

// publish sends evt after commit. Failures are logged and never returned:
// the state change already happened.
func publish(ctx context.Context, pub events.Publisher, logger *slog.Logger, evt events.Event) {
	if pub == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, evt); err != nil {
		logger.WarnContext(ctx, "event publish failed",
			slog.String("type", evt.Type),
			slog.String("trip_id", evt.TripID),
			slog.Any("error", err),
		)
	}
}

func tripEvent(eventType string, trip *domain.Trip) events.Event {
	return events.Event{
		Type:       eventType,
		TripID:     trip.ID,
		ClientID:   trip.ClientID,
		DriverID:   trip.DriverID,
		Status:     string(trip.Status),
		OccurredAt: trip.UpdatedAt,
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func now() time.Time {
	return time.Now().UTC()
}
