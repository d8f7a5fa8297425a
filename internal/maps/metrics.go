package maps

import (
	"context"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/observability"
)

type instrumented struct {
	name string
	next Provider
}

// WithMetrics records call counts and latency for p under the given provider name.
func WithMetrics(name string, p Provider) Provider {
	return &instrumented{name: name, next: p}
}

func (i *instrumented) GetRoute(ctx context.Context, origin, destination domain.Point) (*Route, error) {
	start := time.Now()
	route, err := i.next.GetRoute(ctx, origin, destination)
	observability.RouteLatency.WithLabelValues(i.name).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	observability.RouteRequestsTotal.WithLabelValues(i.name, result).Inc()

	return route, err
}
