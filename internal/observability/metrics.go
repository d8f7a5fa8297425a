package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dispatch"

var (
	TripsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trips_created_total", Help: "Trips created by vehicle type"},
		[]string{"vehicle_type"},
	)
	TripTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trip_transitions_total", Help: "Trip status transitions by target status"},
		[]string{"status"},
	)

	OffersSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "offers_submitted_total", Help: "Offers accepted into the auction"})
	OfferAcceptsTotal    = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "offer_accepts_total", Help: "Offer accept attempts by result"},
		[]string{"result"},
	)
	OfferAcceptLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "offer_accept_latency_seconds",
		Help:      "Time spent in the accept transaction",
		Buckets:   prometheus.DefBuckets,
	})

	RouteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "route_requests_total", Help: "Route provider calls by provider and result"},
		[]string{"provider", "result"},
	)
	RouteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_latency_seconds",
			Help:      "Route provider latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)
	RouteCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "route_cache_total", Help: "Route cache lookups by result"},
		[]string{"result"},
	)

	IdempotencyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "idempotency_total", Help: "Idempotency-Key lookups by outcome"},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
