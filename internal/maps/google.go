package maps

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	gmaps "googlemaps.github.io/maps"

	"dispatch/internal/domain"
)

// GoogleClient resolves routes with the Google Directions API.
type GoogleClient struct {
	client  *gmaps.Client
	timeout time.Duration
}

// NewGoogleClient creates a GoogleClient for the given API key.
func NewGoogleClient(apiKey string, timeout time.Duration) (*GoogleClient, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := gmaps.NewClient(
		gmaps.WithAPIKey(apiKey),
		gmaps.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleClient{client: client, timeout: timeout}, nil
}

// GetRoute returns the first driving route, summing all legs.
func (g *GoogleClient) GetRoute(ctx context.Context, origin, destination domain.Point) (*Route, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	routes, _, err := g.client.Directions(ctx, &gmaps.DirectionsRequest{
		Origin:      fmt.Sprintf("%.6f,%.6f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%.6f,%.6f", destination.Lat, destination.Lng),
		Mode:        gmaps.TravelModeDriving,
	})
	if err != nil {
		return nil, unavailable("maps api error: %v", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	best := routes[0]
	route := &Route{EncodedPolyline: best.OverviewPolyline.Points}
	for _, leg := range best.Legs {
		route.DistanceMeters += float64(leg.Distance.Meters)
		route.DurationSeconds += leg.Duration.Seconds()
	}

	route.Geometry, err = DecodePolyline(route.EncodedPolyline)
	if err != nil {
		return nil, unavailable("decode route geometry: %v", err)
	}

	return route, nil
}

var _ Provider = (*GoogleClient)(nil)
