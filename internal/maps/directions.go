package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"dispatch/internal/domain"
)

// DefaultTimeout bounds a single directions request.
const DefaultTimeout = 10 * time.Second

// DirectionsConfig configures a DirectionsClient.
type DirectionsConfig struct {
	// BaseURL is everything before the profile, e.g.
	// https://api.mapbox.com/directions/v5/mapbox or http://osrm:5000/route/v1.
	BaseURL     string
	Profile     string
	AccessToken string
	Timeout     time.Duration
}

// DirectionsClient queries a Mapbox or OSRM compatible directions API.
type DirectionsClient struct {
	baseURL     string
	profile     string
	accessToken string
	client      *http.Client
}

// NewDirectionsClient creates a client whose outbound calls show up as
// external segments on the current New Relic transaction.
func NewDirectionsClient(cfg DirectionsConfig) *DirectionsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	profile := cfg.Profile
	if profile == "" {
		profile = "driving"
	}

	return &DirectionsClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		profile:     profile,
		accessToken: cfg.AccessToken,
		client: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
	}
}

type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// GetRoute requests the full-overview route with polyline geometry.
func (c *DirectionsClient) GetRoute(ctx context.Context, origin, destination domain.Point) (*Route, error) {
	endpoint := fmt.Sprintf("%s/%s/%.6f,%.6f;%.6f,%.6f",
		c.baseURL, c.profile, origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	q := url.Values{}
	q.Set("geometries", "polyline")
	q.Set("overview", "full")
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build directions request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the access token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, unavailable("directions request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, unavailable("directions returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, unavailable("decode directions response: %v", err)
	}
	if out.Code != "" && !strings.EqualFold(out.Code, "Ok") {
		return nil, unavailable("directions code %s: %s", out.Code, out.Message)
	}
	if len(out.Routes) == 0 {
		return nil, ErrNoRoute
	}

	best := out.Routes[0]
	geometry, err := DecodePolyline(best.Geometry)
	if err != nil {
		return nil, unavailable("decode route geometry: %v", err)
	}

	return &Route{
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
		EncodedPolyline: best.Geometry,
		Geometry:        geometry,
	}, nil
}

var _ Provider = (*DirectionsClient)(nil)
