package maps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
)

// Reference polyline from the encoded polyline algorithm documentation.
const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var (
	origin      = domain.Point{Lat: 11.5444, Lng: -72.9072}
	destination = domain.Point{Lat: 11.5500, Lng: -72.9100}
)

func newDirectionsServer(t *testing.T, handler http.HandlerFunc) *DirectionsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDirectionsClient(DirectionsConfig{BaseURL: srv.URL + "/directions/v5/mapbox", AccessToken: "token", Timeout: time.Second})
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestDirectionsClient_GetRoute(t *testing.T) {
	client := newDirectionsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/directions/v5/mapbox/driving/-72.907200,11.544400;-72.910000,11.550000", r.URL.Path)
		assert.Equal(t, "polyline", r.URL.Query().Get("geometries"))
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
		assert.Equal(t, "token", r.URL.Query().Get("access_token"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": "Ok",
			"routes": []map[string]any{
				{"distance": 1234.5, "duration": 300, "geometry": samplePolyline},
			},
		})
	})

	route, err := client.GetRoute(context.Background(), origin, destination)
	require.NoError(t, err)

	assert.Equal(t, 1234.5, route.DistanceMeters)
	assert.Equal(t, 300.0, route.DurationSeconds)
	assert.Equal(t, 1.23, route.DistanceKm())
	assert.Equal(t, 5.0, route.DurationMinutes())
	assert.Equal(t, samplePolyline, route.EncodedPolyline)
	require.Len(t, route.Geometry, 3)
	assert.InDelta(t, 38.5, route.Geometry[0].Lat, 1e-5)
	assert.InDelta(t, -120.2, route.Geometry[0].Lng, 1e-5)
	assert.InDelta(t, 43.252, route.Geometry[2].Lat, 1e-5)
}

func TestDirectionsClient_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream exploded", http.StatusBadGateway)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"Not Authorized - Invalid Token"}`, http.StatusUnauthorized)
			},
		},
		{
			name: "empty routes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
			},
		},
		{
			name: "no route code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"code":"NoRoute","message":"No route found"}`))
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newDirectionsServer(t, tc.handler)

			route, err := client.GetRoute(context.Background(), origin, destination)
			assert.Nil(t, route)
			assert.ErrorIs(t, err, ErrProviderUnavailable)
		})
	}
}

func TestDirectionsClient_EmptyRoutesIsNoRoute(t *testing.T) {
	client := newDirectionsServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
	})

	_, err := client.GetRoute(context.Background(), origin, destination)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestDirectionsClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewDirectionsClient(DirectionsConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.GetRoute(context.Background(), origin, destination)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDirectionsClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewDirectionsClient(DirectionsConfig{BaseURL: url, AccessToken: "secret-token"})
	_, err := client.GetRoute(context.Background(), origin, destination)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, strings.Contains(err.Error(), "secret-token"))
}
