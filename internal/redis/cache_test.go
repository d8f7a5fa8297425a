package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"dispatch/internal/domain"
)

func TestRouteKey(t *testing.T) {
	a := domain.Point{Lat: 11.5444, Lng: -72.9072}
	b := domain.Point{Lat: 11.5500, Lng: -72.9100}

	key := RouteKey(a, b)
	assert.True(t, strings.HasPrefix(key, "cache:route:"))
	parts := strings.Split(strings.TrimPrefix(key, "cache:route:"), ":")
	assert.Len(t, parts, 2)
	assert.Len(t, parts[0], routeHashPrecision)

	// Points a few meters apart share a cell; direction matters.
	nudged := domain.Point{Lat: a.Lat + 0.00001, Lng: a.Lng}
	assert.Equal(t, RouteKey(a, b), RouteKey(nudged, b))
	assert.NotEqual(t, RouteKey(a, b), RouteKey(b, a))
}
