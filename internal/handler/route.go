package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// RouteHandler handles route estimate requests.
type RouteHandler struct {
	routeService *service.RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(routeService *service.RouteService) *RouteHandler {
	return &RouteHandler{routeService: routeService}
}

// EstimateRequest is the HTTP request body for a price estimate.
type EstimateRequest struct {
	OriginLat   *float64 `json:"origin_lat" binding:"required"`
	OriginLng   *float64 `json:"origin_lng" binding:"required"`
	DestLat     *float64 `json:"dest_lat" binding:"required"`
	DestLng     *float64 `json:"dest_lng" binding:"required"`
	VehicleType string   `json:"vehicle_type,omitempty"`
}

// EstimateResponse is the HTTP response for a price estimate.
type EstimateResponse struct {
	EstimatedPrice  float64        `json:"estimated_price"`
	DistanceKm      float64        `json:"distance_km"`
	DurationMinutes float64        `json:"duration_minutes"`
	Currency        string         `json:"currency"`
	VehicleType     string         `json:"vehicle_type"`
	Polyline        string         `json:"polyline,omitempty"`
	Geometry        []domain.Point `json:"geometry,omitempty"`
}

// Estimate handles POST /v1/routes/estimate
func (h *RouteHandler) Estimate(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	est, err := h.routeService.Estimate(c.Request.Context(), caller, service.EstimateRequest{
		Origin:      &domain.Point{Lat: *req.OriginLat, Lng: *req.OriginLng},
		Destination: &domain.Point{Lat: *req.DestLat, Lng: *req.DestLng},
		VehicleType: domain.VehicleType(req.VehicleType),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EstimateResponse{
		EstimatedPrice:  est.EstimatedPrice,
		DistanceKm:      est.DistanceKm,
		DurationMinutes: est.DurationMinutes,
		Currency:        est.Currency,
		VehicleType:     string(est.VehicleType),
		Polyline:        est.EncodedPolyline,
		Geometry:        est.Geometry,
	})
}
