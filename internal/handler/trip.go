package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService     *service.TripService
	matchingService *service.MatchingService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService, matchingService *service.MatchingService) *TripHandler {
	return &TripHandler{
		tripService:     tripService,
		matchingService: matchingService,
	}
}

// CreateTripRequest is the HTTP request body for creating a trip.
type CreateTripRequest struct {
	PickupAddress      string        `json:"pickup_address" binding:"required"`
	DestinationAddress string        `json:"destination_address" binding:"required"`
	PickupPoint        *domain.Point `json:"pickup_point,omitempty"`
	DestinationPoint   *domain.Point `json:"destination_point,omitempty"`
	VehicleType        string        `json:"vehicle_type" binding:"required"`
	ServiceType        string        `json:"service_type,omitempty"`
	ProposedPrice      *float64      `json:"proposed_price,omitempty"`
	DistanceKm         float64       `json:"distance_km,omitempty"`
}

// UpdateTripRequest is the HTTP request body for a partial trip update.
type UpdateTripRequest struct {
	PickupAddress      *string       `json:"pickup_address,omitempty"`
	DestinationAddress *string       `json:"destination_address,omitempty"`
	PickupPoint        *domain.Point `json:"pickup_point,omitempty"`
	DestinationPoint   *domain.Point `json:"destination_point,omitempty"`
	ServiceType        *string       `json:"service_type,omitempty"`
	ProposedPrice      *float64      `json:"proposed_price,omitempty"`
}

// LocationQuery is the optional driver position on list endpoints.
type LocationQuery struct {
	Lat *float64 `form:"lat"`
	Lng *float64 `form:"lng"`
}

// TripResponse is the HTTP response for a trip.
type TripResponse struct {
	ID                 string        `json:"id"`
	ClientID           string        `json:"client_id"`
	DriverID           string        `json:"driver_id,omitempty"`
	PickupAddress      string        `json:"pickup_address"`
	DestinationAddress string        `json:"destination_address"`
	PickupPoint        *domain.Point `json:"pickup_point,omitempty"`
	DestinationPoint   *domain.Point `json:"destination_point,omitempty"`
	VehicleType        string        `json:"vehicle_type"`
	ServiceType        string        `json:"service_type"`
	Status             string        `json:"status"`
	ProposedPrice      *float64      `json:"proposed_price,omitempty"`
	CreatedAt          string        `json:"created_at"`
	UpdatedAt          string        `json:"updated_at"`
	Fare               *FareResponse `json:"fare,omitempty"`
}

// FareResponse is the HTTP response for a fare.
type FareResponse struct {
	BaseFare       float64 `json:"base_fare"`
	DistanceKm     float64 `json:"distance_km"`
	SurchargePerKm float64 `json:"surcharge_per_km"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	UpdatedAt      string  `json:"updated_at"`
}

// TripSummaryResponse is an open trip as listed to drivers.
type TripSummaryResponse struct {
	TripResponse
	FareAmount float64  `json:"fare_amount"`
	Currency   string   `json:"currency,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	detail, err := h.tripService.CreateTrip(c.Request.Context(), caller, service.CreateTripRequest{
		PickupAddress:      req.PickupAddress,
		DestinationAddress: req.DestinationAddress,
		PickupPoint:        req.PickupPoint,
		DestinationPoint:   req.DestinationPoint,
		VehicleType:        domain.VehicleType(req.VehicleType),
		ServiceType:        domain.ServiceType(req.ServiceType),
		ProposedPrice:      req.ProposedPrice,
		InitialDistanceKm:  req.DistanceKm,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toTripResponse(detail.Trip, detail.Fare))
}

// ListMine handles GET /v1/trips
func (h *TripHandler) ListMine(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	trips, err := h.tripService.ListMine(c.Request.Context(), caller, locationFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		response = append(response, toTripResponse(t, nil))
	}
	respondJSON(c, http.StatusOK, response)
}

// Available handles GET /v1/trips/available
func (h *TripHandler) Available(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	summaries, err := h.matchingService.AvailableForDrivers(c.Request.Context(), caller, locationFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		response = append(response, TripSummaryResponse{
			TripResponse: toTripResponse(s.Trip, nil),
			FareAmount:   s.FareAmount,
			Currency:     s.Currency,
			DistanceKm:   s.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	detail, err := h.tripService.GetTrip(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(detail.Trip, detail.Fare))
}

// UpdateTrip handles PATCH /v1/trips/:id
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	update := service.UpdateTripRequest{
		PickupAddress:      req.PickupAddress,
		DestinationAddress: req.DestinationAddress,
		PickupPoint:        req.PickupPoint,
		DestinationPoint:   req.DestinationPoint,
		ProposedPrice:      req.ProposedPrice,
	}
	if req.ServiceType != nil {
		st := domain.ServiceType(*req.ServiceType)
		update.ServiceType = &st
	}

	detail, err := h.tripService.UpdateTrip(c.Request.Context(), caller, c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(detail.Trip, detail.Fare))
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	h.lifecycle(c, h.tripService.CancelTrip)
}

// StartTrip handles POST /v1/trips/:id/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	h.lifecycle(c, h.tripService.StartTrip)
}

// CompleteTrip handles POST /v1/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	h.lifecycle(c, h.tripService.CompleteTrip)
}

type transitionFunc func(ctx context.Context, caller domain.Caller, tripID string) (*domain.Trip, error)

func (h *TripHandler) lifecycle(c *gin.Context, op transitionFunc) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	trip, err := op(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toTripResponse(trip, nil))
}

// RefineFare handles POST /v1/trips/:id/fare/refine
func (h *TripHandler) RefineFare(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	fare, err := h.tripService.RefineFare(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toFareResponse(fare))
}

func locationFromQuery(c *gin.Context) *domain.Point {
	var q LocationQuery
	if err := c.ShouldBindQuery(&q); err != nil || q.Lat == nil || q.Lng == nil {
		return nil
	}
	return &domain.Point{Lat: *q.Lat, Lng: *q.Lng}
}

func toTripResponse(t *domain.Trip, f *domain.Fare) TripResponse {
	resp := TripResponse{
		ID:                 t.ID,
		ClientID:           t.ClientID,
		DriverID:           t.DriverID,
		PickupAddress:      t.PickupAddress,
		DestinationAddress: t.DestinationAddress,
		PickupPoint:        t.PickupPoint,
		DestinationPoint:   t.DestinationPoint,
		VehicleType:        string(t.VehicleType),
		ServiceType:        string(t.ServiceType),
		Status:             string(t.Status),
		ProposedPrice:      t.ProposedPrice,
		CreatedAt:          t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          t.UpdatedAt.Format(time.RFC3339),
	}
	if f != nil {
		fr := toFareResponse(f)
		resp.Fare = &fr
	}
	return resp
}

func toFareResponse(f *domain.Fare) FareResponse {
	return FareResponse{
		BaseFare:       f.BaseFare,
		DistanceKm:     f.DistanceKm,
		SurchargePerKm: f.SurchargePerKm,
		Amount:         f.Amount,
		Currency:       f.Currency,
		UpdatedAt:      f.UpdatedAt.Format(time.RFC3339),
	}
}
