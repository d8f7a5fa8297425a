package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// OfferHandler handles HTTP requests for the offer auction.
type OfferHandler struct {
	offerService *service.OfferService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerService *service.OfferService) *OfferHandler {
	return &OfferHandler{offerService: offerService}
}

// SubmitOfferRequest is the HTTP request body for bidding on a trip.
type SubmitOfferRequest struct {
	Price      float64 `json:"price" binding:"required,gt=0"`
	EtaMinutes int     `json:"eta_minutes" binding:"required,gt=0"`
}

// OfferResponse is the HTTP response for an offer.
type OfferResponse struct {
	ID         string  `json:"id"`
	TripID     string  `json:"trip_id"`
	DriverID   string  `json:"driver_id"`
	Price      float64 `json:"price"`
	EtaMinutes int     `json:"eta_minutes"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// AcceptOfferResponse is the HTTP response for an accepted offer.
type AcceptOfferResponse struct {
	Trip  TripResponse  `json:"trip"`
	Offer OfferResponse `json:"offer"`
}

// SubmitOffer handles POST /v1/trips/:id/offers
func (h *OfferHandler) SubmitOffer(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	offer, err := h.offerService.SubmitOffer(c.Request.Context(), caller, service.SubmitOfferRequest{
		TripID:     c.Param("id"),
		Price:      req.Price,
		EtaMinutes: req.EtaMinutes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toOfferResponse(offer))
}

// ListOffers handles GET /v1/trips/:id/offers
func (h *OfferHandler) ListOffers(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	offers, err := h.offerService.ListOffers(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOfferResponses(offers))
}

// ListMine handles GET /v1/offers/mine
func (h *OfferHandler) ListMine(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	offers, err := h.offerService.ListMyOffers(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOfferResponses(offers))
}

// GetOffer handles GET /v1/offers/:id
func (h *OfferHandler) GetOffer(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	offer, err := h.offerService.GetOffer(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toOfferResponse(offer))
}

// AcceptOffer handles POST /v1/offers/:id/accept
func (h *OfferHandler) AcceptOffer(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	result, err := h.offerService.AcceptOffer(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AcceptOfferResponse{
		Trip:  toTripResponse(result.Trip, nil),
		Offer: toOfferResponse(result.Offer),
	})
}

func toOfferResponse(o *domain.TripOffer) OfferResponse {
	return OfferResponse{
		ID:         o.ID,
		TripID:     o.TripID,
		DriverID:   o.DriverID,
		Price:      o.OfferedPrice,
		EtaMinutes: o.EstimatedArrivalMinutes,
		Status:     string(o.Status),
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  o.UpdatedAt.Format(time.RFC3339),
	}
}

func toOfferResponses(offers []*domain.TripOffer) []OfferResponse {
	response := make([]OfferResponse, 0, len(offers))
	for _, o := range offers {
		response = append(response, toOfferResponse(o))
	}
	return response
}
