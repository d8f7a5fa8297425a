package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler  *handler.TripHandler
	OfferHandler *handler.OfferHandler
	RouteHandler *handler.RouteHandler
	RedisClient  *redis.Client // nil disables idempotency replay
	NewRelicApp  *newrelic.Application
	Logger       *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	handler.RegisterValidation()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(middleware.Identity())
	if deps.NewRelicApp != nil {
		v1.Use(middleware.CallerAttributes())
	}
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.CreateTrip)
			trips.GET("", deps.TripHandler.ListMine)
			trips.GET("/available", deps.TripHandler.Available)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.PATCH("/:id", deps.TripHandler.UpdateTrip)
			trips.POST("/:id/cancel", deps.TripHandler.CancelTrip)
			trips.POST("/:id/start", deps.TripHandler.StartTrip)
			trips.POST("/:id/complete", deps.TripHandler.CompleteTrip)
			trips.POST("/:id/fare/refine", deps.TripHandler.RefineFare)
			trips.POST("/:id/offers", deps.OfferHandler.SubmitOffer)
			trips.GET("/:id/offers", deps.OfferHandler.ListOffers)
		}

		// Offer routes.
		offers := v1.Group("/offers")
		{
			offers.GET("/mine", deps.OfferHandler.ListMine)
			offers.GET("/:id", deps.OfferHandler.GetOffer)
			offers.POST("/:id/accept", deps.OfferHandler.AcceptOffer)
		}

		// Route estimate.
		v1.POST("/routes/estimate", deps.RouteHandler.Estimate)
	}

	return router
}
