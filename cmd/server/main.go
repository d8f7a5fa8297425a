package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/domain"
	"dispatch/internal/events"
	"dispatch/internal/handler"
	"dispatch/internal/logging"
	"dispatch/internal/maps"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/repository/memory"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", slog.Any("error", err))
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", slog.String("app", cfg.NewRelic.AppName))
		}
	}

	store, db, err := openStore(ctx, cfg, nrApp, logger)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
	}

	publisher := newPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	server, err := wireServer(store, redisClient, publisher, nrApp, cfg, logger)
	if err != nil {
		logger.Error("failed to wire server", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		logger.Info("starting server", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// openStore returns the configured store. The *sql.DB is nil for the memory store.
func openStore(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, logger *slog.Logger) (repository.Store, *sql.DB, error) {
	if cfg.Database.Driver == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(), nil, nil
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to PostgreSQL", slog.String("host", cfg.Database.Host), slog.String("db", cfg.Database.DBName))

	if cfg.Database.Migrate {
		if err := app.Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return postgres.NewStore(db), db, nil
}

func newPublisher(cfg config.KafkaConfig, logger *slog.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	logger.Info("publishing events to kafka", slog.Any("brokers", cfg.Brokers), slog.String("topic", cfg.Topic))
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// newRouteProvider returns nil when no provider can be built; route features
// then answer with provider-unavailable.
func newRouteProvider(cfg config.RouteConfig, logger *slog.Logger) (maps.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		client, err := maps.NewGoogleClient(cfg.GoogleAPIKey, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return maps.WithMetrics(cfg.Provider, client), nil
	case config.ProviderMapbox, config.ProviderOSRM:
		if cfg.Provider == config.ProviderMapbox && cfg.AccessToken == "" {
			logger.Warn("ROUTE_ACCESS_TOKEN not set; route estimates are disabled")
			return nil, nil
		}
		client := maps.NewDirectionsClient(maps.DirectionsConfig{
			BaseURL:     cfg.BaseURL,
			Profile:     cfg.Profile,
			AccessToken: cfg.AccessToken,
			Timeout:     cfg.Timeout,
		})
		return maps.WithMetrics(cfg.Provider, client), nil
	default:
		logger.Warn("no route provider configured; route estimates are disabled")
		return nil, nil
	}
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	store repository.Store,
	redisClient *redis.Client,
	publisher events.Publisher,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *slog.Logger,
) (*http.Server, error) {
	fareCfg := service.FareConfig{
		BaseFares: map[domain.VehicleType]float64{
			domain.VehicleTypeCar:        cfg.Fare.BaseCar,
			domain.VehicleTypeMotorcycle: cfg.Fare.BaseMotorcycle,
		},
		DefaultVehicleType: domain.VehicleTypeCar,
		SurchargePerKm:     cfg.Fare.SurchargePerKm,
		Currency:           cfg.Fare.Currency,
	}
	if err := fareCfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := newRouteProvider(cfg.Route, logger)
	if err != nil {
		return nil, err
	}

	// Redis-backed helpers are optional; nil interfaces keep the services on their fallbacks.
	var (
		lockStore  internalRedis.LockStoreInterface
		routeCache internalRedis.RouteCacheInterface
	)
	if redisClient != nil {
		lockStore = internalRedis.NewLockStore(redisClient)
		routeCache = internalRedis.NewRouteCache(redisClient, cfg.Route.CacheTTL)
	}

	// Initialize services.
	fares := service.NewFareCalculator(fareCfg)
	matchingService := service.NewMatchingService(store, cfg.Matching.RadiusKm, logger)
	routeService := service.NewRouteService(provider, routeCache, fares, logger)
	tripService := service.NewTripService(store, fares, matchingService, routeService, publisher, logger)
	offerService := service.NewOfferService(store, lockStore, publisher, logger)

	router := app.NewRouter(app.RouterDeps{
		TripHandler:  handler.NewTripHandler(tripService, matchingService),
		OfferHandler: handler.NewOfferHandler(offerService),
		RouteHandler: handler.NewRouteHandler(routeService),
		RedisClient:  redisClient,
		NewRelicApp:  nrApp,
		Logger:       logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
