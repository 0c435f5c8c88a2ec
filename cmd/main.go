package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/alerts"
	"github.com/ukydev/fleet-telemetry/internal/analytics"
	"github.com/ukydev/fleet-telemetry/internal/auth"
	"github.com/ukydev/fleet-telemetry/internal/config"
	"github.com/ukydev/fleet-telemetry/internal/db"
	"github.com/ukydev/fleet-telemetry/internal/handlers"
	"github.com/ukydev/fleet-telemetry/internal/ingest"
	"github.com/ukydev/fleet-telemetry/internal/rules"
	"github.com/ukydev/fleet-telemetry/internal/telemetry"
)

// registry bundles the configured vehicle registry. vehicles is nil when the
// backend cannot manage vehicle records.
type registry struct {
	ids      db.VehicleRegistry
	vehicles db.VehicleStore
	close    func()
}

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	reg, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer reg.close()

	authService, err := buildAuth(cfg, logger)
	if err != nil {
		return err
	}

	store := telemetry.NewStore(reg.ids)
	engine := rules.NewEngine(rules.Config{
		SpeedLimit:              cfg.SpeedLimit,
		LowFuelThreshold:        cfg.LowFuelThreshold,
		LowBatteryThreshold:     cfg.LowBatteryThreshold,
		HighEngineTempThreshold: cfg.HighEngineTempThreshold,
	})
	ledger := alerts.NewLedger()
	aggregator := analytics.NewAggregator(store, ledger, reg.ids, analytics.WithDefaultWindow(cfg.AnalyticsWindow))
	service := ingest.NewService(store, engine, ledger, logger)

	if cfg.MQTTBroker != "" {
		sub := ingest.NewMQTTSubscriber(ingest.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			QoS:      byte(cfg.MQTTQoS),
		}, service, logger)
		if err := sub.Start(ctx); err != nil {
			return fmt.Errorf("start mqtt subscriber: %w", err)
		}
		defer sub.Stop()
		logger.WithFields(log.Fields{"broker": cfg.MQTTBroker, "topic": cfg.MQTTTopic}).Info("MQTT ingest enabled")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Ingest:                 service,
		Store:                  store,
		Ledger:                 ledger,
		Analytics:              aggregator,
		Vehicles:               reg.vehicles,
		Auth:                   authService,
		RateLimitRequests:      cfg.RateLimitRequests,
		RateLimitWindowSeconds: cfg.RateLimitWindowSeconds,
		Logger:                 logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{
			"port":     cfg.Port,
			"registry": cfg.RegistryBackend,
			"auth":     authService != nil,
		}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server shutdown complete")
	return nil
}

func buildRegistry(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (*registry, error) {
	switch cfg.RegistryBackend {
	case config.BackendMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("connect to MongoDB: %w", err)
		}
		logger.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
		store := &db.MongoVehicleStore{Collection: client.Database(cfg.MongoDB).Collection(cfg.MongoVehiclesCollection)}
		return &registry{
			ids:      store,
			vehicles: store,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(closeCtx); err != nil {
					logger.WithError(err).Warn("MongoDB disconnect failed")
				}
			},
		}, nil

	case config.BackendRedis:
		r, err := db.NewRedisVehicleRegistry(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisVehiclesKey)
		if err != nil {
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		if len(cfg.SeedVehicles) > 0 {
			added, err := r.Register(ctx, cfg.SeedVehicles...)
			if err != nil {
				_ = r.Close()
				return nil, fmt.Errorf("seed Redis registry: %w", err)
			}
			logger.WithField("added", added).Info("Seeded Redis vehicle registry")
		}
		logger.WithField("key", cfg.RedisVehiclesKey).Info("Connected to Redis")
		return &registry{
			ids: r,
			close: func() {
				if err := r.Close(); err != nil {
					logger.WithError(err).Warn("Redis close failed")
				}
			},
		}, nil

	default:
		mem := db.NewMemoryRegistry(cfg.SeedVehicles...)
		logger.WithField("vehicles", len(cfg.SeedVehicles)).Info("Using in-memory vehicle registry")
		return &registry{ids: mem, vehicles: mem, close: func() {}}, nil
	}
}

// buildAuth returns nil when authentication is disabled.
func buildAuth(cfg *config.Config, logger log.FieldLogger) (*auth.Service, error) {
	if !cfg.AuthEnabled {
		logger.Warn("Authentication disabled")
		return nil, nil
	}
	users, err := auth.ParseUsers(cfg.AuthUsers)
	if err != nil {
		return nil, fmt.Errorf("parse AUTH_USERS: %w", err)
	}
	if len(users) == 0 {
		logger.Warn("AUTH_USERS is empty, no client can obtain a token")
	}
	service, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry, users)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	return service, nil
}
