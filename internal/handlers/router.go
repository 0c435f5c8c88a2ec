package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/alerts"
	"github.com/ukydev/fleet-telemetry/internal/analytics"
	"github.com/ukydev/fleet-telemetry/internal/auth"
	"github.com/ukydev/fleet-telemetry/internal/db"
	"github.com/ukydev/fleet-telemetry/internal/ingest"
	"github.com/ukydev/fleet-telemetry/internal/middleware"
	"github.com/ukydev/fleet-telemetry/internal/models"
	"github.com/ukydev/fleet-telemetry/internal/telemetry"
)

// RouterConfig collects everything the HTTP API is built from.
type RouterConfig struct {
	Ingest    *ingest.Service
	Store     *telemetry.Store
	Ledger    *alerts.Ledger
	Analytics *analytics.Aggregator

	// Vehicles is nil for registries that cannot manage records, which
	// leaves the vehicle routes unregistered.
	Vehicles db.VehicleStore

	// Auth is nil when authentication is disabled.
	Auth *auth.Service

	RateLimitRequests      int
	RateLimitWindowSeconds int

	Logger log.FieldLogger
}

// NewRouter wires handlers and middleware. Each route is instrumented and,
// with auth enabled, guarded by a permission.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	mux := http.NewServeMux()
	var authMW *middleware.AuthMiddleware
	if cfg.Auth != nil {
		authMW = middleware.NewAuthMiddleware(cfg.Auth)
	}

	handle := func(pattern, name, permission string, h http.HandlerFunc) {
		var handler http.Handler = h
		if authMW != nil && permission != "" {
			handler = authMW.RequirePermission(permission)(handler)
		}
		mux.Handle(pattern, middleware.Instrument(name, handler))
	}

	telemetryH := NewTelemetryHandler(cfg.Ingest, cfg.Store, logger)
	handle("POST /api/telemetry:batch", "telemetry_batch", models.PermIngestTelemetry, telemetryH.IngestBatch)
	handle("POST /api/telemetry/{vehicleID}", "telemetry_ingest", models.PermIngestTelemetry, telemetryH.Ingest)
	handle("GET /api/telemetry/{vehicleID}/history", "telemetry_history", models.PermViewTelemetry, telemetryH.History)
	handle("GET /api/telemetry/{vehicleID}/latest", "telemetry_latest", models.PermViewTelemetry, telemetryH.Latest)

	alertH := NewAlertHandler(cfg.Ledger, logger)
	handle("GET /api/alerts", "alerts_list", models.PermViewAlerts, alertH.List)
	handle("GET /api/alerts/{id}", "alerts_get", models.PermViewAlerts, alertH.Get)
	handle("PATCH /api/alerts/{id}/status", "alerts_update", models.PermUpdateAlerts, alertH.UpdateStatus)
	handle("PUT /api/alerts/{id}/status", "alerts_update", models.PermUpdateAlerts, alertH.UpdateStatus)

	analyticsH := NewAnalyticsHandler(cfg.Analytics, logger)
	handle("GET /api/analytics", "analytics", models.PermViewAnalytics, analyticsH.Report)

	if cfg.Vehicles != nil {
		vehicleH := NewVehicleHandler(cfg.Vehicles, logger)
		handle("POST /api/vehicles", "vehicles_create", models.PermManageVehicles, vehicleH.Create)
		handle("GET /api/vehicles", "vehicles_list", models.PermViewVehicles, vehicleH.List)
		handle("GET /api/vehicles/{id}", "vehicles_get", models.PermViewVehicles, vehicleH.Get)
		handle("PATCH /api/vehicles/{id}", "vehicles_update", models.PermManageVehicles, vehicleH.Update)
		handle("DELETE /api/vehicles/{id}", "vehicles_delete", models.PermManageVehicles, vehicleH.Delete)
	} else {
		logger.Info("Vehicle registry is read-only, vehicle routes disabled")
	}

	if cfg.Auth != nil {
		handle("POST /api/auth/token", "auth_token", "", NewAuthHandler(cfg.Auth, logger).Token)
	}

	mux.Handle("GET /health", middleware.Instrument("health", NewHealth(cfg.Store.Len, cfg.Ledger.Len)))
	mux.Handle("GET /metrics", promhttp.Handler())

	var root http.Handler = mux
	if authMW != nil {
		root = authMW.Authenticate(root)
	}
	if cfg.RateLimitRequests > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, time.Duration(cfg.RateLimitWindowSeconds)*time.Second)
		root = limiter.Middleware(root)
	}
	return middleware.LogRequests(logger)(root)
}
