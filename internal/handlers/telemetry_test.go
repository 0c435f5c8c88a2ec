package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-telemetry/internal/alerts"
	"github.com/ukydev/fleet-telemetry/internal/analytics"
	"github.com/ukydev/fleet-telemetry/internal/ingest"
	"github.com/ukydev/fleet-telemetry/internal/models"
	"github.com/ukydev/fleet-telemetry/internal/rules"
	"github.com/ukydev/fleet-telemetry/internal/telemetry"
)

func TestTelemetryHandler_Ingest(t *testing.T) {
	api := newTestAPI(t, []string{"truck-1"})

	w := api.do(t, "POST", "/api/telemetry/truck-1",
		`{"speed": 96.5, "fuel_level": 40, "engine_status": "RUNNING", "location": {"lat": 40.7, "lon": -74.0}, "timestamp": "2026-01-02T03:04:05Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode[ingest.Result](t, w)
	assert.Equal(t, "truck-1", res.Reading.VehicleID)
	assert.Equal(t, models.EngineRunning, res.Reading.EngineStatus)
	require.NotNil(t, res.Reading.ClientTimestamp)
	assert.Equal(t, 2026, res.Reading.ClientTimestamp.Year())
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, models.AlertSpeedViolation, res.Alerts[0].Kind)
	assert.Equal(t, 1, api.ledger.Len())
}

func TestTelemetryHandler_IngestRejects(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown vehicle", "/api/telemetry/ghost", `{"speed": 10}`, http.StatusNotFound},
		{"empty body", "/api/telemetry/truck-1", ``, http.StatusBadRequest},
		{"invalid json", "/api/telemetry/truck-1", `{"speed":`, http.StatusBadRequest},
		{"negative speed", "/api/telemetry/truck-1", `{"speed": -1}`, http.StatusBadRequest},
		{"fuel over 100", "/api/telemetry/truck-1", `{"fuel_level": 101}`, http.StatusBadRequest},
		{"battery below 0", "/api/telemetry/truck-1", `{"battery_level": -0.5}`, http.StatusBadRequest},
		{"latitude", "/api/telemetry/truck-1", `{"location": {"lat": 91, "lon": 0}}`, http.StatusBadRequest},
		{"longitude", "/api/telemetry/truck-1", `{"location": {"lat": 0, "lon": -181}}`, http.StatusBadRequest},
		{"negative odometer", "/api/telemetry/truck-1", `{"odometer": -5}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, []string{"truck-1"})
			w := api.do(t, "POST", tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Zero(t, api.store.Len())
		})
	}
}

func TestTelemetryHandler_IngestRegistryFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	registry := new(MockRegistry)
	registry.On("Exists", mock.Anything, "truck-1").Return(false, errors.New("connection refused"))

	store := telemetry.NewStore(registry)
	ledger := alerts.NewLedger()
	handler := NewRouter(RouterConfig{
		Ingest:    ingest.NewService(store, rules.NewEngine(rules.Config{}), ledger, logger),
		Store:     store,
		Ledger:    ledger,
		Analytics: analytics.NewAggregator(store, ledger, registry),
		Logger:    logger,
	})
	api := &testAPI{handler: handler, store: store, ledger: ledger}

	w := api.do(t, "POST", "/api/telemetry/truck-1", `{"speed": 10}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	require.NotNil(t, hook.LastEntry())
	registry.AssertExpectations(t)
}

func TestTelemetryHandler_IngestBatch(t *testing.T) {
	api := newTestAPI(t, []string{"a", "b"})

	w := api.do(t, "POST", "/api/telemetry:batch", `[
		{"vehicle_id": "a", "speed": 120},
		{"vehicle_id": "ghost", "speed": 120},
		{"vehicle_id": "b", "fuel_level": 3}
	]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[ingest.BatchResult](t, w)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 3)
	assert.Empty(t, res.Items[0].Error)
	assert.Contains(t, res.Items[1].Error, "unknown vehicle")
	assert.Nil(t, res.Items[1].Reading)
	require.Len(t, res.Alerts, 2)
	assert.Equal(t, "a", res.Alerts[0].VehicleID)
	assert.Equal(t, "b", res.Alerts[1].VehicleID)
}

func TestTelemetryHandler_VehicleNamedBatch(t *testing.T) {
	api := newTestAPI(t, []string{"batch"})

	w := api.do(t, "POST", "/api/telemetry/batch", `{"speed": 42}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[ingest.Result](t, w)
	assert.Equal(t, "batch", res.Reading.VehicleID)
	assert.Equal(t, 42.0, res.Reading.Speed)
}

func TestTelemetryHandler_IngestBatchRejects(t *testing.T) {
	tooMany := "[" + strings.TrimSuffix(strings.Repeat(`{"vehicle_id": "a"},`, maxBatchSize+1), ",") + "]"

	tests := []struct {
		name string
		body string
	}{
		{"not an array", `{"vehicle_id": "a"}`},
		{"empty", `[]`},
		{"missing vehicle id", `[{"vehicle_id": "a"}, {"speed": 3}]`},
		{"invalid item", `[{"vehicle_id": "a", "fuel_level": 300}]`},
		{"too many", tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, []string{"a"})
			w := api.do(t, "POST", "/api/telemetry:batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, api.store.Len(), "a rejected batch stores nothing")
		})
	}
}

func TestTelemetryHandler_History(t *testing.T) {
	api := newTestAPI(t, []string{"truck-1", "idle"})
	for i := 1; i <= 5; i++ {
		w := api.do(t, "POST", "/api/telemetry/truck-1", fmt.Sprintf(`{"speed": %d}`, i))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	t.Run("newest first", func(t *testing.T) {
		w := api.do(t, "GET", "/api/telemetry/truck-1/history", "")
		require.Equal(t, http.StatusOK, w.Code)
		readings := decode[[]models.Reading](t, w)
		require.Len(t, readings, 5)
		assert.Equal(t, 5.0, readings[0].Speed)
		assert.Equal(t, 1.0, readings[4].Speed)
	})

	t.Run("limit and offset", func(t *testing.T) {
		w := api.do(t, "GET", "/api/telemetry/truck-1/history?limit=2&offset=1", "")
		require.Equal(t, http.StatusOK, w.Code)
		readings := decode[[]models.Reading](t, w)
		require.Len(t, readings, 2)
		assert.Equal(t, 4.0, readings[0].Speed)
		assert.Equal(t, 3.0, readings[1].Speed)
	})

	t.Run("known vehicle without data", func(t *testing.T) {
		w := api.do(t, "GET", "/api/telemetry/idle/history", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("unknown vehicle", func(t *testing.T) {
		w := api.do(t, "GET", "/api/telemetry/ghost/history", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	for _, q := range []string{"limit=0", "limit=abc", "limit=5000", "offset=-1", "offset=x"} {
		t.Run("bad query "+q, func(t *testing.T) {
			w := api.do(t, "GET", "/api/telemetry/truck-1/history?"+q, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTelemetryHandler_Latest(t *testing.T) {
	api := newTestAPI(t, []string{"truck-1"})

	w := api.do(t, "GET", "/api/telemetry/truck-1/latest", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	api.do(t, "POST", "/api/telemetry/truck-1", `{"speed": 10}`)
	api.do(t, "POST", "/api/telemetry/truck-1", `{"speed": 20, "odometer": 12.5}`)

	w = api.do(t, "GET", "/api/telemetry/truck-1/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	latest := decode[models.Reading](t, w)
	assert.Equal(t, 20.0, latest.Speed)
	require.NotNil(t, latest.Odometer)
	assert.Equal(t, 12.5, *latest.Odometer)

	w = api.do(t, "GET", "/api/telemetry/ghost/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Unknown vehicle: ghost")
}
