package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/ingest"
	"github.com/ukydev/fleet-telemetry/internal/models"
	"github.com/ukydev/fleet-telemetry/internal/telemetry"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	maxBatchSize        = 1000
)

// TelemetryHandler serves ingestion and reading queries.
type TelemetryHandler struct {
	service *ingest.Service
	store   *telemetry.Store
	log     log.FieldLogger
}

// NewTelemetryHandler creates a new telemetry handler
func NewTelemetryHandler(service *ingest.Service, store *telemetry.Store, logger log.FieldLogger) *TelemetryHandler {
	return &TelemetryHandler{service: service, store: store, log: logger}
}

// Ingest handles POST /api/telemetry/{vehicleID}
func (h *TelemetryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("vehicleID")

	var in models.TelemetryInput
	if err := decodeJSON(w, r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := in.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.Ingest(r.Context(), vehicleID, in)
	if err != nil {
		h.ingestError(w, vehicleID, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// IngestBatch handles POST /api/telemetry:batch. The body is a JSON array of
// readings, each carrying its vehicle_id.
func (h *TelemetryHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var items []models.BatchTelemetryItem
	if err := decodeJSON(w, r, &items); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "Batch must contain at least one reading", http.StatusBadRequest)
		return
	}
	if len(items) > maxBatchSize {
		http.Error(w, fmt.Sprintf("Batch exceeds %d readings", maxBatchSize), http.StatusBadRequest)
		return
	}
	for i, item := range items {
		if item.VehicleID == "" {
			http.Error(w, fmt.Sprintf("item %d: vehicle_id is required", i), http.StatusBadRequest)
			return
		}
		if err := item.Validate(); err != nil {
			http.Error(w, fmt.Sprintf("item %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	res := h.service.IngestBatch(r.Context(), items)
	for _, item := range res.Items {
		if err := item.Err(); err != nil && !errors.Is(err, telemetry.ErrUnknownVehicle) {
			h.log.WithError(err).WithField("vehicle_id", item.VehicleID).Error("Batch item failed")
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// History handles GET /api/telemetry/{vehicleID}/history?limit=&offset=
func (h *TelemetryHandler) History(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("vehicleID")

	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		http.Error(w, fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit), http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		http.Error(w, "offset must be a non-negative integer", http.StatusBadRequest)
		return
	}

	readings, err := h.store.History(r.Context(), vehicleID, telemetry.Page{Limit: limit, Offset: offset})
	if err != nil {
		h.ingestError(w, vehicleID, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// Latest handles GET /api/telemetry/{vehicleID}/latest. No content means a
// registered vehicle has not reported yet.
func (h *TelemetryHandler) Latest(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.PathValue("vehicleID")
	reading, err := h.store.Latest(vehicleID)
	if errors.Is(err, telemetry.ErrNoData) {
		if err := h.store.Known(r.Context(), vehicleID); err != nil {
			h.ingestError(w, vehicleID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load telemetry", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (h *TelemetryHandler) ingestError(w http.ResponseWriter, vehicleID string, err error) {
	if errors.Is(err, telemetry.ErrUnknownVehicle) {
		http.Error(w, "Unknown vehicle: "+vehicleID, http.StatusNotFound)
		return
	}
	h.log.WithError(err).WithField("vehicle_id", vehicleID).Error("Telemetry request failed")
	http.Error(w, "Vehicle registry unavailable", http.StatusInternalServerError)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
