package handlers

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/alerts"
	"github.com/ukydev/fleet-telemetry/internal/metrics"
	"github.com/ukydev/fleet-telemetry/internal/middleware"
	"github.com/ukydev/fleet-telemetry/internal/models"
)

// AlertHandler serves the alert ledger.
type AlertHandler struct {
	ledger *alerts.Ledger
	log    log.FieldLogger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(ledger *alerts.Ledger, logger log.FieldLogger) *AlertHandler {
	return &AlertHandler{ledger: ledger, log: logger}
}

// StatusUpdate is the body of an alert status change.
type StatusUpdate struct {
	Status models.AlertStatus `json:"status"`
}

// List handles GET /api/alerts?vehicle_id=&kind=&severity=&status=
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := alerts.Filter{
		VehicleID: q.Get("vehicle_id"),
		Kind:      models.AlertKind(q.Get("kind")),
		Severity:  models.Severity(q.Get("severity")),
		Status:    models.AlertStatus(q.Get("status")),
	}
	if f.Kind != "" && !models.IsValidAlertKind(f.Kind) {
		http.Error(w, "Invalid alert kind", http.StatusBadRequest)
		return
	}
	if f.Severity != "" && !models.IsValidSeverity(f.Severity) {
		http.Error(w, "Invalid severity", http.StatusBadRequest)
		return
	}
	if f.Status != "" && !models.IsValidAlertStatus(f.Status) {
		http.Error(w, "Invalid alert status", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.ledger.List(f))
}

// Get handles GET /api/alerts/{id}
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert, err := h.ledger.Get(r.PathValue("id"))
	if errors.Is(err, alerts.ErrNotFound) {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load alert", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// UpdateStatus handles PATCH and PUT /api/alerts/{id}/status
func (h *AlertHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !models.IsValidAlertStatus(req.Status) {
		http.Error(w, "Invalid alert status", http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	alert, err := h.ledger.UpdateStatus(id, req.Status)
	if errors.Is(err, alerts.ErrNotFound) {
		http.Error(w, "Alert not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to update alert", http.StatusInternalServerError)
		return
	}

	metrics.AlertStatusUpdates.WithLabelValues(string(req.Status)).Inc()
	entry := h.log.WithFields(log.Fields{"alert_id": id, "status": req.Status})
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		entry = entry.WithField("user", claims.Username)
	}
	entry.Info("Alert status updated")

	writeJSON(w, http.StatusOK, alert)
}
