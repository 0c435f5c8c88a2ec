package handlers

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/analytics"
)

// AnalyticsHandler serves fleet-wide statistics.
type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	log        log.FieldLogger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(aggregator *analytics.Aggregator, logger log.FieldLogger) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator, log: logger}
}

// Report handles GET /api/analytics?window=6h. Without a window the
// configured default applies.
func (h *AnalyticsHandler) Report(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "window must be a positive duration such as 30m or 24h", http.StatusBadRequest)
			return
		}
		window = d
	}

	report, err := h.aggregator.Report(r.Context(), window)
	if err != nil {
		h.log.WithError(err).Error("Failed to compute analytics")
		http.Error(w, "Failed to compute analytics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
