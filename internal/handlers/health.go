package handlers

import (
	"net/http"
	"time"
)

// Health reports liveness along with store sizes.
type Health struct {
	started  time.Time
	readings func() int
	alerts   func() int
}

func NewHealth(readings, alerts func() int) *Health {
	return &Health{started: time.Now(), readings: readings, alerts: alerts}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"readings": h.readings(),
		"alerts":   h.alerts(),
	})
}
