package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-telemetry/internal/metrics"
)

func TestInstrument(t *testing.T) {
	counter := metrics.HTTPRequests.WithLabelValues("instrument-test", "POST", "418")
	before := testutil.ToFloat64(counter)

	handler := Instrument("instrument-test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // second call is ignored
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/x", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestInstrument_DefaultStatus(t *testing.T) {
	counter := metrics.HTTPRequests.WithLabelValues("instrument-default", "GET", "200")
	before := testutil.ToFloat64(counter)

	handler := Instrument("instrument-default", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestLogRequests(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	tests := []struct {
		name   string
		status int
		level  log.Level
	}{
		{"ok", http.StatusOK, log.DebugLevel},
		{"not found", http.StatusNotFound, log.DebugLevel},
		{"server error", http.StatusInternalServerError, log.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			handler := LogRequests(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/alerts", nil))

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.status, entry.Data["status"])
			assert.Equal(t, "/api/alerts", entry.Data["path"])
		})
	}
}
