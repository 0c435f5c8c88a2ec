package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/ukydev/fleet-telemetry/internal/metrics"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	calls := 0
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/alerts", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	before := testutil.ToFloat64(metrics.RateLimited)

	assert.Equal(t, http.StatusOK, send("192.168.1.1:1000").Code)
	now = now.Add(20 * time.Second)
	assert.Equal(t, http.StatusOK, send("192.168.1.1:1001").Code)

	w := send("192.168.1.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "40", w.Header().Get("Retry-After"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimited)-before)

	t.Run("other clients are independent", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, send("192.168.1.2:1000").Code)
	})

	t.Run("oldest request leaves the window", func(t *testing.T) {
		now = now.Add(41 * time.Second)
		assert.Equal(t, http.StatusOK, send("192.168.1.1:1003").Code)
		assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1:1004").Code)
	})
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(5, time.Minute)
	limiter.now = func() time.Time { return now }
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := range 100 {
		req := httptest.NewRequest("GET", "/api/alerts", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Len(t, limiter.requests, 100)

	now = now.Add(2 * time.Minute)
	req := httptest.NewRequest("GET", "/api/alerts", nil)
	req.RemoteAddr = "192.168.1.1:1000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, limiter.requests, 1)
	assert.Contains(t, limiter.requests, "192.168.1.1")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.1")
	assert.Equal(t, "10.0.0.1", clientIP(req))
}
