package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ukydev/fleet-telemetry/internal/metrics"
)

// RateLimiter is a sliding-window limiter keyed by client IP.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	requests  map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimiter allows limit requests per client in any window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:      limit,
		window:   window,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
}

// allow records a request from client and reports whether it is within the
// limit. When it is not, the returned duration is how long until the oldest
// request leaves the window.
func (l *RateLimiter) allow(client string) (bool, time.Duration) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := l.requests[client][:0]
	for _, ts := range l.requests[client] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.requests[client] = kept
		return false, kept[0].Sub(cutoff)
	}
	l.requests[client] = append(kept, now)
	return true, 0
}

// sweep drops clients with no request after cutoff. It runs at most once
// per window.
func (l *RateLimiter) sweep(cutoff time.Time) {
	for client, stamps := range l.requests {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.requests, client)
		}
	}
}

// Middleware answers 429 with a Retry-After header once a client exceeds
// the limit.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := l.allow(clientIP(r))
		if !ok {
			metrics.RateLimited.Inc()
			secs := int(retry.Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}
