package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_readings_ingested_total",
		Help: "Telemetry readings submitted, by outcome",
	}, []string{"result"})

	AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_alerts_raised_total",
		Help: "Alerts produced by the rule engine",
	}, []string{"kind", "severity"})

	AlertStatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_alert_status_updates_total",
		Help: "Alert status transitions, by target status",
	}, []string{"status"})

	OdometerAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_odometer_anomalies_total",
		Help: "Readings whose odometer went backwards",
	})

	MQTTMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_mqtt_messages_total",
		Help: "MQTT telemetry messages, by outcome",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"handler", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler", "method"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	})

	AnalyticsDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleet_analytics_duration_seconds",
		Help:    "Time spent computing an analytics report",
		Buckets: prometheus.DefBuckets,
	})
)

// Outcome labels for ReadingsIngested and MQTTMessages.
const (
	ResultOK             = "ok"
	ResultUnknownVehicle = "unknown_vehicle"
	ResultInvalid        = "invalid"
	ResultError          = "error"
)
