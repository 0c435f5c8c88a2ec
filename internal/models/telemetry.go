package models

import (
	"strings"
	"time"
)

// EngineStatus is the reported state of a vehicle's engine.
type EngineStatus string

const (
	EngineRunning EngineStatus = "running"
	EngineIdle    EngineStatus = "idle"
	EngineOff     EngineStatus = "off"
	EngineUnknown EngineStatus = "unknown"
)

// ParseEngineStatus maps free-form input to an EngineStatus. Empty or
// unrecognised values become EngineUnknown.
func ParseEngineStatus(s string) EngineStatus {
	switch EngineStatus(strings.ToLower(strings.TrimSpace(s))) {
	case EngineRunning:
		return EngineRunning
	case EngineIdle:
		return EngineIdle
	case EngineOff:
		return EngineOff
	default:
		return EngineUnknown
	}
}

// Reading is one telemetry sample as stored by the telemetry store.
// Timestamp is assigned by the server at ingestion and drives ordering and
// windowing; ClientTimestamp is whatever the device reported, if anything.
type Reading struct {
	VehicleID       string       `json:"vehicle_id"`
	Timestamp       time.Time    `json:"timestamp"`
	ClientTimestamp *time.Time   `json:"client_timestamp,omitempty"`
	Location        Location     `json:"location"`
	Speed           float64      `json:"speed"`
	FuelLevel       *float64     `json:"fuel_level,omitempty"`
	BatteryLevel    *float64     `json:"battery_level,omitempty"`
	EngineTemp      *float64     `json:"engine_temp,omitempty"`
	EngineStatus    EngineStatus `json:"engine_status"`
	Odometer        *float64     `json:"odometer,omitempty"`
	OdometerAnomaly bool         `json:"odometer_anomaly,omitempty"`
}

// TelemetryInput carries the client-supplied fields of a reading.
type TelemetryInput struct {
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Location     Location   `json:"location"`
	Speed        float64    `json:"speed"`
	FuelLevel    *float64   `json:"fuel_level,omitempty"`
	BatteryLevel *float64   `json:"battery_level,omitempty"`
	EngineTemp   *float64   `json:"engine_temp,omitempty"`
	EngineStatus string     `json:"engine_status,omitempty"`
	Odometer     *float64   `json:"odometer,omitempty"`
}

// BatchTelemetryItem is one entry of a batch submission.
type BatchTelemetryItem struct {
	VehicleID string `json:"vehicle_id"`
	TelemetryInput
}

// Float returns a pointer to v. Handy for optional reading fields.
func Float(v float64) *float64 {
	return &v
}
