package models

import "time"

// AlertKind is the category of rule that produced an alert.
type AlertKind string

const (
	AlertSpeedViolation AlertKind = "speed_violation"
	AlertLowFuel        AlertKind = "low_fuel"
	AlertLowBattery     AlertKind = "low_battery"
	AlertHighEngineTemp AlertKind = "high_engine_temp"
)

// Severity is the priority tier of an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// AlertEvent is raised by the rule engine for a single reading.
type AlertEvent struct {
	ID        string      `json:"id"`
	VehicleID string      `json:"vehicle_id"`
	ReadingAt time.Time   `json:"reading_at"`
	Kind      AlertKind   `json:"kind"`
	Message   string      `json:"message"`
	Severity  Severity    `json:"severity"`
	Status    AlertStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsValidAlertKind checks if a kind is one the rule engine can produce
func IsValidAlertKind(k AlertKind) bool {
	switch k {
	case AlertSpeedViolation, AlertLowFuel, AlertLowBattery, AlertHighEngineTemp:
		return true
	default:
		return false
	}
}

// IsValidSeverity checks if a severity is valid
func IsValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// IsValidAlertStatus checks if a status is valid
func IsValidAlertStatus(s AlertStatus) bool {
	switch s {
	case AlertActive, AlertAcknowledged, AlertResolved:
		return true
	default:
		return false
	}
}
