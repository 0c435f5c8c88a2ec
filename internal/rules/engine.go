// Package rules turns a single reading into the alerts it triggers.
package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ukydev/fleet-telemetry/internal/models"
)

const (
	DefaultSpeedLimit              = 80.0
	DefaultLowFuelThreshold        = 15.0
	DefaultLowBatteryThreshold     = 15.0
	DefaultHighEngineTempThreshold = 110.0
)

// Config holds the rule thresholds. A zero field means "use the default",
// so a zero threshold never disables its rule.
type Config struct {
	SpeedLimit              float64
	LowFuelThreshold        float64
	LowBatteryThreshold     float64
	HighEngineTempThreshold float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		SpeedLimit:              DefaultSpeedLimit,
		LowFuelThreshold:        DefaultLowFuelThreshold,
		LowBatteryThreshold:     DefaultLowBatteryThreshold,
		HighEngineTempThreshold: DefaultHighEngineTempThreshold,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SpeedLimit == 0 {
		c.SpeedLimit = d.SpeedLimit
	}
	if c.LowFuelThreshold == 0 {
		c.LowFuelThreshold = d.LowFuelThreshold
	}
	if c.LowBatteryThreshold == 0 {
		c.LowBatteryThreshold = d.LowBatteryThreshold
	}
	if c.HighEngineTempThreshold == 0 {
		c.HighEngineTempThreshold = d.HighEngineTempThreshold
	}
	return c
}

// Rule fires when Check reports true; the returned message describes the violation.
type Rule struct {
	Kind     models.AlertKind
	Severity models.Severity
	Check    func(r models.Reading) (string, bool)
}

// Engine evaluates readings against a fixed rule set. It keeps no state
// between calls.
type Engine struct {
	cfg   Config
	rules []Rule
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now as the source of alert creation times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine with the standard rules in evaluation order:
// speed, fuel, battery, engine temperature.
func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{cfg: cfg, now: time.Now}
	e.rules = []Rule{
		{
			Kind:     models.AlertSpeedViolation,
			Severity: models.SeverityHigh,
			Check: func(r models.Reading) (string, bool) {
				if r.Speed <= cfg.SpeedLimit {
					return "", false
				}
				return fmt.Sprintf("Speed %.1f km/h exceeds limit of %.1f km/h", r.Speed, cfg.SpeedLimit), true
			},
		},
		{
			Kind:     models.AlertLowFuel,
			Severity: models.SeverityMedium,
			Check: func(r models.Reading) (string, bool) {
				if r.FuelLevel == nil || *r.FuelLevel >= cfg.LowFuelThreshold {
					return "", false
				}
				return fmt.Sprintf("Fuel level %.1f%% is below %.1f%%", *r.FuelLevel, cfg.LowFuelThreshold), true
			},
		},
		{
			Kind:     models.AlertLowBattery,
			Severity: models.SeverityMedium,
			Check: func(r models.Reading) (string, bool) {
				if r.BatteryLevel == nil || *r.BatteryLevel >= cfg.LowBatteryThreshold {
					return "", false
				}
				return fmt.Sprintf("Battery level %.1f%% is below %.1f%%", *r.BatteryLevel, cfg.LowBatteryThreshold), true
			},
		},
		{
			Kind:     models.AlertHighEngineTemp,
			Severity: models.SeverityHigh,
			Check: func(r models.Reading) (string, bool) {
				if r.EngineTemp == nil || *r.EngineTemp <= cfg.HighEngineTempThreshold {
					return "", false
				}
				return fmt.Sprintf("Engine temperature %.1f°C exceeds %.1f°C", *r.EngineTemp, cfg.HighEngineTempThreshold), true
			},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate returns one active alert per rule the reading violates, in rule
// order. Missing optional fields never trigger a rule.
func (e *Engine) Evaluate(r models.Reading) []models.AlertEvent {
	var events []models.AlertEvent
	for _, rule := range e.rules {
		msg, fired := rule.Check(r)
		if !fired {
			continue
		}
		now := e.now().UTC()
		events = append(events, models.AlertEvent{
			ID:        uuid.New().String(),
			VehicleID: r.VehicleID,
			ReadingAt: r.Timestamp,
			Kind:      rule.Kind,
			Message:   msg,
			Severity:  rule.Severity,
			Status:    models.AlertActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return events
}
