// Package analytics computes fleet-wide statistics over a trailing window.
package analytics

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/ukydev/fleet-telemetry/internal/metrics"
	"github.com/ukydev/fleet-telemetry/internal/models"
)

const DefaultWindow = 24 * time.Hour

// ReadingSource yields readings at or after a point in time, grouped by
// vehicle in ascending time order.
type ReadingSource interface {
	Since(t time.Time) iter.Seq2[string, models.Reading]
}

// AlertSource yields alerts created at or after a point in time.
type AlertSource interface {
	CreatedSince(t time.Time) iter.Seq[models.AlertEvent]
}

// VehicleLister enumerates the registered fleet.
type VehicleLister interface {
	AllVehicleIDs(ctx context.Context) ([]string, error)
}

// ActivityCount splits the registered fleet by whether each vehicle reported
// inside the window.
type ActivityCount struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// LevelAverages holds mean fuel and battery levels. A nil average means no
// vehicle reported that level in the window.
type LevelAverages struct {
	AvgFuelLevel    *float64 `json:"avg_fuel_level"`
	AvgBatteryLevel *float64 `json:"avg_battery_level"`
	FuelVehicles    int      `json:"fuel_vehicles"`
	BatteryVehicles int      `json:"battery_vehicles"`
}

// DistanceSummary is odometer-derived distance. Backwards odometer steps are
// excluded and counted in Anomalies.
type DistanceSummary struct {
	Total      float64            `json:"total"`
	PerVehicle map[string]float64 `json:"per_vehicle"`
	Anomalies  int                `json:"anomalies"`
}

// AlertSummary counts alerts created in the window.
type AlertSummary struct {
	Total      int                      `json:"total"`
	ByKind     map[models.AlertKind]int `json:"by_kind"`
	BySeverity map[models.Severity]int  `json:"by_severity"`
}

// Report bundles all statistics for one window.
type Report struct {
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Window      string          `json:"window"`
	Activity    ActivityCount   `json:"activity"`
	Levels      LevelAverages   `json:"levels"`
	Distance    DistanceSummary `json:"distance"`
	Alerts      AlertSummary    `json:"alerts"`
}

// Aggregator reads from the telemetry store and alert ledger; it never
// writes to either.
type Aggregator struct {
	readings ReadingSource
	alerts   AlertSource
	vehicles VehicleLister
	window   time.Duration
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now as the end of every window.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithDefaultWindow sets the window used when callers pass zero.
func WithDefaultWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

func NewAggregator(readings ReadingSource, alerts AlertSource, vehicles VehicleLister, opts ...Option) *Aggregator {
	a := &Aggregator{
		readings: readings,
		alerts:   alerts,
		vehicles: vehicles,
		window:   DefaultWindow,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultWindow returns the window used for non-positive overrides.
func (a *Aggregator) DefaultWindow() time.Duration {
	return a.window
}

func (a *Aggregator) bounds(window time.Duration) (time.Time, time.Time) {
	if window <= 0 {
		window = a.window
	}
	end := a.now().UTC()
	return end.Add(-window), end
}

// ActiveInactive counts registered vehicles with and without a reading in
// the window. Vehicles that report but are no longer registered are ignored.
func (a *Aggregator) ActiveInactive(ctx context.Context, window time.Duration) (ActivityCount, error) {
	start, _ := a.bounds(window)
	return a.activity(ctx, start)
}

func (a *Aggregator) activity(ctx context.Context, start time.Time) (ActivityCount, error) {
	ids, err := a.vehicles.AllVehicleIDs(ctx)
	if err != nil {
		return ActivityCount{}, fmt.Errorf("list vehicles: %w", err)
	}

	reported := make(map[string]struct{})
	for id := range a.readings.Since(start) {
		reported[id] = struct{}{}
	}

	c := ActivityCount{Total: len(ids)}
	for _, id := range ids {
		if _, ok := reported[id]; ok {
			c.Active++
		}
	}
	c.Inactive = c.Total - c.Active
	return c, nil
}

// AverageFuelAndBattery averages the latest in-window fuel and battery level
// of each vehicle. Fuel and battery are tracked independently, so a vehicle's
// latest fuel value may come from a different reading than its battery value.
func (a *Aggregator) AverageFuelAndBattery(window time.Duration) LevelAverages {
	start, _ := a.bounds(window)
	return a.levels(start)
}

func (a *Aggregator) levels(start time.Time) LevelAverages {
	fuel := make(map[string]float64)
	battery := make(map[string]float64)
	for id, r := range a.readings.Since(start) {
		if r.FuelLevel != nil {
			fuel[id] = *r.FuelLevel
		}
		if r.BatteryLevel != nil {
			battery[id] = *r.BatteryLevel
		}
	}
	return LevelAverages{
		AvgFuelLevel:    mean(fuel),
		AvgBatteryLevel: mean(battery),
		FuelVehicles:    len(fuel),
		BatteryVehicles: len(battery),
	}
}

// TotalDistance sums positive odometer deltas between consecutive in-window
// readings of each vehicle. Readings without an odometer are skipped.
func (a *Aggregator) TotalDistance(window time.Duration) DistanceSummary {
	start, _ := a.bounds(window)
	return a.distance(start)
}

func (a *Aggregator) distance(start time.Time) DistanceSummary {
	s := DistanceSummary{PerVehicle: make(map[string]float64)}
	last := make(map[string]float64)
	for id, r := range a.readings.Since(start) {
		if r.Odometer == nil {
			continue
		}
		odo := *r.Odometer
		prev, seen := last[id]
		last[id] = odo
		if !seen {
			s.PerVehicle[id] = 0
			continue
		}
		delta := odo - prev
		if delta < 0 {
			s.Anomalies++
			continue
		}
		s.PerVehicle[id] += delta
		s.Total += delta
	}
	return s
}

// AlertSummary counts alerts created in the window by kind and by severity.
func (a *Aggregator) AlertSummary(window time.Duration) AlertSummary {
	start, _ := a.bounds(window)
	return a.alertSummary(start)
}

func (a *Aggregator) alertSummary(start time.Time) AlertSummary {
	s := AlertSummary{
		ByKind:     make(map[models.AlertKind]int),
		BySeverity: make(map[models.Severity]int),
	}
	for e := range a.alerts.CreatedSince(start) {
		s.Total++
		s.ByKind[e.Kind]++
		s.BySeverity[e.Severity]++
	}
	return s
}

// Report computes every statistic against the same window bounds.
func (a *Aggregator) Report(ctx context.Context, window time.Duration) (Report, error) {
	started := time.Now()
	defer func() { metrics.AnalyticsDuration.Observe(time.Since(started).Seconds()) }()

	start, end := a.bounds(window)
	activity, err := a.activity(ctx, start)
	if err != nil {
		return Report{}, err
	}
	return Report{
		WindowStart: start,
		WindowEnd:   end,
		Window:      end.Sub(start).String(),
		Activity:    activity,
		Levels:      a.levels(start),
		Distance:    a.distance(start),
		Alerts:      a.alertSummary(start),
	}, nil
}

func mean(values map[string]float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	return &avg
}
