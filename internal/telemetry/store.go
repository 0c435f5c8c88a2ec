// Package telemetry holds the in-memory, per-vehicle history of readings.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-telemetry/internal/models"
)

var (
	ErrUnknownVehicle = errors.New("unknown vehicle")
	ErrNoData         = errors.New("no telemetry for vehicle")
)

// Registry is the part of the vehicle registry the store depends on.
type Registry interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Page bounds a history query. Zero values mean unbounded.
type Page struct {
	Limit  int
	Offset int
}

// Store keeps readings per vehicle in ingestion order. Each vehicle has its
// own lock, so writers for different vehicles never contend; the map lock is
// only held to find or create a series.
type Store struct {
	registry Registry
	now      func() time.Time

	mu     sync.RWMutex
	series map[string]*series
}

type series struct {
	mu           sync.RWMutex
	readings     []models.Reading
	lastOdometer *float64
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of ingestion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store backed by the given registry.
func NewStore(registry Registry, opts ...Option) *Store {
	s := &Store{
		registry: registry,
		now:      time.Now,
		series:   make(map[string]*series),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Known returns ErrUnknownVehicle if the registry does not recognise the
// vehicle. Registry failures are returned wrapped.
func (s *Store) Known(ctx context.Context, vehicleID string) error {
	ok, err := s.registry.Exists(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("check vehicle %s: %w", vehicleID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	return nil
}

// Append validates the vehicle against the registry and stores a new reading
// stamped with the server clock. The stamp never goes below the vehicle's
// previous reading, so per-vehicle order is non-decreasing even if the clock
// steps back. A client-supplied timestamp is kept as ClientTimestamp only.
func (s *Store) Append(ctx context.Context, vehicleID string, in models.TelemetryInput) (models.Reading, error) {
	if err := s.Known(ctx, vehicleID); err != nil {
		return models.Reading{}, err
	}

	r := models.Reading{
		VehicleID:    vehicleID,
		Location:     in.Location,
		Speed:        in.Speed,
		FuelLevel:    clone(in.FuelLevel),
		BatteryLevel: clone(in.BatteryLevel),
		EngineTemp:   clone(in.EngineTemp),
		EngineStatus: models.ParseEngineStatus(in.EngineStatus),
		Odometer:     clone(in.Odometer),
	}
	if in.Timestamp != nil {
		ts := in.Timestamp.UTC()
		r.ClientTimestamp = &ts
	}

	ser := s.seriesFor(vehicleID, true)
	ser.mu.Lock()
	defer ser.mu.Unlock()

	now := s.now().UTC()
	if n := len(ser.readings); n > 0 && now.Before(ser.readings[n-1].Timestamp) {
		now = ser.readings[n-1].Timestamp
	}
	r.Timestamp = now

	if r.Odometer != nil {
		if ser.lastOdometer != nil && *r.Odometer < *ser.lastOdometer {
			r.OdometerAnomaly = true
		}
		ser.lastOdometer = clone(r.Odometer)
	}

	ser.readings = append(ser.readings, r)
	return r, nil
}

// History returns a vehicle's readings newest-first. A vehicle without
// readings yields an empty slice if the registry knows it and
// ErrUnknownVehicle otherwise.
func (s *Store) History(ctx context.Context, vehicleID string, page Page) ([]models.Reading, error) {
	ser := s.seriesFor(vehicleID, false)
	if ser == nil {
		if err := s.Known(ctx, vehicleID); err != nil {
			return nil, err
		}
		return []models.Reading{}, nil
	}

	ser.mu.RLock()
	defer ser.mu.RUnlock()

	n := len(ser.readings)
	offset := max(page.Offset, 0)
	if offset >= n {
		return []models.Reading{}, nil
	}
	count := n - offset
	if page.Limit > 0 && page.Limit < count {
		count = page.Limit
	}
	out := make([]models.Reading, 0, count)
	for i := n - 1 - offset; i >= 0 && len(out) < count; i-- {
		out = append(out, ser.readings[i])
	}
	return out, nil
}

// Latest returns the most recent reading for a vehicle, or ErrNoData. It
// does not consult the registry; use Known to tell an unknown vehicle from a
// silent one.
func (s *Store) Latest(vehicleID string) (models.Reading, error) {
	ser := s.seriesFor(vehicleID, false)
	if ser == nil {
		return models.Reading{}, fmt.Errorf("%w: %s", ErrNoData, vehicleID)
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()
	if len(ser.readings) == 0 {
		return models.Reading{}, fmt.Errorf("%w: %s", ErrNoData, vehicleID)
	}
	return ser.readings[len(ser.readings)-1], nil
}

// Since yields every reading with a timestamp at or after t, vehicle by
// vehicle in ascending time. Each call starts a fresh pass. A vehicle's
// in-window tail is copied under its read lock before being yielded.
func (s *Store) Since(t time.Time) iter.Seq2[string, models.Reading] {
	return func(yield func(string, models.Reading) bool) {
		for _, id := range s.Vehicles() {
			ser := s.seriesFor(id, false)
			if ser == nil {
				continue
			}
			for _, r := range ser.since(t) {
				if !yield(id, r) {
					return
				}
			}
		}
	}
}

// Vehicles returns the IDs of vehicles with at least one reading, sorted.
func (s *Store) Vehicles() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the total number of stored readings.
func (s *Store) Len() int {
	s.mu.RLock()
	all := make([]*series, 0, len(s.series))
	for _, ser := range s.series {
		all = append(all, ser)
	}
	s.mu.RUnlock()

	total := 0
	for _, ser := range all {
		ser.mu.RLock()
		total += len(ser.readings)
		ser.mu.RUnlock()
	}
	return total
}

func (s *Store) seriesFor(vehicleID string, create bool) *series {
	s.mu.RLock()
	ser, ok := s.series[vehicleID]
	s.mu.RUnlock()
	if ok || !create {
		return ser
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok = s.series[vehicleID]; ok {
		return ser
	}
	ser = &series{}
	s.series[vehicleID] = ser
	return ser
}

func (ser *series) since(t time.Time) []models.Reading {
	ser.mu.RLock()
	defer ser.mu.RUnlock()
	i := sort.Search(len(ser.readings), func(i int) bool {
		return !ser.readings[i].Timestamp.Before(t)
	})
	out := make([]models.Reading, len(ser.readings)-i)
	copy(out, ser.readings[i:])
	return out
}

func clone(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
