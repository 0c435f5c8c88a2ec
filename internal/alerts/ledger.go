// Package alerts stores alert events and their status transitions.
package alerts

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-telemetry/internal/models"
)

var ErrNotFound = errors.New("alert not found")

// Filter selects alerts. Empty fields match everything; set fields are ANDed.
type Filter struct {
	VehicleID string
	Kind      models.AlertKind
	Severity  models.Severity
	Status    models.AlertStatus
}

func (f Filter) match(e *models.AlertEvent) bool {
	if f.VehicleID != "" && e.VehicleID != f.VehicleID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// Ledger keeps every alert for the life of the process. Alerts are never
// deleted; only their status changes.
type Ledger struct {
	mu     sync.RWMutex
	events []*models.AlertEvent
	byID   map[string]*models.AlertEvent
	now    func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		byID: make(map[string]*models.AlertEvent),
		now:  time.Now,
	}
}

// Record appends events in the order given.
func (l *Ledger) Record(events ...models.AlertEvent) {
	if len(events) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range events {
		ev := e
		l.events = append(l.events, &ev)
		l.byID[ev.ID] = &ev
	}
}

// List returns matching alerts newest-first by creation time. Alerts created
// at the same instant keep their insertion order.
func (l *Ledger) List(f Filter) []models.AlertEvent {
	l.mu.RLock()
	out := make([]models.AlertEvent, 0)
	for _, e := range l.events {
		if f.match(e) {
			out = append(out, *e)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Get returns a single alert.
func (l *Ledger) Get(id string) (models.AlertEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.byID[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *e, nil
}

// UpdateStatus moves an alert to any status. The ledger does not restrict
// transitions.
func (l *Ledger) UpdateStatus(id string, status models.AlertStatus) (models.AlertEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byID[id]
	if !ok {
		return models.AlertEvent{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.Status = status
	e.UpdatedAt = l.now().UTC()
	return *e, nil
}

// CreatedSince yields alerts created at or after t in insertion order. Each
// call takes a fresh snapshot.
func (l *Ledger) CreatedSince(t time.Time) iter.Seq[models.AlertEvent] {
	return func(yield func(models.AlertEvent) bool) {
		l.mu.RLock()
		var snapshot []models.AlertEvent
		for _, e := range l.events {
			if !e.CreatedAt.Before(t) {
				snapshot = append(snapshot, *e)
			}
		}
		l.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of recorded alerts.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
