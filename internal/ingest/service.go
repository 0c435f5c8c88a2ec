// Package ingest turns submitted telemetry into stored readings and alerts.
// HTTP handlers and the MQTT subscriber both go through Service.
package ingest

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/alerts"
	"github.com/ukydev/fleet-telemetry/internal/metrics"
	"github.com/ukydev/fleet-telemetry/internal/models"
	"github.com/ukydev/fleet-telemetry/internal/rules"
	"github.com/ukydev/fleet-telemetry/internal/telemetry"
)

// Result is the outcome of ingesting one reading.
type Result struct {
	Reading models.Reading      `json:"reading"`
	Alerts  []models.AlertEvent `json:"alerts"`
}

// ItemResult reports one entry of a batch. Error is empty on success.
type ItemResult struct {
	Index     int             `json:"index"`
	VehicleID string          `json:"vehicle_id"`
	Reading   *models.Reading `json:"reading,omitempty"`
	Error     string          `json:"error,omitempty"`

	err error
}

// Err returns the underlying error of a failed item.
func (r ItemResult) Err() error {
	return r.err
}

// BatchResult reports a batch in submission order. Alerts from all
// successful items are flattened into one list.
type BatchResult struct {
	Items     []ItemResult        `json:"items"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Alerts    []models.AlertEvent `json:"alerts"`
}

// Service stores a reading, evaluates the rules against it and records any
// alerts in the ledger.
type Service struct {
	store  *telemetry.Store
	engine *rules.Engine
	ledger *alerts.Ledger
	log    log.FieldLogger
}

func NewService(store *telemetry.Store, engine *rules.Engine, ledger *alerts.Ledger, logger log.FieldLogger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{
		store:  store,
		engine: engine,
		ledger: ledger,
		log:    logger,
	}
}

// Ingest appends one reading. Unknown vehicles fail with
// telemetry.ErrUnknownVehicle and leave the store and ledger untouched.
func (s *Service) Ingest(ctx context.Context, vehicleID string, in models.TelemetryInput) (Result, error) {
	reading, err := s.store.Append(ctx, vehicleID, in)
	if err != nil {
		metrics.ReadingsIngested.WithLabelValues(resultLabel(err)).Inc()
		return Result{}, err
	}
	metrics.ReadingsIngested.WithLabelValues(metrics.ResultOK).Inc()

	if reading.OdometerAnomaly {
		metrics.OdometerAnomalies.Inc()
		s.log.WithFields(log.Fields{
			"vehicle_id": vehicleID,
			"odometer":   *reading.Odometer,
			"timestamp":  reading.Timestamp,
		}).Warn("Odometer went backwards")
	}

	events := s.engine.Evaluate(reading)
	if events == nil {
		events = []models.AlertEvent{}
	}
	if len(events) > 0 {
		s.ledger.Record(events...)
		for _, e := range events {
			metrics.AlertsRaised.WithLabelValues(string(e.Kind), string(e.Severity)).Inc()
			s.log.WithFields(log.Fields{
				"vehicle_id": vehicleID,
				"alert_id":   e.ID,
				"kind":       e.Kind,
				"severity":   e.Severity,
			}).Info(e.Message)
		}
	}
	return Result{Reading: reading, Alerts: events}, nil
}

// IngestBatch ingests items in order. A failing item is reported and does
// not stop the rest of the batch.
func (s *Service) IngestBatch(ctx context.Context, items []models.BatchTelemetryItem) BatchResult {
	out := BatchResult{
		Items:  make([]ItemResult, 0, len(items)),
		Alerts: []models.AlertEvent{},
	}
	for i, item := range items {
		res := ItemResult{Index: i, VehicleID: item.VehicleID}
		r, err := s.Ingest(ctx, item.VehicleID, item.TelemetryInput)
		if err != nil {
			res.Error = err.Error()
			res.err = err
			out.Failed++
			s.log.WithError(err).WithFields(log.Fields{
				"vehicle_id": item.VehicleID,
				"index":      i,
			}).Debug("Batch item rejected")
		} else {
			res.Reading = &r.Reading
			out.Succeeded++
			out.Alerts = append(out.Alerts, r.Alerts...)
		}
		out.Items = append(out.Items, res)
	}
	return out
}

func resultLabel(err error) string {
	if errors.Is(err, telemetry.ErrUnknownVehicle) {
		return metrics.ResultUnknownVehicle
	}
	return metrics.ResultError
}
