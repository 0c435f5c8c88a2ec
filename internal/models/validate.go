package models

import (
	"fmt"
	"math"
)

// Validate rejects physically impossible values. Missing optional fields
// are valid.
func (in TelemetryInput) Validate() error {
	if !finite(in.Location.Lat) || in.Location.Lat < -90 || in.Location.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", in.Location.Lat)
	}
	if !finite(in.Location.Lon) || in.Location.Lon < -180 || in.Location.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", in.Location.Lon)
	}
	if !finite(in.Speed) || in.Speed < 0 {
		return fmt.Errorf("speed %v must be non-negative", in.Speed)
	}
	if err := percent("fuel_level", in.FuelLevel); err != nil {
		return err
	}
	if err := percent("battery_level", in.BatteryLevel); err != nil {
		return err
	}
	if in.EngineTemp != nil && !finite(*in.EngineTemp) {
		return fmt.Errorf("engine_temp %v is not a number", *in.EngineTemp)
	}
	if in.Odometer != nil && (!finite(*in.Odometer) || *in.Odometer < 0) {
		return fmt.Errorf("odometer %v must be non-negative", *in.Odometer)
	}
	return nil
}

func percent(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if !finite(*v) || *v < 0 || *v > 100 {
		return fmt.Errorf("%s %v must be between 0 and 100", field, *v)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
