package models

import (
	"math"
	"testing"
)

func TestTelemetryInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      TelemetryInput
		wantErr bool
	}{
		{"minimal", TelemetryInput{}, false},
		{"full", TelemetryInput{
			Location:     Location{Lat: 59.33, Lon: 18.06},
			Speed:        72,
			FuelLevel:    Float(40),
			BatteryLevel: Float(100),
			EngineTemp:   Float(-5),
			Odometer:     Float(0),
		}, false},
		{"latitude too high", TelemetryInput{Location: Location{Lat: 500}}, true},
		{"longitude too low", TelemetryInput{Location: Location{Lon: -181}}, true},
		{"negative speed", TelemetryInput{Speed: -40}, true},
		{"speed not a number", TelemetryInput{Speed: math.NaN()}, true},
		{"fuel over 100", TelemetryInput{FuelLevel: Float(250)}, true},
		{"negative battery", TelemetryInput{BatteryLevel: Float(-3)}, true},
		{"infinite engine temp", TelemetryInput{EngineTemp: Float(math.Inf(1))}, true},
		{"negative odometer", TelemetryInput{Odometer: Float(-1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
