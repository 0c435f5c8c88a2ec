package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-telemetry/internal/models"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrVehicleExists   = errors.New("vehicle already exists")
)

// VehicleRegistry answers identity questions about the fleet. It is all the
// telemetry core needs from the registry.
type VehicleRegistry interface {
	Exists(ctx context.Context, id string) (bool, error)
	AllVehicleIDs(ctx context.Context) ([]string, error)
}

// VehicleStore is a registry that can also manage vehicle records.
type VehicleStore interface {
	VehicleRegistry
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehicles(ctx context.Context) ([]models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, update models.VehicleUpdate) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error
}
