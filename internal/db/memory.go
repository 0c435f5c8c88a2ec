package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ukydev/fleet-telemetry/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRegistry keeps vehicles in process memory.
type MemoryRegistry struct {
	mu       sync.RWMutex
	vehicles map[string]models.Vehicle
}

// NewMemoryRegistry creates a registry pre-populated with the given IDs.
func NewMemoryRegistry(ids ...string) *MemoryRegistry {
	r := &MemoryRegistry{vehicles: make(map[string]models.Vehicle, len(ids))}
	now := time.Now().UTC()
	for _, id := range ids {
		r.vehicles[id] = models.Vehicle{ID: id, Status: "active", CreatedAt: now, UpdatedAt: now}
	}
	return r
}

func (r *MemoryRegistry) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.vehicles[id]
	return ok, nil
}

func (r *MemoryRegistry) AllVehicleIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.vehicles))
	for id := range r.vehicles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// InsertVehicle registers a vehicle. An empty ID gets a generated one.
func (r *MemoryRegistry) InsertVehicle(_ context.Context, vehicle models.Vehicle) (models.Vehicle, error) {
	if vehicle.ID == "" {
		vehicle.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[vehicle.ID]; ok {
		return models.Vehicle{}, ErrVehicleExists
	}
	r.vehicles[vehicle.ID] = vehicle
	return vehicle, nil
}

func (r *MemoryRegistry) FindVehicleByID(_ context.Context, id string) (*models.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, ErrVehicleNotFound
	}
	return &v, nil
}

func (r *MemoryRegistry) FindVehicles(_ context.Context) ([]models.Vehicle, error) {
	r.mu.RLock()
	out := make([]models.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		out = append(out, v)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRegistry) UpdateVehicle(_ context.Context, id string, update models.VehicleUpdate) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, ErrVehicleNotFound
	}
	update.Apply(&v)
	v.UpdatedAt = time.Now().UTC()
	r.vehicles[id] = v
	return &v, nil
}

func (r *MemoryRegistry) DeleteVehicle(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[id]; !ok {
		return ErrVehicleNotFound
	}
	delete(r.vehicles, id)
	return nil
}
