package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/db"
	"github.com/ukydev/fleet-telemetry/internal/models"
)

// VehicleHandler manages the vehicle registry.
type VehicleHandler struct {
	store db.VehicleStore
	log   log.FieldLogger
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(store db.VehicleStore, logger log.FieldLogger) *VehicleHandler {
	return &VehicleHandler{store: store, log: logger}
}

// Create handles POST /api/vehicles. An empty id is generated.
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var v models.Vehicle
	if err := decodeJSON(w, r, &v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v.ID = strings.TrimSpace(v.ID)
	if strings.ContainsAny(v.ID, "/ ") {
		http.Error(w, "Vehicle id must not contain slashes or spaces", http.StatusBadRequest)
		return
	}
	if err := validateVehicle(v.Type, v.Status, v.Year); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if v.Status == "" {
		v.Status = "active"
	}

	created, err := h.store.InsertVehicle(r.Context(), v)
	if errors.Is(err, db.ErrVehicleExists) {
		http.Error(w, "Vehicle already exists", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.WithError(err).Error("Failed to insert vehicle")
		http.Error(w, "Failed to create vehicle", http.StatusInternalServerError)
		return
	}
	h.log.WithField("vehicle_id", created.ID).Info("Vehicle registered")
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/vehicles
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.store.FindVehicles(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to list vehicles")
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// Get handles GET /api/vehicles/{id}
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.FindVehicleByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.vehicleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Update handles PATCH /api/vehicles/{id}
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var update models.VehicleUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if update.IsEmpty() {
		http.Error(w, "No fields to update", http.StatusBadRequest)
		return
	}
	var typ, status string
	var year int
	if update.Type != nil {
		typ = *update.Type
	}
	if update.Status != nil {
		status = *update.Status
	}
	if update.Year != nil {
		year = *update.Year
	}
	if err := validateVehicle(typ, status, year); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := h.store.UpdateVehicle(r.Context(), r.PathValue("id"), update)
	if err != nil {
		h.vehicleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Delete handles DELETE /api/vehicles/{id}. Stored readings and alerts are
// kept; the vehicle simply stops accepting telemetry.
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteVehicle(r.Context(), id); err != nil {
		h.vehicleError(w, err)
		return
	}
	h.log.WithField("vehicle_id", id).Info("Vehicle removed")
	w.WriteHeader(http.StatusNoContent)
}

func (h *VehicleHandler) vehicleError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrVehicleNotFound) {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	h.log.WithError(err).Error("Vehicle registry request failed")
	http.Error(w, "Vehicle registry unavailable", http.StatusInternalServerError)
}

func validateVehicle(typ, status string, year int) error {
	if typ != "" && typ != "ICE" && typ != "EV" && typ != "HYBRID" {
		return errors.New("type must be ICE, EV or HYBRID")
	}
	if status != "" && status != "active" && status != "inactive" {
		return errors.New("status must be active or inactive")
	}
	if year != 0 && (year < 1900 || year > time.Now().Year()+1) {
		return errors.New("year out of range")
	}
	return nil
}
