package models

import "time"

// Vehicle represents a fleet vehicle known to the registry.
type Vehicle struct {
	ID        string    `bson:"_id" json:"id"`
	Type      string    `bson:"type" json:"type"` // "ICE" or "EV"
	Make      string    `bson:"make" json:"make"`
	Model     string    `bson:"model" json:"model"`
	Year      int       `bson:"year" json:"year"`
	Status    string    `bson:"status" json:"status"` // "active" or "inactive"
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// VehicleUpdate lists the fields of a Vehicle that may change after
// registration. Nil fields are left untouched; ID and CreatedAt are not
// reachable from here.
type VehicleUpdate struct {
	Type   *string `json:"type,omitempty"`
	Make   *string `json:"make,omitempty"`
	Model  *string `json:"model,omitempty"`
	Year   *int    `json:"year,omitempty"`
	Status *string `json:"status,omitempty"`
}

// Apply copies the set fields onto v.
func (u VehicleUpdate) Apply(v *Vehicle) {
	if u.Type != nil {
		v.Type = *u.Type
	}
	if u.Make != nil {
		v.Make = *u.Make
	}
	if u.Model != nil {
		v.Model = *u.Model
	}
	if u.Year != nil {
		v.Year = *u.Year
	}
	if u.Status != nil {
		v.Status = *u.Status
	}
}

// IsEmpty reports whether the update would change nothing.
func (u VehicleUpdate) IsEmpty() bool {
	return u.Type == nil && u.Make == nil && u.Model == nil && u.Year == nil && u.Status == nil
}

// Set builds the bson-friendly field map for a Mongo $set.
func (u VehicleUpdate) Set() map[string]interface{} {
	set := map[string]interface{}{}
	if u.Type != nil {
		set["type"] = *u.Type
	}
	if u.Make != nil {
		set["make"] = *u.Make
	}
	if u.Model != nil {
		set["model"] = *u.Model
	}
	if u.Year != nil {
		set["year"] = *u.Year
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	return set
}
