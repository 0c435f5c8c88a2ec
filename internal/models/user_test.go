package models

import (
	"testing"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"admin role", RoleAdmin, true},
		{"operator role", RoleOperator, true},
		{"device role", RoleDevice, true},
		{"viewer role", RoleViewer, true},
		{"invalid role", "invalid", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestUser_HasPermission(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	operator := &User{Role: RoleOperator}
	device := &User{Role: RoleDevice}
	viewer := &User{Role: RoleViewer}

	tests := []struct {
		name     string
		user     *User
		action   string
		expected bool
	}{
		// Admin permissions - should have all permissions
		{"admin can manage vehicles", admin, PermManageVehicles, true},
		{"admin can ingest", admin, PermIngestTelemetry, true},
		{"admin can update alerts", admin, PermUpdateAlerts, true},

		// Operator permissions - everything except the vehicle registry
		{"operator can ingest", operator, PermIngestTelemetry, true},
		{"operator can update alerts", operator, PermUpdateAlerts, true},
		{"operator can view analytics", operator, PermViewAnalytics, true},
		{"operator cannot manage vehicles", operator, PermManageVehicles, false},

		// Device permissions - write-only telemetry
		{"device can ingest", device, PermIngestTelemetry, true},
		{"device cannot view telemetry", device, PermViewTelemetry, false},
		{"device cannot update alerts", device, PermUpdateAlerts, false},

		// Viewer permissions - read-only access
		{"viewer can view telemetry", viewer, PermViewTelemetry, true},
		{"viewer can view alerts", viewer, PermViewAlerts, true},
		{"viewer can view analytics", viewer, PermViewAnalytics, true},
		{"viewer can view vehicles", viewer, PermViewVehicles, true},
		{"viewer cannot ingest", viewer, PermIngestTelemetry, false},
		{"viewer cannot update alerts", viewer, PermUpdateAlerts, false},

		{"unknown role has nothing", &User{Role: "ghost"}, PermViewTelemetry, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.user.HasPermission(tt.action)
			if result != tt.expected {
				t.Errorf("User with role %s HasPermission(%s) = %v, want %v",
					tt.user.Role, tt.action, result, tt.expected)
			}
		})
	}
}
