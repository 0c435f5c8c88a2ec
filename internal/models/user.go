package models

// Role represents user roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleDevice   Role = "device"
	RoleViewer   Role = "viewer"
)

// Permissions checked by the HTTP layer.
const (
	PermIngestTelemetry = "ingest_telemetry"
	PermViewTelemetry   = "view_telemetry"
	PermViewAlerts      = "view_alerts"
	PermUpdateAlerts    = "update_alerts"
	PermViewAnalytics   = "view_analytics"
	PermViewVehicles    = "view_vehicles"
	PermManageVehicles  = "manage_vehicles"
)

// User is an API principal. Users come from configuration, not a database.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// TokenRequest represents a token request
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse represents a successful token response
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	Role      Role   `json:"role"`
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleDevice, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleOperator:
		return action != PermManageVehicles
	case RoleDevice:
		return action == PermIngestTelemetry
	case RoleViewer:
		return action == PermViewTelemetry || action == PermViewAlerts ||
			action == PermViewAnalytics || action == PermViewVehicles
	default:
		return false
	}
}
