package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-telemetry/internal/auth"
	"github.com/ukydev/fleet-telemetry/internal/models"
)

// AuthHandler issues API tokens to configured users
type AuthHandler struct {
	authService *auth.Service
	log         log.FieldLogger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, logger log.FieldLogger) *AuthHandler {
	return &AuthHandler{authService: authService, log: logger}
}

// Token handles POST /api/auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Validate input
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		h.log.WithField("username", req.Username).Warn("Rejected token request")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, exp, err := h.authService.GenerateToken(user)
	if err != nil {
		h.log.WithError(err).Error("Failed to generate token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.TokenResponse{
		Token:     token,
		ExpiresAt: exp.Unix(),
		Role:      user.Role,
	})
}
