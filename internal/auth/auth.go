package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/fleet-telemetry/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const defaultSecret = "default-secret-key-change-in-production"

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service handles authentication operations
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	users     map[string]models.User
}

// NewService creates a new authentication service. An empty secret falls back
// to a development default and a non-positive expiry to 24 hours.
func NewService(secret string, expiry time.Duration, users map[string]models.User) (*Service, error) {
	if secret == "" {
		secret = defaultSecret
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	for name, u := range users {
		if !models.IsValidRole(u.Role) {
			return nil, fmt.Errorf("user %s: invalid role %q", name, u.Role)
		}
	}
	if users == nil {
		users = map[string]models.User{}
	}

	return &Service{
		jwtSecret: []byte(secret),
		tokenExp:  expiry,
		users:     users,
	}, nil
}

// ParseUsers reads a comma separated list of username:bcrypt-hash:role
// entries. Bcrypt hashes contain no colons, so the hash is everything
// between the first and the last colon.
func ParseUsers(raw string) (map[string]models.User, error) {
	users := make(map[string]models.User)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		first := strings.Index(entry, ":")
		last := strings.LastIndex(entry, ":")
		if first <= 0 || last <= first+1 || last == len(entry)-1 {
			return nil, fmt.Errorf("malformed user entry %q", entry)
		}
		u := models.User{
			Username:     entry[:first],
			PasswordHash: entry[first+1 : last],
			Role:         models.Role(strings.ToLower(entry[last+1:])),
		}
		if !models.IsValidRole(u.Role) {
			return nil, fmt.Errorf("user %s: invalid role %q", u.Username, u.Role)
		}
		if _, dup := users[u.Username]; dup {
			return nil, fmt.Errorf("user %s listed twice", u.Username)
		}
		users[u.Username] = u
	}
	return users, nil
}

// Authenticate checks a username and password against the configured users.
func (s *Service) Authenticate(username, password string) (*models.User, error) {
	u, ok := s.users[username]
	if !ok || !s.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func (s *Service) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateToken generates a JWT token for a user and returns its expiry
func (s *Service) GenerateToken(user *models.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.tokenExp)
	claims := jwt.MapClaims{
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	username, ok := claims["username"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	roleStr, ok := claims["role"].(string)
	if !ok || !models.IsValidRole(models.Role(roleStr)) {
		return nil, ErrInvalidToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		Username: username,
		Role:     models.Role(roleStr),
		Exp:      int64(exp),
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}
