package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates token validation to a TokenValidator.
type Middleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given TokenValidator.
func NewMiddleware(validator TokenValidator, logger *zap.Logger) *Middleware {
	return &Middleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth validates the bearer token and sets claims in context for
// downstream handlers. Requests without a valid token receive 401.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.unauthorized(w, "Authentication required")
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			m.logger.Debug("Token validation failed", zap.Error(err))
			m.unauthorized(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
