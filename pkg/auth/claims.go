// Package auth provides JWT-based authentication for the family registry.
// It validates tokens issued by the external auth server using JWKS endpoints.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alshaya00/Alshaya-sub002/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
)

// Claims represents the JWT claims issued by the auth server.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the operator's display name and roles.
type Claims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`  // Operator display name
	Roles []string `json:"roles,omitempty"` // Operator roles
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// SetClaims stores JWT claims in the context. Exposed for tests.
func SetClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ActorFromContext builds the acting operator from the JWT claims in context.
// Returns false if claims are missing or the subject is not a valid UUID.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return models.Actor{}, false
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Actor{}, false
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}

	return models.Actor{
		ID:    actorID,
		Name:  name,
		Roles: claims.Roles,
	}, true
}
