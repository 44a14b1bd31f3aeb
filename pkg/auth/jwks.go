package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates operator bearer tokens. The registry never issues
// tokens itself; it only verifies what the external auth server signed.
type TokenValidator interface {
	// ValidateToken checks a JWT string and returns its claims. It fails on
	// bad signatures, expired tokens, and issuers outside the allowlist.
	ValidateToken(tokenString string) (*Claims, error)
}

// JWKSConfig configures token verification.
type JWKSConfig struct {
	// EnableVerification toggles signature checks. Off, tokens are parsed
	// but not verified; only usable for local development without the auth
	// server.
	EnableVerification bool

	// JWKSEndpoints maps trusted issuer URLs to their JWKS endpoints.
	// Tokens from any other issuer are rejected.
	JWKSEndpoints map[string]string
}

// JWKSClient verifies operator tokens against the public keys each trusted
// issuer publishes. Key sets are fetched once at startup and refreshed in
// the background by keyfunc.
type JWKSClient struct {
	verify  bool
	keysets map[string]keyfunc.Keyfunc
}

var _ TokenValidator = (*JWKSClient)(nil)

// NewJWKSClient fetches the key sets for every configured issuer. An issuer
// whose JWKS endpoint cannot be loaded fails startup rather than silently
// locking its operators out later.
func NewJWKSClient(cfg *JWKSConfig) (*JWKSClient, error) {
	client := &JWKSClient{
		verify:  cfg.EnableVerification,
		keysets: make(map[string]keyfunc.Keyfunc, len(cfg.JWKSEndpoints)),
	}
	if !cfg.EnableVerification {
		return client, nil
	}

	for issuer, jwksURL := range cfg.JWKSEndpoints {
		keyset, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to load JWKS for issuer %s: %w", issuer, err)
		}
		client.keysets[issuer] = keyset
	}
	return client, nil
}

// ValidateToken parses and, unless verification is disabled, verifies the
// token's RSA signature with the issuer's published keys.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if !c.verify {
		return parseUnverified(tokenString)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, c.issuerKey)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return tokenClaims(token)
}

// issuerKey resolves the verification key for a token, rejecting non-RSA
// algorithms and unlisted issuers before any key lookup happens.
func (c *JWKSClient) issuerKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	keyset, trusted := c.keysets[claims.Issuer]
	if !trusted {
		return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
	}
	return keyset.KeyfuncCtx(context.Background())(token)
}

func parseUnverified(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return tokenClaims(token)
}

func tokenClaims(token *jwt.Token) (*Claims, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
