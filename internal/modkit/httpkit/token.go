// Package httpkit provides tiny HTTP helpers and adapters
package httpkit

import (
	"crypto/subtle"
	"net/http"
	"strings"

	perrs "otp4gb/internal/platform/errors"
)

// BearerToken returns the raw bearer token from the Authorization header
func BearerToken(r *http.Request) (string, error) {
	authz := r.Header.Get("Authorization")
	if strings.TrimSpace(authz) == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	// case-insensitive Bearer prefix (don't trim the whole header first)
	const prefix = "bearer "
	if len(authz) < len(prefix) || strings.ToLower(authz[:len(prefix)]) != prefix {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	raw := strings.TrimSpace(authz[len(prefix):])
	if raw == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	return raw, nil
}

// TokenGuard implements middleware.GuardPort with a static shared token
// an empty token disables the guard entirely
type TokenGuard struct {
	token string
}

// NewTokenGuard builds a guard around the configured token
func NewTokenGuard(token string) *TokenGuard {
	return &TokenGuard{token: token}
}

// Check verifies the request carries the shared token
func (g *TokenGuard) Check(r *http.Request) error {
	if g == nil || g.token == "" {
		return nil
	}
	raw, err := BearerToken(r)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(raw), []byte(g.token)) != 1 {
		return perrs.Unauthorizedf("invalid bearer token")
	}
	return nil
}
