package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of WireChat JWT claims the client cares about.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
	jwt.RegisteredClaims
}

// Identify extracts the local identity from a persisted token. The client
// holds no signing secret, so the parse is unverified; the server re-validates
// the token on every connection and API call.
func Identify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("token has no username claim")
	}
	return claims, nil
}
