package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry returns the expiry time encoded in the installed bearer
// token. The signature is not verified here; the backend owns
// verification. The runner only needs the claim to warn when the token
// will lapse before the attempt's remaining time runs out.
func (c *Client) TokenExpiry() (time.Time, error) {
	if c.token == "" {
		return time.Time{}, fmt.Errorf("no token installed")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(c.token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("token expiry claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no expiry claim")
	}
	return exp.Time, nil
}
