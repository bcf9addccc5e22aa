package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials carries the upstream credential. A plain API key is sent
// in the X-API-Key header; a value that parses as a JWT is sent as a
// Bearer token instead, and its expiry is checked locally before every
// request so expired credentials fail fast without a network round trip.
type Credentials struct {
	value string
	token *jwt.Token
	exp   time.Time
}

// NewCredentials builds Credentials from a raw secret value.
// An empty value yields anonymous credentials (no header sent).
func NewCredentials(value string) (Credentials, error) {
	value = strings.TrimSpace(value)
	c := Credentials{value: value}
	if value == "" || !looksLikeJWT(value) {
		return c, nil
	}

	// Signature verification belongs to the upstream; we only read the
	// registered claims to detect expiry locally.
	token, _, err := jwt.NewParser().ParseUnverified(value, jwt.MapClaims{})
	if err != nil {
		return Credentials{}, fmt.Errorf("source: parse bearer token: %w", err)
	}
	c.token = token

	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return Credentials{}, fmt.Errorf("source: read token expiry: %w", err)
	}
	if exp != nil {
		c.exp = exp.Time
	}
	return c, nil
}

// looksLikeJWT reports whether value has the three-part dotted shape of
// a JWS compact serialization.
func looksLikeJWT(value string) bool {
	parts := strings.Split(value, ".")
	return len(parts) == 3 && parts[0] != "" && parts[1] != ""
}

// Empty reports whether no credential is configured.
func (c Credentials) Empty() bool {
	return c.value == ""
}

// Bearer reports whether the credential is a JWT bearer token.
func (c Credentials) Bearer() bool {
	return c.token != nil
}

// Check returns ErrAuth if the credential is known-expired at now.
func (c Credentials) Check(now time.Time) error {
	if c.token == nil || c.exp.IsZero() {
		return nil
	}
	if !now.Before(c.exp) {
		return fmt.Errorf("%w: bearer token expired at %s", ErrAuth, c.exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// Value returns the raw credential string.
func (c Credentials) Value() string {
	return c.value
}
