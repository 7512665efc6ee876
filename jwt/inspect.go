package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by [Inspect] for opaque (non-JWT) tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Inspect decodes the claims of tokenStr without verifying its signature.
// Only the server can tell whether a token is genuine; the client uses this to
// read the expiry and role it was handed.
func Inspect(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}
	return claims, nil
}

// ExpiresWithin reports whether tokenStr carries an "exp" claim that falls
// before now+window. Opaque tokens and tokens without "exp" report false: the
// caller cannot know, so the server decides.
func ExpiresWithin(tokenStr string, window time.Duration, now time.Time) bool {
	claims, err := Inspect(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now.Add(window))
}
