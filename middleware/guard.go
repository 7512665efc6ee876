package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/goTodo/jwt"
)

// 401 messages written by the guards.
const (
	MessageInvalidAuth  = "INVALID_AUTH"
	MessageExpiredToken = "EXPIRED_TOKEN"
	MessageForbidden    = "FORBIDDEN"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the verified claims stored by [Guard].
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return claims, ok
}

// Guard verifies the bearer token of every request with manager and stores
// the claims in the request context.
func Guard(manager *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, status, msg := authenticate(manager, r.Header.Get("Authorization"))
			if claims == nil {
				writeMessage(w, status, msg)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate returns the verified claims, or the status and message to
// reject with.
func authenticate(manager *jwt.Manager, header string) (*jwt.AccessClaims, int, string) {
	if manager == nil {
		return nil, http.StatusUnauthorized, MessageInvalidAuth
	}
	token, ok := bearerToken(header)
	if !ok {
		return nil, http.StatusUnauthorized, MessageInvalidAuth
	}
	claims, err := manager.ParseAccess(token)
	if err != nil {
		return nil, http.StatusUnauthorized, MessageExpiredToken
	}
	return claims, http.StatusOK, ""
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
