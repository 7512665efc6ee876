package middleware

import (
	"net/http"

	"github.com/MrEthical07/goTodo/credential"
)

// RequireRole lets through requests whose verified role is one of roles and
// answers 403 otherwise. It must run after [Guard].
func RequireRole(roles ...credential.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, MessageInvalidAuth)
				return
			}
			if !roleAllowed(claims.Role, roles) {
				writeMessage(w, http.StatusForbidden, MessageForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func roleAllowed(role string, allowed []credential.Role) bool {
	r := credential.ParseRole(role)
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
