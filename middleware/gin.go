package middleware

import (
	"net/http"

	"github.com/MrEthical07/goTodo/credential"
	"github.com/MrEthical07/goTodo/jwt"
	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key holding verified *jwt.AccessClaims.
const ClaimsKey = "gotodo.claims"

// GinGuard is [Guard] for gin routers.
func GinGuard(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, status, msg := authenticate(manager, c.GetHeader("Authorization"))
		if claims == nil {
			c.AbortWithStatusJSON(status, gin.H{"message": msg})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GinClaims returns the claims stored by [GinGuard].
func GinClaims(c *gin.Context) (*jwt.AccessClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.AccessClaims)
	return claims, ok
}

// GinRequireRole is [RequireRole] for gin routers.
func GinRequireRole(roles ...credential.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GinClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": MessageInvalidAuth})
			return
		}
		if !roleAllowed(claims.Role, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": MessageForbidden})
			return
		}
		c.Next()
	}
}
