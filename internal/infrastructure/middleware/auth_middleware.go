package middleware

import (
	"context"
	"net/http"
	"strings"

	"livegate/internal/core/domain"
	"livegate/internal/core/services"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key where auth middleware stores the
// caller's resolved identity.
const IdentityKey = "identity"

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		setIdentity(c, claims.Identity)
		c.Next()
	}
}

// OptionalAuthMiddleware resolves the identity when a valid bearer token is
// present and treats everything else as the anonymous caller. A malformed
// or expired token does not fail the request here; the operations behind
// this middleware accept anonymous traffic.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			if claims, err := authService.ValidateToken(parts[1]); err == nil {
				setIdentity(c, claims.Identity)
			}
		}

		c.Next()
	}
}

func setIdentity(c *gin.Context, identity domain.Identity) {
	c.Set(IdentityKey, identity)
	ctx := context.WithValue(c.Request.Context(), IdentityKey, string(identity))
	c.Request = c.Request.WithContext(ctx)
}

// CallerIdentity returns the identity resolved by auth middleware, empty
// for anonymous callers.
func CallerIdentity(c *gin.Context) domain.Identity {
	if v, exists := c.Get(IdentityKey); exists {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return ""
}
