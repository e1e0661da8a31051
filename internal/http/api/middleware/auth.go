// Package middleware holds gin middleware shared by the user and admin APIs.
package middleware

import (
	"net/http"
	"strings"

	"github.com/lmslight/lms-core/internal/access"
	"github.com/lmslight/lms-core/internal/config"
	"github.com/lmslight/lms-core/internal/security"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireUser.
const (
	ContextUserID = "userID"
	ContextRole   = "userRole"
)

// RequireUser validates the bearer token and stores the caller in the gin context.
func RequireUser(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseUserToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[c.GetString(ContextRole)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the caller stored by RequireUser.
func CurrentPrincipal(c *gin.Context) access.Principal {
	return access.Principal{
		UserID: c.GetString(ContextUserID),
		Role:   c.GetString(ContextRole),
	}
}
