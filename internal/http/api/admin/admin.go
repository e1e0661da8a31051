// Package admin registers the staff-only API.
package admin

import (
	"net/http"

	"github.com/lmslight/lms-core/internal/config"
	"github.com/lmslight/lms-core/internal/history"
	handlers "github.com/lmslight/lms-core/internal/http/api/admin/handlers"
	"github.com/lmslight/lms-core/internal/http/api/admin/permissions"
	"github.com/lmslight/lms-core/internal/http/api/middleware"
	"github.com/lmslight/lms-core/internal/quota"
	"github.com/lmslight/lms-core/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// Deps carries the services used by admin handlers.
type Deps struct {
	JWT      config.JWTConfig
	Limits   *ratelimit.Manager
	Gate     *quota.Gate
	Recorder *history.Recorder
}

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.Limits == nil || deps.Gate == nil {
		return
	}

	authed := r.Group("/v0/admin")
	authed.Use(middleware.RequireUser(deps.JWT))
	authed.Use(adminPermissionMiddleware())

	permissionHandler := handlers.NewPermissionHandler()
	authed.GET("/permissions", permissionHandler.List)

	rateLimitHandler := handlers.NewRateLimitHandler(deps.Limits, deps.Gate, deps.Recorder)
	authed.GET("/rate-limits/:action", rateLimitHandler.Get)
	authed.DELETE("/rate-limits/:action", rateLimitHandler.Reset)
	authed.GET("/reading-texts/:id/ai-requests", rateLimitHandler.GetReadingText)
	authed.DELETE("/reading-texts/:id/ai-requests", rateLimitHandler.ResetReadingText)

	historyHandler := handlers.NewHistoryHandler(deps.Recorder)
	authed.GET("/history", historyHandler.List)
}

// adminPermissionMiddleware rejects callers whose role is not granted the matched route.
func adminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := permissions.Key(c.Request.Method, c.FullPath())
		if !permissions.Allowed(middleware.CurrentPrincipal(c).Role, key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
