// Package front registers the API used by signed-in students and teachers.
package front

import (
	"github.com/lmslight/lms-core/internal/access"
	"github.com/lmslight/lms-core/internal/config"
	"github.com/lmslight/lms-core/internal/history"
	"github.com/lmslight/lms-core/internal/http/api/front/handlers"
	"github.com/lmslight/lms-core/internal/http/api/middleware"
	"github.com/lmslight/lms-core/internal/quota"
	"github.com/lmslight/lms-core/internal/ratelimit"
	internalsettings "github.com/lmslight/lms-core/internal/settings"

	"github.com/gin-gonic/gin"
)

// Deps carries the services used by front handlers.
type Deps struct {
	JWT           config.JWTConfig
	Limits        *ratelimit.Manager
	Gate          *quota.Gate
	Recorder      *history.Recorder
	Classes       access.ClassChecker
	QuotaObserver handlers.QuotaObserver
}

// RegisterFrontRoutes registers the authenticated user routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.Limits == nil || deps.Gate == nil || deps.Recorder == nil || deps.Classes == nil {
		return
	}

	authed := r.Group("/v0")
	authed.Use(middleware.RequireUser(deps.JWT))
	authed.Use(middleware.Throttle(deps.Limits, internalsettings.ActionAPIRequest, middleware.KeyByUser))

	rateLimitHandler := handlers.NewRateLimitHandler(deps.Limits)
	authed.GET("/me/rate-limits", rateLimitHandler.Me)

	aiRequestHandler := handlers.NewAIRequestHandler(deps.Gate, deps.Recorder, deps.Classes, deps.QuotaObserver)
	authed.GET("/me/ai-requests", aiRequestHandler.Remaining)
	authed.GET("/me/reading-texts/:id/ai-requests", aiRequestHandler.ReadingTextRemaining)
	authed.POST("/reading-texts/:id/ai-requests", aiRequestHandler.Reserve)

	historyHandler := handlers.NewHistoryHandler(deps.Recorder, deps.Classes)
	authed.GET("/history", historyHandler.List)
	authed.GET("/me/classes/:classId/history", historyHandler.ClassHistory)
}
