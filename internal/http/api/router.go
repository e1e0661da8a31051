// Package api assembles the HTTP router.
package api

import (
	"net/http"

	"github.com/lmslight/lms-core/internal/http/api/admin"
	"github.com/lmslight/lms-core/internal/http/api/front"
	"github.com/lmslight/lms-core/internal/http/api/front/handlers"
	"github.com/lmslight/lms-core/internal/logging"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps carries everything NewRouter wires.
type RouterDeps struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Metrics http.Handler
	Front   front.Deps
	Admin   admin.Deps
}

// NewRouter builds the gin engine with logging, recovery, health, metrics and API routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	engine := gin.New()
	engine.Use(logging.GinLogger(logger))
	engine.Use(logging.GinRecovery(logger))

	healthHandler := handlers.NewHealthHandler(deps.DB)
	engine.GET("/healthz", healthHandler.Healthz)
	if deps.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	front.RegisterFrontRoutes(engine, deps.Front)
	admin.RegisterAdminRoutes(engine, deps.Admin)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}
