package handlers

import (
	"net/http"

	"github.com/lmslight/lms-core/internal/http/api/middleware"
	"github.com/lmslight/lms-core/internal/ratelimit"
	internalsettings "github.com/lmslight/lms-core/internal/settings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RateLimitHandler exposes the caller's own rate limit state.
type RateLimitHandler struct {
	limits *ratelimit.Manager
}

// NewRateLimitHandler constructs a RateLimitHandler.
func NewRateLimitHandler(limits *ratelimit.Manager) *RateLimitHandler {
	return &RateLimitHandler{limits: limits}
}

// meRateLimitActions lists the actions reported by Me, keyed by response field.
var meRateLimitActions = []struct {
	field  string
	action string
}{
	{field: "ai", action: internalsettings.ActionAIRequest},
	{field: "chat", action: internalsettings.ActionChat},
	{field: "annotation", action: internalsettings.ActionAnnotation},
}

// Me returns the live counters of the caller. A counter is null until first use.
func (h *RateLimitHandler) Me(c *gin.Context) {
	userID := middleware.CurrentPrincipal(c).UserID
	ctx := c.Request.Context()
	policies := h.limits.Policies()

	out := make(gin.H, len(meRateLimitActions))
	for _, item := range meRateLimitActions {
		policy, _ := policies.ForAction(item.action)
		status, errStatus := h.limits.Status(ctx, userID, item.action)
		if errStatus != nil {
			log.WithError(errStatus).WithField("action", item.action).Error("rate limits: status failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "get rate limits failed"})
			return
		}
		remaining, errRemaining := h.limits.Remaining(ctx, userID, item.action, policy.Limit)
		if errRemaining != nil {
			log.WithError(errRemaining).WithField("action", item.action).Error("rate limits: remaining failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "get rate limits failed"})
			return
		}
		out[item.field] = gin.H{
			"limit":     policy.Limit,
			"window":    policy.Window.String(),
			"remaining": remaining,
			"status":    statusView(status),
		}
	}
	c.JSON(http.StatusOK, gin.H{"limits": out})
}

func statusView(status *ratelimit.Status) any {
	if status == nil {
		return nil
	}
	return gin.H{
		"count":    status.Count,
		"reset_at": status.Reset,
	}
}
