package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/lmslight/lms-core/internal/access"
	"github.com/lmslight/lms-core/internal/history"
	"github.com/lmslight/lms-core/internal/http/api/middleware"
	"github.com/lmslight/lms-core/internal/quota"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// QuotaObserver is notified of AI quota denials.
type QuotaObserver interface {
	ObserveQuotaDenial(axis string)
}

// AIRequestHandler serves AI quota reads and reservations.
type AIRequestHandler struct {
	gate     *quota.Gate
	recorder *history.Recorder
	classes  access.ClassChecker
	observer QuotaObserver
}

// NewAIRequestHandler constructs an AIRequestHandler. observer may be nil.
func NewAIRequestHandler(gate *quota.Gate, recorder *history.Recorder, classes access.ClassChecker, observer QuotaObserver) *AIRequestHandler {
	return &AIRequestHandler{gate: gate, recorder: recorder, classes: classes, observer: observer}
}

// reserveAIRequest captures the payload for reserving an AI request.
type reserveAIRequest struct {
	ClassID string `json:"class_id"` // Class owning the reading text.
}

// Remaining returns the caller's global AI budget.
func (h *AIRequestHandler) Remaining(c *gin.Context) {
	userID := middleware.CurrentPrincipal(c).UserID
	remaining, errRemaining := h.gate.GlobalRemaining(c.Request.Context(), userID)
	if errRemaining != nil {
		log.WithError(errRemaining).Error("ai requests: remaining failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get ai requests failed"})
		return
	}
	limit := h.gate.Limits().Global.Limit
	c.JSON(http.StatusOK, gin.H{
		"remaining": remaining,
		"limit":     limit,
		"used":      limit - remaining,
	})
}

// ReadingTextRemaining returns the caller's AI budget for one reading text.
func (h *AIRequestHandler) ReadingTextRemaining(c *gin.Context) {
	userID := middleware.CurrentPrincipal(c).UserID
	readingTextID := strings.TrimSpace(c.Param("id"))
	remaining, errRemaining := h.gate.ScopedRemaining(c.Request.Context(), userID, readingTextID)
	if errRemaining != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reading text id"})
		return
	}
	limit := h.gate.Limits().Scoped.Limit
	c.JSON(http.StatusOK, gin.H{
		"reading_text_id": readingTextID,
		"remaining":       remaining,
		"limit":           limit,
		"used":            limit - remaining,
	})
}

// Reserve consumes one unit of both AI quotas for a reading text. The reading text budget
// is checked first and stays consumed when the global budget denies.
func (h *AIRequestHandler) Reserve(c *gin.Context) {
	principal := middleware.CurrentPrincipal(c)
	readingTextID := strings.TrimSpace(c.Param("id"))
	if readingTextID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading text id is required"})
		return
	}

	var body reserveAIRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	classID := strings.TrimSpace(body.ClassID)
	if classID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "class_id is required"})
		return
	}

	ctx := c.Request.Context()
	allowed, errAccess := h.classes.CanAccessClass(ctx, principal, classID)
	if errAccess != nil {
		log.WithError(errAccess).Error("ai requests: class access check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check class access failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied to this class"})
		return
	}

	decision, errAuthorize := h.gate.Authorize(ctx, principal.UserID, readingTextID)
	if errAuthorize != nil {
		log.WithError(errAuthorize).Error("ai requests: authorize failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check ai quota failed"})
		return
	}
	limits := h.gate.Limits()
	if !decision.Allowed {
		h.deny(c, decision, limits)
		return
	}

	requestID := uuid.NewString()
	h.record(ctx, requestID, principal.UserID, classID, readingTextID)

	c.JSON(http.StatusOK, gin.H{
		"request_id":             requestID,
		"remaining":              decision.Global.Remaining,
		"limit":                  limits.Global.Limit,
		"reading_text_remaining": decision.Scoped.Remaining,
		"per_reading_text_limit": limits.Scoped.Limit,
	})
}

func (h *AIRequestHandler) deny(c *gin.Context, decision quota.Decision, limits quota.Limits) {
	if h.observer != nil {
		h.observer.ObserveQuotaDenial(string(decision.DeniedBy))
	}
	result, limit, message := decision.Global, limits.Global.Limit, "ai request limit exceeded"
	if decision.DeniedBy == quota.AxisScoped {
		result, limit, message = decision.Scoped, limits.Scoped.Limit, "ai assistance limit reached for this reading text"
	}
	c.Header("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds(result.Reset, h.gate.Now())))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":     message,
		"axis":      string(decision.DeniedBy),
		"remaining": result.Remaining,
		"limit":     limit,
		"reset_at":  result.Reset,
	})
}

func (h *AIRequestHandler) record(ctx context.Context, requestID, userID, classID, readingTextID string) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(ctx, history.Entry{
		Table:    "ai_requests",
		RecordID: requestID,
		Action:   history.ActionCreate,
		NewData: gin.H{
			"reading_text_id": readingTextID,
			"class_id":        classID,
			"user_id":         userID,
		},
		UserID:  userID,
		ClassID: classID,
	})
}
