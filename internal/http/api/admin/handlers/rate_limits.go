package handlers

import (
	"net/http"
	"strings"

	"github.com/lmslight/lms-core/internal/history"
	"github.com/lmslight/lms-core/internal/http/api/middleware"
	"github.com/lmslight/lms-core/internal/quota"
	"github.com/lmslight/lms-core/internal/ratelimit"
	internalsettings "github.com/lmslight/lms-core/internal/settings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Audit tables written by rate limit resets.
const (
	rateLimitsTable      = "rate_limits"
	aiReadingTextsTable  = "ai_reading_text_quotas"
	rateLimitRecordSplit = ":"
)

// RateLimitHandler inspects and resets counters on behalf of staff.
type RateLimitHandler struct {
	limits   *ratelimit.Manager // Global registry.
	gate     *quota.Gate        // Per-reading-text AI quota.
	recorder *history.Recorder  // Audit trail for resets.
}

// NewRateLimitHandler constructs a RateLimitHandler.
func NewRateLimitHandler(limits *ratelimit.Manager, gate *quota.Gate, recorder *history.Recorder) *RateLimitHandler {
	return &RateLimitHandler{limits: limits, gate: gate, recorder: recorder}
}

// Get returns the counter of a subject for an action.
func (h *RateLimitHandler) Get(c *gin.Context) {
	action, subject, policy, ok := h.bindAction(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	status, errStatus := h.limits.Status(ctx, subject, action)
	if errStatus != nil {
		log.WithError(errStatus).Error("admin rate limits: status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get rate limit failed"})
		return
	}
	remaining, errRemaining := h.limits.Remaining(ctx, subject, action, policy.Limit)
	if errRemaining != nil {
		log.WithError(errRemaining).Error("admin rate limits: remaining failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get rate limit failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"action":    action,
		"subject":   subject,
		"limit":     policy.Limit,
		"window":    policy.Window.String(),
		"remaining": remaining,
		"status":    statusView(status),
	})
}

// Reset drops the counter of a subject for an action and records the reset.
func (h *RateLimitHandler) Reset(c *gin.Context) {
	action, subject, _, ok := h.bindAction(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	status, errStatus := h.limits.Status(ctx, subject, action)
	if errStatus != nil {
		log.WithError(errStatus).Error("admin rate limits: status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset rate limit failed"})
		return
	}
	if errReset := h.limits.Reset(ctx, subject, action); errReset != nil {
		log.WithError(errReset).Error("admin rate limits: reset failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset rate limit failed"})
		return
	}
	if status != nil {
		h.recordReset(c, rateLimitsTable, subject+rateLimitRecordSplit+action, status)
	}
	c.JSON(http.StatusOK, gin.H{"reset": status != nil})
}

// GetReadingText returns a user's AI counter for one reading text.
func (h *RateLimitHandler) GetReadingText(c *gin.Context) {
	readingTextID, userID, ok := bindReadingText(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	status, errStatus := h.gate.ScopedStatus(ctx, userID, readingTextID)
	if errStatus != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user or reading text id"})
		return
	}
	remaining, errRemaining := h.gate.ScopedRemaining(ctx, userID, readingTextID)
	if errRemaining != nil {
		log.WithError(errRemaining).Error("admin rate limits: scoped remaining failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get ai quota failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reading_text_id": readingTextID,
		"user_id":         userID,
		"limit":           h.gate.Limits().Scoped.Limit,
		"remaining":       remaining,
		"status":          statusView(status),
	})
}

// ResetReadingText drops a user's AI counter for one reading text.
func (h *RateLimitHandler) ResetReadingText(c *gin.Context) {
	readingTextID, userID, ok := bindReadingText(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	status, errStatus := h.gate.ScopedStatus(ctx, userID, readingTextID)
	if errStatus != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user or reading text id"})
		return
	}
	if errReset := h.gate.ResetScoped(ctx, userID, readingTextID); errReset != nil {
		log.WithError(errReset).Error("admin rate limits: scoped reset failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset ai quota failed"})
		return
	}
	if status != nil {
		h.recordReset(c, aiReadingTextsTable, userID+rateLimitRecordSplit+readingTextID, status)
	}
	c.JSON(http.StatusOK, gin.H{"reset": status != nil})
}

// bindAction reads the action path parameter and subject query parameter.
func (h *RateLimitHandler) bindAction(c *gin.Context) (string, string, ratelimit.Policy, bool) {
	action := strings.TrimSpace(c.Param("action"))
	if action == internalsettings.ActionAIReadingText {
		c.JSON(http.StatusBadRequest, gin.H{"error": "use the reading text ai quota route"})
		return "", "", ratelimit.Policy{}, false
	}
	policy, known := h.limits.Policies().ForAction(action)
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown action"})
		return "", "", ratelimit.Policy{}, false
	}
	subject := strings.TrimSpace(c.Query("subject"))
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject is required"})
		return "", "", ratelimit.Policy{}, false
	}
	return action, subject, policy, true
}

func bindReadingText(c *gin.Context) (string, string, bool) {
	readingTextID := strings.TrimSpace(c.Param("id"))
	userID := strings.TrimSpace(c.Query("user_id"))
	if readingTextID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading text id and user_id are required"})
		return "", "", false
	}
	return readingTextID, userID, true
}

func (h *RateLimitHandler) recordReset(c *gin.Context, table, recordID string, status *ratelimit.Status) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(c.Request.Context(), history.Entry{
		Table:    table,
		RecordID: recordID,
		Action:   history.ActionDelete,
		OldData:  statusView(status),
		UserID:   middleware.CurrentPrincipal(c).UserID,
	})
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
