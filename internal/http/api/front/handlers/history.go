package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/lmslight/lms-core/internal/access"
	"github.com/lmslight/lms-core/internal/history"
	"github.com/lmslight/lms-core/internal/http/api/middleware"
	"github.com/lmslight/lms-core/internal/models"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// classesTable is the history table whose record ids are class ids.
const classesTable = "classes"

// HistoryHandler serves audit history to class members.
type HistoryHandler struct {
	recorder *history.Recorder
	classes  access.ClassChecker
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(recorder *history.Recorder, classes access.ClassChecker) *HistoryHandler {
	return &HistoryHandler{recorder: recorder, classes: classes}
}

// historyQuery defines the selectors accepted by List.
type historyQuery struct {
	ClassID   string `form:"classId"`   // Class selector.
	TableName string `form:"tableName"` // Record table selector.
	RecordID  string `form:"recordId"`  // Record id selector.
	Limit     int    `form:"limit"`     // Class page size.
}

// List returns history by class or by record.
func (h *HistoryHandler) List(c *gin.Context) {
	var q historyQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	classID := strings.TrimSpace(q.ClassID)
	tableName := strings.TrimSpace(q.TableName)
	recordID := strings.TrimSpace(q.RecordID)

	switch {
	case classID != "":
		h.byClass(c, classID, q.Limit)
	case tableName != "" && recordID != "":
		h.byRecord(c, tableName, recordID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "classId or tableName and recordId are required"})
	}
}

// ClassHistory returns the history of the class in the path.
func (h *HistoryHandler) ClassHistory(c *gin.Context) {
	var q historyQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	h.byClass(c, strings.TrimSpace(c.Param("classId")), q.Limit)
}

func (h *HistoryHandler) byClass(c *gin.Context, classID string, limit int) {
	ctx := c.Request.Context()
	allowed, errAccess := h.classes.CanAccessClass(ctx, middleware.CurrentPrincipal(c), classID)
	if errAccess != nil {
		log.WithError(errAccess).Error("history: class access check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check class access failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied to this class"})
		return
	}

	records, errQuery := h.recorder.ByClass(ctx, classID, limit)
	if errQuery != nil {
		log.WithError(errQuery).Error("history: query by class failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

func (h *HistoryHandler) byRecord(c *gin.Context, tableName, recordID string) {
	ctx := c.Request.Context()
	principal := middleware.CurrentPrincipal(c)

	if tableName == classesTable {
		allowed, errAccess := h.classes.CanAccessClass(ctx, principal, recordID)
		if errAccess != nil {
			log.WithError(errAccess).Error("history: class access check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check class access failed"})
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied to this record"})
			return
		}
	}

	records, errQuery := h.recorder.ByRecord(ctx, tableName, recordID)
	if errQuery != nil {
		log.WithError(errQuery).Error("history: query by record failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list history failed"})
		return
	}
	if tableName == classesTable || principal.Role == models.RoleAdmin {
		c.JSON(http.StatusOK, gin.H{"history": records})
		return
	}

	visible, errFilter := h.visibleRecords(ctx, principal, records)
	if errFilter != nil {
		log.WithError(errFilter).Error("history: class access check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "check class access failed"})
		return
	}
	if len(records) > 0 && len(visible) == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied to this record"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": visible})
}

// visibleRecords keeps entries the caller made or whose class the caller can access.
func (h *HistoryHandler) visibleRecords(ctx context.Context, principal access.Principal, records []history.Record) ([]history.Record, error) {
	decided := make(map[string]bool)
	visible := make([]history.Record, 0, len(records))
	for _, rec := range records {
		if rec.UserID != "" && rec.UserID == principal.UserID {
			visible = append(visible, rec)
			continue
		}
		if rec.ClassID == "" {
			continue
		}
		allowed, ok := decided[rec.ClassID]
		if !ok {
			var errAccess error
			allowed, errAccess = h.classes.CanAccessClass(ctx, principal, rec.ClassID)
			if errAccess != nil {
				return nil, errAccess
			}
			decided[rec.ClassID] = allowed
		}
		if allowed {
			visible = append(visible, rec)
		}
	}
	return visible, nil
}
