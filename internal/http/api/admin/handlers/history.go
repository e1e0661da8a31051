package handlers

import (
	"errors"
	"net/http"

	"github.com/lmslight/lms-core/internal/history"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// HistoryHandler serves the unrestricted audit trail to administrators.
type HistoryHandler struct {
	recorder *history.Recorder
}

// NewHistoryHandler constructs a HistoryHandler.
func NewHistoryHandler(recorder *history.Recorder) *HistoryHandler {
	return &HistoryHandler{recorder: recorder}
}

// listHistoryQuery defines the selectors accepted by List.
type listHistoryQuery struct {
	ClassID   string `form:"classId"`   // Class selector.
	TableName string `form:"tableName"` // Record table selector.
	RecordID  string `form:"recordId"`  // Record id selector.
	Limit     int    `form:"limit"`     // Class page size.
}

// List returns history by class or by record without membership checks.
func (h *HistoryHandler) List(c *gin.Context) {
	var q listHistoryQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	var (
		records  []history.Record
		errQuery error
	)
	if q.ClassID != "" {
		records, errQuery = h.recorder.ByClass(c.Request.Context(), q.ClassID, q.Limit)
	} else {
		records, errQuery = h.recorder.ByRecord(c.Request.Context(), q.TableName, q.RecordID)
	}
	if errors.Is(errQuery, history.ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classId or tableName and recordId are required"})
		return
	}
	if errQuery != nil {
		log.WithError(errQuery).Error("admin history: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}
