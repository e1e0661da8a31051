package handlers

import (
	"net/http"

	"github.com/lmslight/lms-core/internal/http/api/admin/permissions"
	"github.com/lmslight/lms-core/internal/http/api/middleware"

	"github.com/gin-gonic/gin"
)

// PermissionHandler lists admin route permissions.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns every definition and the keys granted to the caller.
func (h *PermissionHandler) List(c *gin.Context) {
	role := middleware.CurrentPrincipal(c).Role
	c.JSON(http.StatusOK, gin.H{
		"permissions": permissions.Definitions(),
		"granted":     permissions.ForRole(role),
	})
}
