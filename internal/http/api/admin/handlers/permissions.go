package handlers

import (
	"net/http"

	permissions "github.com/ems-hq/attendance/internal/http/api/admin/permissions"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
)

// PermissionHandler exposes the admin route catalogue.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns all permission definitions and whether the caller's role may use each one.
func (h *PermissionHandler) List(c *gin.Context) {
	role, _ := c.Get("userRole")
	callerRole, _ := role.(models.Role)

	defs := permissions.Definitions()
	out := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		out = append(out, gin.H{
			"key":     def.Key,
			"method":  def.Method,
			"path":    def.Path,
			"label":   def.Label,
			"module":  def.Module,
			"roles":   def.Roles,
			"allowed": def.Allows(callerRole),
		})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out})
}
