package admin

import (
	"net/http"

	permissions "github.com/ems-hq/attendance/internal/http/api/admin/permissions"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
)

// adminPermissionMiddleware enforces the role list of the matched admin route. Routes without a
// definition are denied.
func adminPermissionMiddleware() gin.HandlerFunc {
	permissionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		def, ok := permissionMap[permissions.Key(c.Request.Method, path)]
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		role, okRole := readUserRoleFromContext(c)
		if !okRole {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !def.Allows(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		c.Next()
	}
}

// readUserRoleFromContext extracts the role injected by the auth middleware.
func readUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	value, ok := c.Get("userRole")
	if !ok {
		return "", false
	}
	role, ok := value.(models.Role)
	return role, ok
}
