package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewHealthHandler constructs a HealthHandler. rdb may be nil when no redis is configured.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Healthz checks database and, when configured, redis connectivity.
func (h *HealthHandler) Healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": false})
		return
	}
	if errPing := sqlDB.PingContext(c.Request.Context()); errPing != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": false})
		return
	}
	if h.rdb != nil {
		if errPing := h.rdb.Ping(c.Request.Context()).Err(); errPing != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": true, "redis": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "database": true, "redis": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "database": true})
}
