package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/ems-hq/attendance/internal/models"
	internalsettings "github.com/ems-hq/attendance/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler lists and edits runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns every known setting with its effective value and when it was last stored.
func (h *SettingsHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	stored := make(map[string]*models.Setting, len(rows))
	for i := range rows {
		stored[rows[i].Key] = &rows[i]
	}

	known := internalsettings.Known()
	keys := make([]string, 0, len(known))
	for key := range known {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		item := gin.H{"key": key, "value": known[key], "stored": false}
		if row, ok := stored[key]; ok {
			item["stored"] = true
			item["updated_by"] = row.UpdatedBy
			item["updated_at"] = row.UpdatedAt
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

// upsertSettingRequest carries the raw JSON value of one setting.
type upsertSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// Upsert stores one setting. The in-memory snapshot is refreshed before responding.
func (h *SettingsHandler) Upsert(c *gin.Context) {
	var body upsertSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || len(body.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, errUpsert := internalsettings.Upsert(c.Request.Context(), h.db, c.Param("key"), body.Value, getUserID(c))
	if errUpsert != nil {
		if errors.Is(errUpsert, internalsettings.ErrUnknownKey) || errors.Is(errUpsert, internalsettings.ErrInvalidValue) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errUpsert.Error()})
			return
		}
		log.WithError(errUpsert).WithField("key", c.Param("key")).Error("upsert setting failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":        row.Key,
		"value":      json.RawMessage(row.Value),
		"updated_by": row.UpdatedBy,
		"updated_at": row.UpdatedAt,
	})
}
