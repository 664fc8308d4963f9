package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TrainingHandler shows employees their training assignments.
type TrainingHandler struct {
	db *gorm.DB
}

// NewTrainingHandler constructs a TrainingHandler.
func NewTrainingHandler(db *gorm.DB) *TrainingHandler {
	return &TrainingHandler{db: db}
}

// List returns the current employee's assignments with their modules.
func (h *TrainingHandler) List(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var rows []models.TrainingAssignment
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Module").
		Where("employee_id = ?", employee.ID).
		Order("is_completed ASC, assigned_at DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAssignment(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"assignments": out})
}

// Complete marks one of the current employee's assignments as done. Completing twice keeps the
// first completion time.
func (h *TrainingHandler) Complete(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var assignment models.TrainingAssignment
	if errFind := h.db.WithContext(ctx).Preload("Module").
		Where("id = ? AND employee_id = ?", id, employee.ID).
		First(&assignment).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !assignment.IsCompleted {
		now := time.Now().UTC()
		if errUpdate := h.db.WithContext(ctx).Model(&models.TrainingAssignment{}).
			Where("id = ?", assignment.ID).
			Updates(map[string]any{"is_completed": true, "completed_at": now}).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		assignment.IsCompleted = true
		assignment.CompletedAt = &now
	}
	c.JSON(http.StatusOK, formatAssignment(&assignment))
}

// formatAssignment converts an assignment into a response payload.
func formatAssignment(a *models.TrainingAssignment) gin.H {
	out := gin.H{
		"id":           a.ID,
		"module_id":    a.ModuleID,
		"employee_id":  a.EmployeeID,
		"assigned_at":  a.AssignedAt,
		"is_completed": a.IsCompleted,
		"completed_at": a.CompletedAt,
	}
	if a.Module != nil {
		out["module"] = gin.H{
			"id":              a.Module.ID,
			"title":           a.Module.Title,
			"content":         a.Module.Content,
			"target_audience": a.Module.TargetAudience,
		}
	}
	return out
}
