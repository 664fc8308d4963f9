package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProjectHandler lists projects employees can report work on.
type ProjectHandler struct {
	db *gorm.DB
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{db: db}
}

// listProjectsQuery filters the project list.
type listProjectsQuery struct {
	Status string `form:"status"`
}

// List returns projects, optionally filtered by status.
func (h *ProjectHandler) List(c *gin.Context) {
	var q listProjectsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Project{})
	if status := strings.TrimSpace(q.Status); status != "" {
		if !models.ProjectStatus(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}

	var rows []models.Project
	if errFind := query.Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatProject(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

// Get returns one project.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).First(&project, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatProject(&project))
}

// formatProject converts a project into the employee-facing payload. Pricing stays admin-only.
func formatProject(p *models.Project) gin.H {
	return gin.H{
		"id":             p.ID,
		"name":           p.Name,
		"description":    p.Description,
		"start_date":     formatDatePtr(p.StartDate),
		"end_date":       formatDatePtr(p.EndDate),
		"status":         p.Status,
		"billing_method": p.BillingMethod,
		"metric_label":   p.MetricLabel,
	}
}
