package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JournalHandler manages the project journal of the current employee.
type JournalHandler struct {
	db *gorm.DB
}

// NewJournalHandler constructs a JournalHandler.
func NewJournalHandler(db *gorm.DB) *JournalHandler {
	return &JournalHandler{db: db}
}

// createJournalRequest defines the request body for a journal entry.
type createJournalRequest struct {
	Date       string          `json:"date"`
	ProjectID  uint64          `json:"project_id"`
	ObjectIDs  string          `json:"object_ids"`
	TaskType   string          `json:"task_type"`
	HoursSpent float64         `json:"hours_spent"`
	Status     json.RawMessage `json:"status"`
	Comments   string          `json:"comments"`
}

// Create adds a journal entry for the current employee.
func (h *JournalHandler) Create(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var body createJournalRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	date, errDate := parseDate(body.Date)
	if errDate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	taskType := strings.TrimSpace(body.TaskType)
	if taskType == "" || body.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	if math.IsNaN(body.HoursSpent) || math.IsInf(body.HoursSpent, 0) || body.HoursSpent < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours_spent"})
		return
	}
	status := datatypes.JSON(`{}`)
	if trimmed := strings.TrimSpace(string(body.Status)); trimmed != "" && trimmed != "null" {
		if !json.Valid(body.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = datatypes.JSON(body.Status)
	}

	ctx := c.Request.Context()
	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", body.ProjectID).Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project not found"})
		return
	}

	entry := models.ProjectJournal{
		Date:       datatypes.Date(date),
		EmployeeID: employee.ID,
		ProjectID:  body.ProjectID,
		ObjectIDs:  strings.TrimSpace(body.ObjectIDs),
		TaskType:   taskType,
		HoursSpent: body.HoursSpent,
		Status:     status,
		Comments:   strings.TrimSpace(body.Comments),
	}
	if errCreate := h.db.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, formatJournalEntry(&entry))
}

// List returns the current employee's journal entries, newest first.
func (h *JournalHandler) List(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var q listQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	var rows []models.ProjectJournal
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("employee_id = ?", employee.ID).
		Order("date DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatJournalEntry(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "page": q.Page, "limit": q.Limit})
}

// formatJournalEntry converts a journal entry into a response payload.
func formatJournalEntry(e *models.ProjectJournal) gin.H {
	return gin.H{
		"id":          e.ID,
		"date":        formatDate(e.Date),
		"employee_id": e.EmployeeID,
		"project_id":  e.ProjectID,
		"object_ids":  e.ObjectIDs,
		"task_type":   e.TaskType,
		"hours_spent": e.HoursSpent,
		"status":      json.RawMessage(e.Status),
		"comments":    e.Comments,
		"created_at":  e.CreatedAt,
	}
}
