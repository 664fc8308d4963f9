package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// JournalHandler lists project journal entries of every employee.
type JournalHandler struct {
	db *gorm.DB
}

// NewJournalHandler constructs a JournalHandler.
func NewJournalHandler(db *gorm.DB) *JournalHandler {
	return &JournalHandler{db: db}
}

// listJournalQuery filters the journal list.
type listJournalQuery struct {
	listQuery
	dateRangeQuery
	EmployeeID uint64 `form:"employee_id"`
	ProjectID  uint64 `form:"project_id"`
	TaskType   string `form:"task_type"`
}

// List returns journal entries, newest first.
func (h *JournalHandler) List(c *gin.Context) {
	var q listJournalQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.ProjectJournal{})
	if q.EmployeeID != 0 {
		query = query.Where("employee_id = ?", q.EmployeeID)
	}
	if q.ProjectID != 0 {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.TaskType != "" {
		query = query.Where("task_type = ?", q.TaskType)
	}
	query, ok := q.dateRangeQuery.apply(c, query, "date")
	if !ok {
		return
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.ProjectJournal
	if errFind := query.Preload("Employee").Preload("Project").
		Order("date DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		e := &rows[i]
		item := gin.H{
			"id":          e.ID,
			"date":        formatDate(e.Date),
			"employee_id": e.EmployeeID,
			"project_id":  e.ProjectID,
			"object_ids":  e.ObjectIDs,
			"task_type":   e.TaskType,
			"hours_spent": e.HoursSpent,
			"status":      json.RawMessage(nonEmptyJSON(e.Status)),
			"comments":    e.Comments,
			"created_at":  e.CreatedAt,
		}
		if e.Employee != nil {
			item["employee_name"] = e.Employee.Name
		}
		if e.Project != nil {
			item["project_name"] = e.Project.Name
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// nonEmptyJSON substitutes null for an empty JSON column so the payload stays valid.
func nonEmptyJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
