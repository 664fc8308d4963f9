package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkReportHandler lets employees manage their daily work reports.
type WorkReportHandler struct {
	db *gorm.DB
}

// NewWorkReportHandler constructs a WorkReportHandler.
func NewWorkReportHandler(db *gorm.DB) *WorkReportHandler {
	return &WorkReportHandler{db: db}
}

// workReportRequest defines the create and update body. Update applies only the fields present.
type workReportRequest struct {
	ProjectID      *uint64  `json:"project_id"`
	Date           *string  `json:"date"`
	Description    *string  `json:"description"`
	Quantity       *float64 `json:"quantity"`
	HoursWorked    *float64 `json:"hours_worked"`
	RecordCount    *float64 `json:"record_count"`
	CharacterCount *float64 `json:"character_count"`
	TasksCompleted *float64 `json:"tasks_completed"`
}

// validateMeasures checks every numeric field for a finite non-negative value.
func (r *workReportRequest) validateMeasures() string {
	if r.Quantity != nil && (math.IsNaN(*r.Quantity) || math.IsInf(*r.Quantity, 0) || *r.Quantity < 0) {
		return "invalid quantity"
	}
	if !validMeasure(r.HoursWorked) || !validMeasure(r.RecordCount) ||
		!validMeasure(r.CharacterCount) || !validMeasure(r.TasksCompleted) {
		return "metrics must be non-negative"
	}
	return ""
}

// Create stores a work report for the current employee.
func (h *WorkReportHandler) Create(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var body workReportRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ProjectID == nil || body.Date == nil || body.Description == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	description := strings.TrimSpace(*body.Description)
	if description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing description"})
		return
	}
	date, errDate := parseDate(*body.Date)
	if errDate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}
	if msg := body.validateMeasures(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	var project models.Project
	if errFind := h.db.WithContext(ctx).Select("id").First(&project, *body.ProjectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	locked, errLocked := reportPeriodFinalized(h.db.WithContext(ctx), employee.ID, project.ID, date)
	if errLocked != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if locked {
		c.JSON(http.StatusConflict, gin.H{"error": "billing period already finalized"})
		return
	}

	report := models.WorkReport{
		EmployeeID:     employee.ID,
		ProjectID:      project.ID,
		Date:           datatypes.Date(date),
		Description:    description,
		HoursWorked:    body.HoursWorked,
		RecordCount:    body.RecordCount,
		CharacterCount: body.CharacterCount,
		TasksCompleted: body.TasksCompleted,
	}
	if body.Quantity != nil {
		report.Quantity = *body.Quantity
	}
	if errCreate := h.db.WithContext(ctx).Create(&report).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, formatWorkReport(&report))
}

// listWorkReportsQuery filters the own report list.
type listWorkReportsQuery struct {
	listQuery
	ProjectID uint64 `form:"project_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// List returns the current employee's work reports, newest first.
func (h *WorkReportHandler) List(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var q listWorkReportsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.WorkReport{}).Where("employee_id = ?", employee.ID)
	if q.ProjectID != 0 {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if q.StartDate != "" {
		start, errParse := parseDate(q.StartDate)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		query = query.Where("date >= ?", datatypes.Date(start))
	}
	if q.EndDate != "" {
		end, errParse := parseDate(q.EndDate)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		query = query.Where("date <= ?", datatypes.Date(end))
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.WorkReport
	if errFind := query.Order("date DESC, id DESC").Offset(q.offset()).Limit(q.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatWorkReport(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"work_reports": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// Update edits one of the current employee's reports.
func (h *WorkReportHandler) Update(c *gin.Context) {
	report, ok := h.loadOwnReport(c)
	if !ok {
		return
	}
	var body workReportRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if msg := body.validateMeasures(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	updates := map[string]any{}
	if body.ProjectID != nil && *body.ProjectID != report.ProjectID {
		var count int64
		if errCount := h.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", *body.ProjectID).Count(&count).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project not found"})
			return
		}
		updates["project_id"] = *body.ProjectID
	}
	if body.Date != nil {
		date, errDate := parseDate(*body.Date)
		if errDate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		updates["date"] = datatypes.Date(date)
	}
	if body.Description != nil {
		description := strings.TrimSpace(*body.Description)
		if description == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing description"})
			return
		}
		updates["description"] = description
	}
	if body.Quantity != nil {
		updates["quantity"] = *body.Quantity
	}
	if body.HoursWorked != nil {
		updates["hours_worked"] = *body.HoursWorked
	}
	if body.RecordCount != nil {
		updates["record_count"] = *body.RecordCount
	}
	if body.CharacterCount != nil {
		updates["character_count"] = *body.CharacterCount
	}
	if body.TasksCompleted != nil {
		updates["tasks_completed"] = *body.TasksCompleted
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, formatWorkReport(report))
		return
	}

	// Both the old and the new placement must be outside finalized periods.
	targetProject := report.ProjectID
	if v, okProject := updates["project_id"].(uint64); okProject {
		targetProject = v
	}
	targetDate := time.Time(report.Date)
	if v, okDate := updates["date"].(datatypes.Date); okDate {
		targetDate = time.Time(v)
	}
	for _, check := range []struct {
		project uint64
		date    time.Time
	}{{report.ProjectID, time.Time(report.Date)}, {targetProject, targetDate}} {
		locked, errLocked := reportPeriodFinalized(h.db.WithContext(ctx), report.EmployeeID, check.project, check.date)
		if errLocked != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if locked {
			c.JSON(http.StatusConflict, gin.H{"error": "billing period already finalized"})
			return
		}
	}

	updates["updated_at"] = time.Now().UTC()
	if errUpdate := h.db.WithContext(ctx).Model(report).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if errReload := h.db.WithContext(ctx).First(report, report.ID).Error; errReload != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatWorkReport(report))
}

// Delete removes one of the current employee's reports.
func (h *WorkReportHandler) Delete(c *gin.Context) {
	report, ok := h.loadOwnReport(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	locked, errLocked := reportPeriodFinalized(h.db.WithContext(ctx), report.EmployeeID, report.ProjectID, time.Time(report.Date))
	if errLocked != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if locked {
		c.JSON(http.StatusConflict, gin.H{"error": "billing period already finalized"})
		return
	}
	if errDelete := h.db.WithContext(ctx).Delete(&models.WorkReport{}, report.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// loadOwnReport loads the report named by the id parameter when it belongs to the current
// employee. Reports of other employees answer 404.
func (h *WorkReportHandler) loadOwnReport(c *gin.Context) (*models.WorkReport, bool) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return nil, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	var report models.WorkReport
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND employee_id = ?", id, employee.ID).
		First(&report).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &report, true
}

// reportPeriodFinalized reports whether a finalized or paid billing record already covers the
// day for the employee and project.
func reportPeriodFinalized(db *gorm.DB, employeeID, projectID uint64, day time.Time) (bool, error) {
	var count int64
	errCount := db.Model(&models.BillingRecord{}).
		Where("employee_id = ? AND project_id = ? AND period_start <= ? AND period_end >= ? AND status IN ?",
			employeeID, projectID, datatypes.Date(day), datatypes.Date(day),
			[]models.BillingStatus{models.BillingStatusFinalized, models.BillingStatusPaid}).
		Count(&count).Error
	return count > 0, errCount
}

// formatWorkReport converts a work report into a response payload.
func formatWorkReport(r *models.WorkReport) gin.H {
	return gin.H{
		"id":              r.ID,
		"employee_id":     r.EmployeeID,
		"project_id":      r.ProjectID,
		"date":            formatDate(r.Date),
		"description":     r.Description,
		"quantity":        r.Quantity,
		"hours_worked":    r.HoursWorked,
		"record_count":    r.RecordCount,
		"character_count": r.CharacterCount,
		"tasks_completed": r.TasksCompleted,
		"created_at":      r.CreatedAt,
		"updated_at":      r.UpdatedAt,
	}
}
