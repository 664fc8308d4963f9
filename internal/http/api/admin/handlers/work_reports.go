package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// errPeriodFinalized blocks edits to work already billed.
var errPeriodFinalized = errors.New("billing period already finalized")

// WorkReportHandler reviews and corrects work reports of every employee.
type WorkReportHandler struct {
	db *gorm.DB
}

// NewWorkReportHandler constructs a WorkReportHandler.
func NewWorkReportHandler(db *gorm.DB) *WorkReportHandler {
	return &WorkReportHandler{db: db}
}

// listWorkReportsQuery filters the report list.
type listWorkReportsQuery struct {
	listQuery
	dateRangeQuery
	EmployeeID uint64 `form:"employee_id"`
	ProjectID  uint64 `form:"project_id"`
}

// List returns work reports, newest first.
func (h *WorkReportHandler) List(c *gin.Context) {
	var q listWorkReportsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.WorkReport{})
	if q.EmployeeID != 0 {
		query = query.Where("employee_id = ?", q.EmployeeID)
	}
	if q.ProjectID != 0 {
		query = query.Where("project_id = ?", q.ProjectID)
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
	var rows []models.WorkReport
	if errFind := query.Preload("Employee").Preload("Project").
		Order("date DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatWorkReport(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"work_reports": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// updateWorkReportRequest defines the editable report fields. Placement (employee, project, date)
// is fixed once recorded.
type updateWorkReportRequest struct {
	Description    *string  `json:"description"`
	Quantity       *float64 `json:"quantity"`
	HoursWorked    *float64 `json:"hours_worked"`
	RecordCount    *float64 `json:"record_count"`
	CharacterCount *float64 `json:"character_count"`
	TasksCompleted *float64 `json:"tasks_completed"`
}

// Update corrects a report outside finalized billing periods.
func (h *WorkReportHandler) Update(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}
	var body updateWorkReportRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Description != nil {
		description := strings.TrimSpace(*body.Description)
		if description == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing description"})
			return
		}
		updates["description"] = description
	}
	for column, value := range map[string]*float64{
		"quantity":        body.Quantity,
		"hours_worked":    body.HoursWorked,
		"record_count":    body.RecordCount,
		"character_count": body.CharacterCount,
		"tasks_completed": body.TasksCompleted,
	} {
		if value == nil {
			continue
		}
		if math.IsNaN(*value) || math.IsInf(*value, 0) || *value < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + column})
			return
		}
		updates[column] = *value
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, formatWorkReport(report))
		return
	}
	updates["updated_at"] = time.Now().UTC()

	ctx := c.Request.Context()
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errLocked := ensureReportEditable(tx, report); errLocked != nil {
			return errLocked
		}
		if errUpdate := tx.Model(report).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		return tx.Preload("Employee").Preload("Project").First(report, report.ID).Error
	})
	if errTx != nil {
		writeReportError(c, errTx, "update failed")
		return
	}
	c.JSON(http.StatusOK, formatWorkReport(report))
}

// Delete removes a report outside finalized billing periods.
func (h *WorkReportHandler) Delete(c *gin.Context) {
	report, ok := h.loadReport(c)
	if !ok {
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errLocked := ensureReportEditable(tx, report); errLocked != nil {
			return errLocked
		}
		return tx.Delete(&models.WorkReport{}, report.ID).Error
	})
	if errTx != nil {
		writeReportError(c, errTx, "delete failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WorkReportHandler) loadReport(c *gin.Context) (*models.WorkReport, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	var report models.WorkReport
	if errFind := h.db.WithContext(c.Request.Context()).First(&report, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &report, true
}

// ensureReportEditable fails with errPeriodFinalized when a finalized or paid record covers the
// report's day for its employee and project.
func ensureReportEditable(tx *gorm.DB, report *models.WorkReport) error {
	var count int64
	errCount := tx.Model(&models.BillingRecord{}).
		Where("employee_id = ? AND project_id = ? AND period_start <= ? AND period_end >= ? AND status IN ?",
			report.EmployeeID, report.ProjectID, report.Date, report.Date,
			[]models.BillingStatus{models.BillingStatusFinalized, models.BillingStatusPaid}).
		Count(&count).Error
	if errCount != nil {
		return errCount
	}
	if count > 0 {
		return errPeriodFinalized
	}
	return nil
}

func writeReportError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, errPeriodFinalized) {
		c.JSON(http.StatusConflict, gin.H{"error": errPeriodFinalized.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

// formatWorkReport converts a work report into the admin payload.
func formatWorkReport(r *models.WorkReport) gin.H {
	out := gin.H{
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
	if r.Employee != nil {
		out["employee_name"] = r.Employee.Name
	}
	if r.Project != nil {
		out["project_name"] = r.Project.Name
	}
	return out
}

