package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ems-hq/attendance/internal/billing"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BillingHandler previews, finalizes and tracks billing records.
type BillingHandler struct {
	db      *gorm.DB
	service *billing.Service
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(db *gorm.DB, service *billing.Service) *BillingHandler {
	return &BillingHandler{db: db, service: service}
}

// periodRequest defines the body of calculate and finalize.
type periodRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func bindPeriod(c *gin.Context) (billing.Period, bool) {
	var body periodRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return billing.Period{}, false
	}
	if strings.TrimSpace(body.StartDate) == "" || strings.TrimSpace(body.EndDate) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date are required"})
		return billing.Period{}, false
	}
	period, errPeriod := billing.ParsePeriod(strings.TrimSpace(body.StartDate), strings.TrimSpace(body.EndDate))
	if errPeriod != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPeriod.Error()})
		return billing.Period{}, false
	}
	return period, true
}

// Calculate prices the period without persisting anything.
func (h *BillingHandler) Calculate(c *gin.Context) {
	period, ok := bindPeriod(c)
	if !ok {
		return
	}
	summary, errPreview := h.service.Preview(c.Request.Context(), period)
	if errPreview != nil {
		log.WithError(errPreview).WithField("period", period.String()).Error("billing preview failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "calculate failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "currency": h.service.Currency()})
}

// Finalize persists the period's amounts and notifies the employees.
func (h *BillingHandler) Finalize(c *gin.Context) {
	period, ok := bindPeriod(c)
	if !ok {
		return
	}
	result, errFinalize := h.service.Finalize(c.Request.Context(), period, getUserID(c))
	if errFinalize != nil {
		if errors.Is(errFinalize, billing.ErrFinalizeInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "finalize already in progress"})
			return
		}
		log.WithError(errFinalize).WithField("period", period.String()).Error("billing finalize failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "finalize failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// manualRecordRequest defines a hand-entered record.
type manualRecordRequest struct {
	EmployeeID  uint64   `json:"employee_id"`
	ProjectID   *uint64  `json:"project_id"`
	PeriodStart string   `json:"period_start"`
	PeriodEnd   string   `json:"period_end"`
	TotalAmount *float64 `json:"total_amount"`
	Notes       string   `json:"notes"`
	Status      string   `json:"status"` // draft or finalized; empty means finalized.
}

// CreateManual stores a record entered by hand, finalized unless status is draft.
func (h *BillingHandler) CreateManual(c *gin.Context) {
	var body manualRecordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.EmployeeID == 0 || body.TotalAmount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_id and total_amount are required"})
		return
	}
	status := models.BillingStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if status != "" && status != models.BillingStatusDraft && status != models.BillingStatusFinalized {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be draft or finalized"})
		return
	}
	period, errPeriod := billing.ParsePeriod(strings.TrimSpace(body.PeriodStart), strings.TrimSpace(body.PeriodEnd))
	if errPeriod != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPeriod.Error()})
		return
	}

	record, errCreate := h.service.CreateManual(c.Request.Context(), billing.ManualRecordInput{
		EmployeeID: body.EmployeeID,
		ProjectID:  body.ProjectID,
		Period:     period,
		Amount:     *body.TotalAmount,
		Notes:      body.Notes,
		Draft:      status == models.BillingStatusDraft,
	})
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, billing.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_amount"})
		case errors.Is(errCreate, billing.ErrEmployeeNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "employee not found"})
		case errors.Is(errCreate, billing.ErrDuplicateRecord):
			c.JSON(http.StatusConflict, gin.H{"error": "record already exists for this period"})
		default:
			log.WithError(errCreate).Error("create manual billing record failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, formatBillingRecord(record))
}

// listRecordsQuery filters the billing record list.
type listRecordsQuery struct {
	listQuery
	dateRangeQuery
	EmployeeID uint64 `form:"employee_id"`
	ProjectID  uint64 `form:"project_id"`
	Status     string `form:"status"`
	RunID      string `form:"run_id"`
}

// ListRecords returns billing records, newest period first. start_date and end_date select
// records whose period overlaps the range.
func (h *BillingHandler) ListRecords(c *gin.Context) {
	var q listRecordsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.BillingRecord{})
	if q.EmployeeID != 0 {
		query = query.Where("employee_id = ?", q.EmployeeID)
	}
	if q.ProjectID != 0 {
		query = query.Where("project_id = ?", q.ProjectID)
	}
	if status := strings.TrimSpace(q.Status); status != "" {
		if !models.BillingStatus(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}
	if runID := strings.TrimSpace(q.RunID); runID != "" {
		query = query.Where("run_id = ?", runID)
	}
	// Overlap: a record ends on or after the range start and starts on or before the range end.
	query, ok := dateRangeQuery{StartDate: q.StartDate}.apply(c, query, "period_end")
	if !ok {
		return
	}
	query, ok = dateRangeQuery{EndDate: q.EndDate}.apply(c, query, "period_start")
	if !ok {
		return
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.BillingRecord
	if errFind := query.Preload("Employee").
		Order("period_start DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	sum := 0.0
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		sum += rows[i].TotalAmount
		out = append(out, formatBillingRecord(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"records": out, "page_total": sum, "total": total, "page": q.Page, "limit": q.Limit})
}

// updateStatusRequest names the next lifecycle state.
type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a record along draft, finalized and paid.
func (h *BillingHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updateStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	next := models.BillingStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if !next.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	record, errUpdate := h.service.UpdateStatus(c.Request.Context(), id, next)
	if errUpdate != nil {
		switch {
		case errors.Is(errUpdate, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errUpdate, billing.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": errUpdate.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, formatBillingRecord(record))
}

// formatBillingRecord converts a billing record into the admin payload.
func formatBillingRecord(r *models.BillingRecord) gin.H {
	out := gin.H{
		"id":           r.ID,
		"run_id":       r.RunID,
		"employee_id":  r.EmployeeID,
		"project_id":   r.ProjectID,
		"period_start": formatDate(r.PeriodStart),
		"period_end":   formatDate(r.PeriodEnd),
		"total_amount": r.TotalAmount,
		"currency":     r.Currency,
		"status":       r.Status,
		"notes":        r.Notes,
		"details":      json.RawMessage(nonEmptyJSON(r.Details)),
		"created_at":   r.CreatedAt,
		"finalized_at": r.FinalizedAt,
		"paid_at":      r.PaidAt,
	}
	if r.Employee != nil {
		out["employee_name"] = r.Employee.Name
	}
	return out
}
