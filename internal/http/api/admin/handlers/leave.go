package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// errLeaveNotPending is returned when a reviewed request is reviewed again.
var errLeaveNotPending = errors.New("leave request is not pending")

// LeaveHandler reviews leave requests.
type LeaveHandler struct {
	db *gorm.DB
}

// NewLeaveHandler constructs a LeaveHandler.
func NewLeaveHandler(db *gorm.DB) *LeaveHandler {
	return &LeaveHandler{db: db}
}

// listLeaveQuery filters the leave request list.
type listLeaveQuery struct {
	listQuery
	Status     string `form:"status"`
	EmployeeID uint64 `form:"employee_id"`
}

// List returns leave requests, pending first then newest.
func (h *LeaveHandler) List(c *gin.Context) {
	var q listLeaveQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.LeaveRequest{})
	if status := strings.TrimSpace(q.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if q.EmployeeID != 0 {
		query = query.Where("employee_id = ?", q.EmployeeID)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.LeaveRequest
	if errFind := query.Preload("Employee").
		Order("CASE WHEN status = 'pending' THEN 0 ELSE 1 END, created_at DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatLeaveRequest(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"leave_requests": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// Approve approves a pending request and notifies the employee.
func (h *LeaveHandler) Approve(c *gin.Context) {
	h.review(c, models.LeaveStatusApproved)
}

// Deny denies a pending request and notifies the employee.
func (h *LeaveHandler) Deny(c *gin.Context) {
	h.review(c, models.LeaveStatusDenied)
}

func (h *LeaveHandler) review(c *gin.Context, status models.LeaveStatus) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	reviewerID := getUserID(c)

	var request models.LeaveRequest
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Preload("Employee").First(&request, id).Error; errFind != nil {
			return errFind
		}
		if request.Status != models.LeaveStatusPending {
			return errLeaveNotPending
		}

		now := time.Now().UTC()
		res := tx.Model(&models.LeaveRequest{}).
			Where("id = ? AND status = ?", request.ID, models.LeaveStatusPending).
			Updates(map[string]any{"status": status, "approved_by": reviewerID, "approved_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLeaveNotPending
		}
		request.Status = status
		request.ApprovedBy = &reviewerID
		request.ApprovedAt = &now

		if request.Employee == nil {
			return nil
		}
		subject := fmt.Sprintf("Leave Request %s", strings.ToUpper(string(status[:1]))+string(status[1:]))
		content := fmt.Sprintf("Your leave request from %s to %s has been %s.",
			formatDate(request.StartDate), formatDate(request.EndDate), status)
		return notifyUser(tx, reviewerID, request.Employee.UserID, subject, content)
	})
	if errTx != nil {
		switch {
		case errors.Is(errTx, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errTx, errLeaveNotPending):
			c.JSON(http.StatusConflict, gin.H{"error": errLeaveNotPending.Error()})
		default:
			log.WithError(errTx).WithField("leave_request_id", id).Error("review leave request failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, formatLeaveRequest(&request))
}

// formatLeaveRequest converts a leave request into the admin payload.
func formatLeaveRequest(r *models.LeaveRequest) gin.H {
	out := gin.H{
		"id":          r.ID,
		"employee_id": r.EmployeeID,
		"start_date":  formatDate(r.StartDate),
		"end_date":    formatDate(r.EndDate),
		"reason":      r.Reason,
		"status":      r.Status,
		"approved_by": r.ApprovedBy,
		"approved_at": r.ApprovedAt,
		"created_at":  r.CreatedAt,
	}
	if r.Employee != nil {
		out["employee_name"] = r.Employee.Name
	}
	return out
}
