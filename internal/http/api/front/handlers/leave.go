package handlers

import (
	"net/http"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LeaveHandler lets employees request time off.
type LeaveHandler struct {
	db *gorm.DB
}

// NewLeaveHandler constructs a LeaveHandler.
func NewLeaveHandler(db *gorm.DB) *LeaveHandler {
	return &LeaveHandler{db: db}
}

// createLeaveRequest defines the request body for a new leave request.
type createLeaveRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// Create files a pending leave request for the current employee.
func (h *LeaveHandler) Create(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var body createLeaveRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	start, errStart := parseDate(body.StartDate)
	if errStart != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	end, errEnd := parseDate(body.EndDate)
	if errEnd != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}
	if start.After(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date after end_date"})
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if len(reason) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason too long"})
		return
	}

	request := models.LeaveRequest{
		EmployeeID: employee.ID,
		StartDate:  datatypes.Date(start),
		EndDate:    datatypes.Date(end),
		Reason:     reason,
		Status:     models.LeaveStatusPending,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&request).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, formatLeaveRequest(&request))
}

// List returns the current employee's leave requests, newest first.
func (h *LeaveHandler) List(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var rows []models.LeaveRequest
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("employee_id = ?", employee.ID).
		Order("start_date DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatLeaveRequest(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"leave_requests": out})
}

// formatLeaveRequest converts a leave request into a response payload.
func formatLeaveRequest(r *models.LeaveRequest) gin.H {
	return gin.H{
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
}
