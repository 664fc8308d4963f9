package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ems-hq/attendance/internal/attendance"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttendanceHandler handles clock-in, clock-out and the own attendance history.
type AttendanceHandler struct {
	db    *gorm.DB
	clock *attendance.Service
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(db *gorm.DB, clock *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{db: db, clock: clock}
}

// clockInRequest defines the optional clock-in body.
type clockInRequest struct {
	ProjectID *uint64 `json:"project_id"`
}

// ClockIn opens an attendance record for the current employee.
func (h *AttendanceHandler) ClockIn(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}

	var body clockInRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if body.ProjectID != nil {
		var count int64
		if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Project{}).
			Where("id = ? AND status = ?", *body.ProjectID, models.ProjectStatusActive).
			Count(&count).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project not found or inactive"})
			return
		}
	}

	record, errClock := h.clock.ClockIn(c.Request.Context(), employee.ID, body.ProjectID)
	if errClock != nil {
		writeClockError(c, errClock)
		return
	}
	c.JSON(http.StatusCreated, formatAttendance(record))
}

// ClockOut closes the open attendance record of the current employee.
func (h *AttendanceHandler) ClockOut(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	record, errClock := h.clock.ClockOut(c.Request.Context(), employee.ID)
	if errClock != nil {
		writeClockError(c, errClock)
		return
	}
	c.JSON(http.StatusOK, formatAttendance(record))
}

// Current returns the open attendance record, or null when clocked out.
func (h *AttendanceHandler) Current(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var record models.Attendance
	errFind := h.db.WithContext(c.Request.Context()).
		Where("employee_id = ? AND clock_out IS NULL", employee.ID).
		Order("clock_in DESC").
		First(&record).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{"clocked_in": false, "attendance": nil})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clocked_in": true, "attendance": formatAttendance(&record)})
}

// listAttendanceQuery filters the own attendance history.
type listAttendanceQuery struct {
	listQuery
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// List returns the current employee's attendance records, newest first.
func (h *AttendanceHandler) List(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var q listAttendanceQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.Attendance{}).Where("employee_id = ?", employee.ID)
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
	var rows []models.Attendance
	if errFind := query.Order("clock_in DESC").Offset(q.offset()).Limit(q.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAttendance(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"attendance": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// writeClockError maps clock service errors to responses.
func writeClockError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		c.JSON(http.StatusConflict, gin.H{"error": "already clocked in"})
	case errors.Is(err, attendance.ErrNotClockedIn):
		c.JSON(http.StatusConflict, gin.H{"error": "not clocked in"})
	case errors.Is(err, attendance.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "clock operation in progress"})
	default:
		log.WithError(err).Error("attendance: clock operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clock operation failed"})
	}
}

// formatAttendance converts an attendance record into a response payload.
func formatAttendance(a *models.Attendance) gin.H {
	var clockOut *time.Time
	if a.ClockOut != nil {
		t := a.ClockOut.UTC()
		clockOut = &t
	}
	return gin.H{
		"id":          a.ID,
		"employee_id": a.EmployeeID,
		"project_id":  a.ProjectID,
		"date":        formatDate(a.Date),
		"clock_in":    a.ClockIn.UTC(),
		"clock_out":   clockOut,
		"hours":       a.Hours(),
		"auto_closed": a.AutoClosed,
	}
}
