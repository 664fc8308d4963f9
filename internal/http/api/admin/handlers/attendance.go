package handlers

import (
	"net/http"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AttendanceHandler lists attendance across employees.
type AttendanceHandler struct {
	db *gorm.DB
}

// NewAttendanceHandler constructs an AttendanceHandler.
func NewAttendanceHandler(db *gorm.DB) *AttendanceHandler {
	return &AttendanceHandler{db: db}
}

// listAttendanceQuery filters the attendance list.
type listAttendanceQuery struct {
	listQuery
	dateRangeQuery
	EmployeeID uint64 `form:"employee_id"`
	OpenOnly   bool   `form:"open"`
}

// List returns attendance records, newest first, with employee names.
func (h *AttendanceHandler) List(c *gin.Context) {
	var q listAttendanceQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.Attendance{})
	if q.EmployeeID != 0 {
		query = query.Where("employee_id = ?", q.EmployeeID)
	}
	if q.OpenOnly {
		query = query.Where("clock_out IS NULL")
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
	var rows []models.Attendance
	if errFind := query.Preload("Employee").
		Order("clock_in DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		a := &rows[i]
		item := gin.H{
			"id":          a.ID,
			"employee_id": a.EmployeeID,
			"project_id":  a.ProjectID,
			"date":        formatDate(a.Date),
			"clock_in":    a.ClockIn.UTC(),
			"clock_out":   a.ClockOut,
			"hours":       a.Hours(),
			"auto_closed": a.AutoClosed,
		}
		if a.Employee != nil {
			item["employee_name"] = a.Employee.Name
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"attendance": out, "total": total, "page": q.Page, "limit": q.Limit})
}
