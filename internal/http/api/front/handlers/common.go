package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/billing"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// getUserRole extracts the user role from gin context.
func getUserRole(c *gin.Context) models.Role {
	val, exists := c.Get("userRole")
	if !exists {
		return ""
	}
	role, _ := val.(models.Role)
	return role
}

// currentUser loads the signed-in user account, optionally narrowed or preloaded by scope. It
// writes the error response and returns false when the account cannot be loaded.
func currentUser(c *gin.Context, db *gorm.DB, scope func(*gorm.DB) *gorm.DB) (*models.User, bool) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	q := db.WithContext(c.Request.Context())
	if scope != nil {
		q = scope(q)
	}
	var user models.User
	if errFind := q.First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &user, true
}

// currentEmployee loads the employee profile of the signed-in user. It writes the error response
// and returns false when the profile cannot be loaded.
func currentEmployee(c *gin.Context, db *gorm.DB) (*models.Employee, bool) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	var employee models.Employee
	if errFind := db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&employee).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee profile not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &employee, true
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parseDate parses a YYYY-MM-DD day.
func parseDate(value string) (time.Time, error) {
	return time.Parse(billing.DateLayout, strings.TrimSpace(value))
}

// formatDate renders a date column as YYYY-MM-DD.
func formatDate(d datatypes.Date) string {
	return time.Time(d).UTC().Format(billing.DateLayout)
}

// formatDatePtr renders an optional date column.
func formatDatePtr(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}
	out := formatDate(*d)
	return &out
}

// listQuery defines pagination parameters shared by list endpoints.
type listQuery struct {
	Page  int `form:"page,default=1"`
	Limit int `form:"limit,default=20"`
}

// normalize clamps pagination to sane bounds.
func (q *listQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}

// offset returns the row offset of the current page.
func (q listQuery) offset() int {
	return (q.Page - 1) * q.Limit
}

// validMeasure reports whether v is a usable non-negative quantity.
func validMeasure(v *float64) bool {
	return v == nil || (*v >= 0 && !math.IsNaN(*v) && !math.IsInf(*v, 0))
}
