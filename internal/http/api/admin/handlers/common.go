package handlers

import (
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

// dateRangeQuery is an optional inclusive day filter.
type dateRangeQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// apply narrows query to the range on column. It writes the error response and returns false on
// malformed dates.
func (r dateRangeQuery) apply(c *gin.Context, query *gorm.DB, column string) (*gorm.DB, bool) {
	if r.StartDate != "" {
		start, errParse := parseDate(r.StartDate)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return nil, false
		}
		query = query.Where(column+" >= ?", datatypes.Date(start))
	}
	if r.EndDate != "" {
		end, errParse := parseDate(r.EndDate)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return nil, false
		}
		query = query.Where(column+" <= ?", datatypes.Date(end))
	}
	return query, true
}

// notifyUser queues an internal message from sender to recipient on tx.
func notifyUser(tx *gorm.DB, senderID, recipientID uint64, subject, content string) error {
	message := models.InternalMessage{
		SenderID:    senderID,
		RecipientID: &recipientID,
		Subject:     subject,
		Content:     content,
	}
	return tx.Create(&message).Error
}
