package handlers

import (
	"net/http"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CalendarHandler lists company calendar events.
type CalendarHandler struct {
	db *gorm.DB
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(db *gorm.DB) *CalendarHandler {
	return &CalendarHandler{db: db}
}

// listEventsQuery selects a month or an explicit date range. The current month is the default.
type listEventsQuery struct {
	Year      int    `form:"year"`
	Month     int    `form:"month"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// List returns events inside the requested range ordered by day and time.
func (h *CalendarHandler) List(c *gin.Context) {
	var q listEventsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	var start, end time.Time
	switch {
	case q.StartDate != "" || q.EndDate != "":
		var errStart, errEnd error
		start, errStart = parseDate(q.StartDate)
		end, errEnd = parseDate(q.EndDate)
		if errStart != nil || errEnd != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date range"})
			return
		}
		if start.After(end) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date after end_date"})
			return
		}
	default:
		now := time.Now().UTC()
		year, month := now.Year(), now.Month()
		if q.Year != 0 {
			year = q.Year
		}
		if q.Month != 0 {
			if q.Month < 1 || q.Month > 12 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
				return
			}
			month = time.Month(q.Month)
		}
		start = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	}

	var rows []models.CompanyEvent
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("event_date >= ? AND event_date <= ?", datatypes.Date(start), datatypes.Date(end)).
		Order("event_date ASC, event_time ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatEvent(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"start_date": formatDate(datatypes.Date(start)),
		"end_date":   formatDate(datatypes.Date(end)),
		"events":     out,
	})
}

// formatEvent converts a calendar event into a response payload.
func formatEvent(e *models.CompanyEvent) gin.H {
	return gin.H{
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Description,
		"event_date":  formatDate(e.EventDate),
		"event_time":  e.EventTime,
		"event_type":  e.EventType,
		"is_all_day":  e.IsAllDay,
		"created_by":  e.CreatedBy,
		"created_at":  e.CreatedAt,
	}
}
