package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CalendarHandler maintains the company calendar.
type CalendarHandler struct {
	db *gorm.DB
}

// NewCalendarHandler constructs a CalendarHandler.
func NewCalendarHandler(db *gorm.DB) *CalendarHandler {
	return &CalendarHandler{db: db}
}

// createEventRequest defines the event body.
type createEventRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	EventDate   string  `json:"event_date"`
	EventTime   *string `json:"event_time"`
	EventType   string  `json:"event_type"`
	IsAllDay    bool    `json:"is_all_day"`
}

// Create adds an event. All-day events drop any time given.
func (h *CalendarHandler) Create(c *gin.Context) {
	var body createEventRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	if len(title) > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title too long"})
		return
	}
	date, errDate := parseDate(body.EventDate)
	if errDate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_date"})
		return
	}
	eventType := models.EventType(strings.ToLower(strings.TrimSpace(body.EventType)))
	if eventType == "" {
		eventType = models.EventTypeCompany
	}
	if !eventType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_type"})
		return
	}

	event := models.CompanyEvent{
		Title:       title,
		Description: strings.TrimSpace(body.Description),
		EventDate:   datatypes.Date(date),
		EventType:   eventType,
		IsAllDay:    body.IsAllDay,
		CreatedBy:   getUserID(c),
	}
	if !body.IsAllDay && body.EventTime != nil && strings.TrimSpace(*body.EventTime) != "" {
		clock, errTime := time.Parse("15:04", strings.TrimSpace(*body.EventTime))
		if errTime != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_time"})
			return
		}
		formatted := clock.Format("15:04")
		event.EventTime = &formatted
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&event).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          event.ID,
		"title":       event.Title,
		"description": event.Description,
		"event_date":  formatDate(event.EventDate),
		"event_time":  event.EventTime,
		"event_type":  event.EventType,
		"is_all_day":  event.IsAllDay,
		"created_by":  event.CreatedBy,
		"created_at":  event.CreatedAt,
	})
}

// Delete removes an event.
func (h *CalendarHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.CompanyEvent{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
