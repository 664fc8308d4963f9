package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MessageHandler handles internal messaging between users.
type MessageHandler struct {
	db *gorm.DB
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(db *gorm.DB) *MessageHandler {
	return &MessageHandler{db: db}
}

// sendMessageRequest defines the request body for a direct message.
type sendMessageRequest struct {
	RecipientID uint64 `json:"recipient_id"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
}

// Send delivers a direct message to another user.
func (h *MessageHandler) Send(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body sendMessageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	subject := strings.TrimSpace(body.Subject)
	content := strings.TrimSpace(body.Content)
	if body.RecipientID == 0 || subject == "" || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	if len(subject) > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject too long"})
		return
	}

	ctx := c.Request.Context()
	var recipient models.User
	if errFind := h.db.WithContext(ctx).Select("id", "active").First(&recipient, body.RecipientID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recipient not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	recipientID := recipient.ID
	message := models.InternalMessage{
		SenderID:    userID,
		RecipientID: &recipientID,
		Subject:     subject,
		Content:     content,
	}
	if errCreate := h.db.WithContext(ctx).Create(&message).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}
	c.JSON(http.StatusCreated, formatMessage(&message))
}

// Inbox returns direct messages to the user plus every broadcast, newest first.
func (h *MessageHandler) Inbox(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var q listQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	var rows []models.InternalMessage
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Sender").
		Where("recipient_id = ? OR is_broadcast = ?", userID, true).
		Order("sent_at DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatMessage(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "page": q.Page, "limit": q.Limit})
}

// Sent returns messages the user sent, newest first.
func (h *MessageHandler) Sent(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var q listQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	var rows []models.InternalMessage
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("sender_id = ?", userID).
		Order("sent_at DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatMessage(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out, "page": q.Page, "limit": q.Limit})
}

// Get returns one message visible to the user and marks direct messages to the user as read.
func (h *MessageHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var message models.InternalMessage
	if errFind := h.db.WithContext(ctx).Preload("Sender").
		Where("id = ? AND (recipient_id = ? OR sender_id = ? OR is_broadcast = ?)", id, userID, userID, true).
		First(&message).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if message.RecipientID != nil && *message.RecipientID == userID && !message.IsRead {
		now := time.Now().UTC()
		if errUpdate := h.db.WithContext(ctx).Model(&models.InternalMessage{}).
			Where("id = ?", message.ID).
			Updates(map[string]any{"is_read": true, "read_at": now}).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		message.IsRead = true
		message.ReadAt = &now
	}
	c.JSON(http.StatusOK, formatMessage(&message))
}

// UnreadCount returns the number of unread direct messages.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.InternalMessage{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// formatMessage converts a message into a response payload.
func formatMessage(m *models.InternalMessage) gin.H {
	out := gin.H{
		"id":           m.ID,
		"sender_id":    m.SenderID,
		"recipient_id": m.RecipientID,
		"subject":      m.Subject,
		"content":      m.Content,
		"is_broadcast": m.IsBroadcast,
		"is_read":      m.IsRead,
		"sent_at":      m.SentAt,
		"read_at":      m.ReadAt,
	}
	if m.Sender != nil {
		out["sender_username"] = m.Sender.Username
	}
	return out
}
