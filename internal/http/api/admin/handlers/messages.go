package handlers

import (
	"net/http"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MessageHandler sends company-wide announcements.
type MessageHandler struct {
	db *gorm.DB
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(db *gorm.DB) *MessageHandler {
	return &MessageHandler{db: db}
}

// broadcastRequest defines the announcement body.
type broadcastRequest struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// Broadcast stores one message visible in every user's inbox.
func (h *MessageHandler) Broadcast(c *gin.Context) {
	var body broadcastRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	subject := strings.TrimSpace(body.Subject)
	content := strings.TrimSpace(body.Content)
	if subject == "" || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject and content are required"})
		return
	}
	if len(subject) > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject too long"})
		return
	}

	message := models.InternalMessage{
		SenderID:    getUserID(c),
		Subject:     subject,
		Content:     content,
		IsBroadcast: true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&message).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":           message.ID,
		"sender_id":    message.SenderID,
		"subject":      message.Subject,
		"content":      message.Content,
		"is_broadcast": message.IsBroadcast,
		"sent_at":      message.SentAt,
	})
}
