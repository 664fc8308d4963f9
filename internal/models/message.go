package models

import (
	"time"

	"gorm.io/datatypes"
)

// InternalMessage is a direct or broadcast message between users.
type InternalMessage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SenderID    uint64  `gorm:"not null;index"`         // Sending user ID.
	Sender      *User   `gorm:"foreignKey:SenderID"`    // Sending user.
	RecipientID *uint64 `gorm:"index"`                  // Receiving user ID; nil for broadcasts.
	Recipient   *User   `gorm:"foreignKey:RecipientID"` // Receiving user.

	Subject     string `gorm:"type:varchar(200);not null"` // Subject line.
	Content     string `gorm:"type:text;not null"`         // Body.
	IsBroadcast bool   `gorm:"not null;default:false"`     // Sent to every user.
	IsRead      bool   `gorm:"not null;default:false"`     // Read flag for direct messages.

	SentAt time.Time  `gorm:"not null;autoCreateTime"` // Send timestamp.
	ReadAt *time.Time                                  // First read timestamp.
}

// EventType classifies calendar events.
type EventType string

// EventType constants.
const (
	EventTypeCompany EventType = "company"
	EventTypeHoliday EventType = "holiday"
	EventTypeMeeting EventType = "meeting"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == EventTypeCompany || t == EventTypeHoliday || t == EventTypeMeeting
}

// CompanyEvent is an entry in the shared company calendar.
type CompanyEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title       string         `gorm:"type:varchar(200);not null"`                  // Event title.
	Description string         `gorm:"type:text"`                                   // Details.
	EventDate   datatypes.Date `gorm:"not null;index"`                              // Day of the event.
	EventTime   *string        `gorm:"type:varchar(5)"`                             // Start time as HH:MM; nil for all-day events.
	EventType   EventType      `gorm:"type:varchar(50);not null;default:'company'"` // Event classification.
	IsAllDay    bool           `gorm:"not null;default:false"`                      // All-day flag.
	CreatedBy   uint64         `gorm:"not null"`                                    // Author user ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
