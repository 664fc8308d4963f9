package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting is a runtime key/value entry editable by administrators, such as the company name or
// the billing currency.
type Setting struct {
	Key       string         `gorm:"type:varchar(100);primaryKey"` // Setting key.
	Value     datatypes.JSON `gorm:"type:json"`                    // JSON-encoded value.
	UpdatedBy *uint64                                              // User who last changed the value.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"`      // Last update timestamp.
}
