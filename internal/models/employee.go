package models

import (
	"time"

	"gorm.io/datatypes"
)

// Employee is the HR profile attached to a user account.
type Employee struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID"`    // Owning user.

	Name           string          `gorm:"type:varchar(100);not null"`             // Full name.
	Email          string          `gorm:"type:varchar(100);not null;uniqueIndex"` // Contact email.
	Phone          string          `gorm:"type:varchar(20)"`                       // Phone number.
	Department     string          `gorm:"type:varchar(100)"`                      // Department name.
	Position       string          `gorm:"type:varchar(100)"`                      // Job title.
	HireDate       *datatypes.Date                                                 // Hire date, if known.
	ProfilePicture string          `gorm:"type:varchar(200)"`                      // Stored picture name, managed elsewhere.

	Skills                  string `gorm:"type:text"` // Free-form skills list.
	Qualifications          string `gorm:"type:text"` // Degrees and certificates.
	ProfessionalDevelopment string `gorm:"type:text"` // Completed courses.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Company holds the single company information row.
type Company struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	Name    string `gorm:"type:varchar(100)"`        // Company name.
	Address string `gorm:"type:varchar(200)"`        // Postal address.
	Email   string `gorm:"type:varchar(100)"`        // Contact email.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
