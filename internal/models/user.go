package models

import "time"

// Role identifies what a user may do in the application.
type Role string

// Role constants.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
	RoleTrainee  Role = "trainee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee, RoleTrainee:
		return true
	default:
		return false
	}
}

// User represents a login account. Every non-admin user owns exactly one Employee profile.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:varchar(80);not null;uniqueIndex"`        // Unique login name.
	Password string `gorm:"type:text;not null"`                           // Hashed password.
	Role     Role   `gorm:"type:varchar(20);not null;default:'employee'"` // Access role.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for MFA; empty when disabled.

	Employee *Employee `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owned employee profile.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
