package models

import "time"

// TrainingAudience selects who a training module targets.
type TrainingAudience string

// TrainingAudience constants.
const (
	TrainingAudienceNewEmployee     TrainingAudience = "new_employee"
	TrainingAudienceProjectSpecific TrainingAudience = "project_specific"
)

// Valid reports whether a is a known audience.
func (a TrainingAudience) Valid() bool {
	return a == TrainingAudienceNewEmployee || a == TrainingAudienceProjectSpecific
}

// TrainingModule is a piece of training content.
type TrainingModule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title          string           `gorm:"type:varchar(200);not null"` // Module title.
	Content        string           `gorm:"type:text;not null"`         // Rich text content.
	TargetAudience TrainingAudience `gorm:"type:varchar(50);not null"`  // Audience selector.
	IsActive       bool             `gorm:"not null;default:true"`      // Whether the module can be assigned.
	CreatedBy      uint64           `gorm:"not null"`                   // Author user ID.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TrainingAssignment assigns a module to one employee.
type TrainingAssignment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ModuleID   uint64          `gorm:"not null;uniqueIndex:idx_training_assignment"` // Module ID.
	Module     *TrainingModule `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
	EmployeeID uint64          `gorm:"not null;uniqueIndex:idx_training_assignment"` // Employee ID.
	Employee   *Employee       `gorm:"foreignKey:EmployeeID"`

	AssignedAt  time.Time  `gorm:"not null;autoCreateTime"` // Assignment timestamp.
	IsCompleted bool       `gorm:"not null;default:false"`  // Completion flag.
	CompletedAt *time.Time                                  // Completion timestamp.
}

// ProjectTrainingAssignment links a module to a project.
type ProjectTrainingAssignment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ModuleID  uint64          `gorm:"not null;uniqueIndex:idx_project_training_assignment"` // Module ID.
	Module    *TrainingModule `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
	ProjectID uint64          `gorm:"not null;uniqueIndex:idx_project_training_assignment"` // Project ID.

	AssignedAt time.Time `gorm:"not null;autoCreateTime"` // Assignment timestamp.
}
