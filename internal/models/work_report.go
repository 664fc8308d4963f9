package models

import (
	"time"

	"gorm.io/datatypes"
)

// WorkReport records work done on a project on one day.
//
// Quantity carries the measure of the project's billing method (hours for hourly projects, the
// count for count-based ones). The optional per-kind metrics let formula-billed projects combine
// several measures.
type WorkReport struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployeeID uint64    `gorm:"not null;index"`        // Reporting employee ID.
	Employee   *Employee `gorm:"foreignKey:EmployeeID"` // Reporting employee.
	ProjectID  uint64    `gorm:"not null;index"`        // Project ID.
	Project    *Project  `gorm:"foreignKey:ProjectID"`  // Project relation.

	Date        datatypes.Date `gorm:"not null;index"`     // Day the work was done.
	Description string         `gorm:"type:text;not null"` // What was done.
	Quantity    float64        `gorm:"not null;default:0"` // Method quantity.

	HoursWorked    *float64 // Hours worked, when reported separately.
	RecordCount    *float64 // Records processed, when reported separately.
	CharacterCount *float64 // Characters typed, when reported separately.
	TasksCompleted *float64 // Tasks completed, when reported separately.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// ProjectJournal is a detailed per-object log entry for a project.
type ProjectJournal struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Date       datatypes.Date `gorm:"not null;index"`        // Entry day.
	EmployeeID uint64         `gorm:"not null;index"`        // Author employee ID.
	Employee   *Employee      `gorm:"foreignKey:EmployeeID"` // Author employee.
	ProjectID  uint64         `gorm:"not null;index"`        // Project ID.
	Project    *Project       `gorm:"foreignKey:ProjectID"`  // Project relation.

	ObjectIDs  string         `gorm:"type:varchar(255)"`          // Comma-separated object identifiers.
	TaskType   string         `gorm:"type:varchar(100);not null"` // Kind of task performed.
	HoursSpent float64        `gorm:"not null"`                   // Hours spent.
	Status     datatypes.JSON `gorm:"not null"`                   // Status per object.
	Comments   string         `gorm:"type:text"`                  // Free-form notes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (ProjectJournal) TableName() string {
	return "project_journal"
}
