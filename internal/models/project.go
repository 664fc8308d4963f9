package models

import (
	"time"

	"gorm.io/datatypes"
)

// BillingMethod defines how work on a project is priced.
type BillingMethod string

// BillingMethod constants.
const (
	// BillingMethodHourly prices hours worked at the billing rate.
	BillingMethodHourly BillingMethod = "hourly"
	// BillingMethodRecordCount prices processed records.
	BillingMethodRecordCount BillingMethod = "record_count"
	// BillingMethodCharacterCount prices typed characters.
	BillingMethodCharacterCount BillingMethod = "character_count"
	// BillingMethodTaskCompletion prices completed tasks.
	BillingMethodTaskCompletion BillingMethod = "task_completion"
	// BillingMethodCustomFormula prices work with a stored arithmetic formula.
	BillingMethodCustomFormula BillingMethod = "custom_formula"
)

// BillingMethods lists every supported method in display order.
var BillingMethods = []BillingMethod{
	BillingMethodHourly,
	BillingMethodRecordCount,
	BillingMethodCharacterCount,
	BillingMethodTaskCompletion,
	BillingMethodCustomFormula,
}

// Valid reports whether m is a supported billing method.
func (m BillingMethod) Valid() bool {
	for _, known := range BillingMethods {
		if m == known {
			return true
		}
	}
	return false
}

// IsCountBased reports whether the method prices a count rather than time or a formula.
func (m BillingMethod) IsCountBased() bool {
	return m == BillingMethodRecordCount || m == BillingMethodCharacterCount || m == BillingMethodTaskCompletion
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// ProjectStatus constants.
const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusCompleted, ProjectStatusOnHold, ProjectStatusCancelled:
		return true
	default:
		return false
	}
}

// Project is a billable unit of work. Only the fields relevant to BillingMethod are set.
type Project struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string          `gorm:"type:varchar(100);not null"`                 // Project name.
	Description string          `gorm:"type:varchar(300)"`                          // Short description.
	StartDate   *datatypes.Date                                                     // Planned start.
	EndDate     *datatypes.Date                                                     // Planned end.
	Status      ProjectStatus   `gorm:"type:varchar(20);not null;default:'active'"` // Lifecycle state.

	BillingMethod    BillingMethod `gorm:"type:varchar(32);not null;default:'hourly'"` // Active billing method.
	BillingRate      *float64      `gorm:"type:decimal(20,6)"`                         // Price per unit of the method quantity.
	BillingFormula   *string       `gorm:"type:text"`                                  // Arithmetic formula over quantity variables.
	MetricLabel      *string       `gorm:"type:varchar(100)"`                          // Display label for the counted metric.
	MetricDivisor    *float64      `gorm:"type:decimal(20,6)"`                         // Count divisor for the divisor/multiplier variant.
	MetricMultiplier *float64      `gorm:"type:decimal(20,6)"`                         // Price per divisor-sized batch.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
