package models

import (
	"time"

	"gorm.io/datatypes"
)

// BillingStatus is the lifecycle state of a billing record.
type BillingStatus string

// BillingStatus constants.
const (
	BillingStatusDraft     BillingStatus = "draft"
	BillingStatusFinalized BillingStatus = "finalized"
	BillingStatusPaid      BillingStatus = "paid"
)

// Valid reports whether s is a known billing status.
func (s BillingStatus) Valid() bool {
	return s == BillingStatusDraft || s == BillingStatusFinalized || s == BillingStatusPaid
}

// CanTransitionTo reports whether a record in status s may move to next.
// Allowed moves are draft -> finalized and finalized -> paid.
func (s BillingStatus) CanTransitionTo(next BillingStatus) bool {
	switch s {
	case BillingStatusDraft:
		return next == BillingStatusFinalized
	case BillingStatusFinalized:
		return next == BillingStatusPaid
	default:
		return false
	}
}

// BillingRecord stores the amount owed to one employee for one project over one period.
// At most one record exists per (employee, project, period).
type BillingRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RunID string `gorm:"type:varchar(36);index"` // Finalize run that produced the record; empty for manual rows.

	EmployeeID  uint64         `gorm:"not null;uniqueIndex:idx_billing_records_period;index"` // Employee ID.
	Employee    *Employee      `gorm:"foreignKey:EmployeeID"`                                 // Employee relation.
	ProjectID   *uint64        `gorm:"uniqueIndex:idx_billing_records_period"`                // Project ID; nil for manual rows.
	PeriodStart datatypes.Date `gorm:"not null;uniqueIndex:idx_billing_records_period"`       // First day of the period.
	PeriodEnd   datatypes.Date `gorm:"not null;uniqueIndex:idx_billing_records_period"`       // Last day of the period.

	TotalAmount float64        `gorm:"type:decimal(20,6);not null"`                     // Computed amount.
	Currency    string         `gorm:"type:varchar(8);not null;default:'USD'"`          // ISO currency code.
	Status      BillingStatus  `gorm:"type:varchar(20);not null;default:'draft';index"` // Lifecycle state.
	Notes       string         `gorm:"type:text"`                                       // Free-form notes.
	Details     datatypes.JSON `gorm:"type:json"`                                       // Quantity breakdown used for the amount.

	CreatedAt   time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	FinalizedAt *time.Time                                  // Finalization timestamp.
	PaidAt      *time.Time                                  // Payment timestamp.
}
