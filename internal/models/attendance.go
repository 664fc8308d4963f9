package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attendance is one clock-in/clock-out interval. ClockOut is nil while the interval is open.
type Attendance struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployeeID uint64    `gorm:"not null;index"`        // Owning employee ID.
	Employee   *Employee `gorm:"foreignKey:EmployeeID"` // Owning employee.
	ProjectID  *uint64   `gorm:"index"`                 // Project worked on, if any.
	Project    *Project  `gorm:"foreignKey:ProjectID"`  // Project relation.

	Date       datatypes.Date `gorm:"not null;index"`         // Calendar day of the clock-in.
	ClockIn    time.Time      `gorm:"not null"`               // Clock-in instant (UTC).
	ClockOut   *time.Time     `gorm:"index"`                  // Clock-out instant (UTC).
	AutoClosed bool           `gorm:"not null;default:false"` // Closed by the auto-closer instead of the employee.
}

// Hours returns the length of a closed interval in hours, or 0 while it is open.
func (a *Attendance) Hours() float64 {
	if a == nil || a.ClockOut == nil {
		return 0
	}
	d := a.ClockOut.Sub(a.ClockIn)
	if d <= 0 {
		return 0
	}
	return d.Hours()
}

// LeaveStatus is the approval state of a leave request.
type LeaveStatus string

// LeaveStatus constants.
const (
	LeaveStatusPending  LeaveStatus = "pending"
	LeaveStatusApproved LeaveStatus = "approved"
	LeaveStatusDenied   LeaveStatus = "denied"
)

// LeaveRequest is an employee's request for time off.
type LeaveRequest struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	EmployeeID uint64    `gorm:"not null;index"`        // Requesting employee ID.
	Employee   *Employee `gorm:"foreignKey:EmployeeID"` // Requesting employee.

	StartDate datatypes.Date `gorm:"not null"`          // First day off (inclusive).
	EndDate   datatypes.Date `gorm:"not null"`          // Last day off (inclusive).
	Reason    string         `gorm:"type:varchar(255)"` // Free-form reason.

	Status     LeaveStatus `gorm:"type:varchar(20);not null;default:'pending';index"` // Approval state.
	ApprovedBy *uint64                                                                // Reviewing user ID.
	ApprovedAt *time.Time                                                             // Review timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
