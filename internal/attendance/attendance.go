// Package attendance records clock-in and clock-out intervals and closes forgotten ones.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ems-hq/attendance/internal/lock"
	"github.com/ems-hq/attendance/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Clock errors.
var (
	// ErrAlreadyClockedIn is returned when the employee already has an open record.
	ErrAlreadyClockedIn = errors.New("attendance: already clocked in")
	// ErrNotClockedIn is returned when the employee has no open record to close.
	ErrNotClockedIn = errors.New("attendance: not clocked in")
	// ErrBusy is returned when a concurrent clock operation for the same employee is running.
	ErrBusy = errors.New("attendance: another clock operation is in progress")
)

const clockLockTTL = 10 * time.Second

// Service applies clock-in and clock-out with at most one open record per employee.
type Service struct {
	db     *gorm.DB
	locker lock.Locker
	nowFn  func() time.Time
}

// NewService constructs a Service. A nil locker falls back to an in-process one.
func NewService(db *gorm.DB, locker lock.Locker) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Service{db: db, locker: locker, nowFn: time.Now}
}

// ClockIn opens a record for employeeID, optionally tied to a project.
func (s *Service) ClockIn(ctx context.Context, employeeID uint64, projectID *uint64) (*models.Attendance, error) {
	release, errLock := s.acquire(ctx, employeeID)
	if errLock != nil {
		return nil, errLock
	}
	defer release()

	var record models.Attendance
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if errCount := tx.Model(&models.Attendance{}).
			Where("employee_id = ? AND clock_out IS NULL", employeeID).
			Count(&open).Error; errCount != nil {
			return errCount
		}
		if open > 0 {
			return ErrAlreadyClockedIn
		}
		now := s.nowFn().UTC()
		y, m, d := now.Date()
		record = models.Attendance{
			EmployeeID: employeeID,
			ProjectID:  projectID,
			Date:       datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)),
			ClockIn:    now,
		}
		return tx.Create(&record).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &record, nil
}

// ClockOut closes the open record of employeeID.
func (s *Service) ClockOut(ctx context.Context, employeeID uint64) (*models.Attendance, error) {
	release, errLock := s.acquire(ctx, employeeID)
	if errLock != nil {
		return nil, errLock
	}
	defer release()

	var record models.Attendance
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("employee_id = ? AND clock_out IS NULL", employeeID).
			Order("clock_in DESC").
			First(&record).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotClockedIn
			}
			return errFind
		}
		now := s.nowFn().UTC()
		if now.Before(record.ClockIn) {
			now = record.ClockIn
		}
		record.ClockOut = &now
		return tx.Model(&models.Attendance{}).Where("id = ?", record.ID).Update("clock_out", now).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &record, nil
}

func (s *Service) acquire(ctx context.Context, employeeID uint64) (lock.ReleaseFunc, error) {
	release, errLock := s.locker.Acquire(ctx, "attendance:"+strconv.FormatUint(employeeID, 10), clockLockTTL)
	if errLock != nil {
		if errors.Is(errLock, lock.ErrNotAcquired) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("attendance: acquire lock: %w", errLock)
	}
	return release, nil
}
