package attendance

import (
	"context"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	internalsettings "github.com/ems-hq/attendance/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultAutoCloseInterval = 15 * time.Minute
	autoCloseBatchSize       = 500
)

// AutoCloser periodically closes attendance records left open longer than the configured number
// of hours. The record is closed at clock-in plus that many hours and flagged AutoClosed.
type AutoCloser struct {
	db           *gorm.DB
	interval     time.Duration
	defaultHours int
	nowFn        func() time.Time
}

// NewAutoCloser builds an AutoCloser. defaultHours applies while the
// ATTENDANCE_AUTO_CLOSE_HOURS setting is absent. Zero, from either source, disables closing.
func NewAutoCloser(db *gorm.DB, interval time.Duration, defaultHours int) *AutoCloser {
	if db == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultAutoCloseInterval
	}
	if defaultHours < 0 {
		defaultHours = 0
	}
	return &AutoCloser{db: db, interval: interval, defaultHours: defaultHours, nowFn: time.Now}
}

// Run closes stale records every interval until ctx is done.
func (a *AutoCloser) Run(ctx context.Context) error {
	if a == nil {
		return nil
	}
	log.Infof("attendance auto-closer started (interval=%s)", a.interval)
	for {
		if ctx.Err() != nil {
			return nil
		}
		a.closeOnce(ctx)
		timer := time.NewTimer(a.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return nil
		case <-timer.C:
		}
	}
}

// thresholdHours returns the effective auto-close threshold.
func (a *AutoCloser) thresholdHours() int {
	return internalsettings.DBConfigInt(internalsettings.AttendanceAutoCloseHoursKey, a.defaultHours)
}

// closeOnce closes every record open longer than the threshold and returns how many it closed.
func (a *AutoCloser) closeOnce(ctx context.Context) int {
	hours := a.thresholdHours()
	if hours <= 0 {
		return 0
	}
	limit := time.Duration(hours) * time.Hour
	cutoff := a.nowFn().UTC().Add(-limit)

	closed := 0
	for {
		if ctx.Err() != nil {
			return closed
		}
		var stale []models.Attendance
		if errFind := a.db.WithContext(ctx).
			Where("clock_out IS NULL AND clock_in < ?", cutoff).
			Order("clock_in ASC").
			Limit(autoCloseBatchSize).
			Find(&stale).Error; errFind != nil {
			log.WithError(errFind).Warn("attendance auto-closer: query open records failed")
			return closed
		}
		if len(stale) == 0 {
			break
		}
		for _, record := range stale {
			clockOut := record.ClockIn.Add(limit).UTC()
			res := a.db.WithContext(ctx).Model(&models.Attendance{}).
				Where("id = ? AND clock_out IS NULL", record.ID).
				Updates(map[string]any{"clock_out": clockOut, "auto_closed": true})
			if res.Error != nil {
				log.WithError(res.Error).WithField("attendance_id", record.ID).Warn("attendance auto-closer: close failed")
				return closed
			}
			closed += int(res.RowsAffected)
		}
		if len(stale) < autoCloseBatchSize {
			break
		}
	}

	if closed > 0 {
		log.Infof("attendance auto-closer: closed %d records (cutoff=%s threshold_hours=%d)", closed, cutoff.Format(time.RFC3339), hours)
	}
	return closed
}
