package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/lock"
	"github.com/ems-hq/attendance/internal/models"
	internalsettings "github.com/ems-hq/attendance/internal/settings"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service errors.
var (
	// ErrFinalizeInProgress is returned when another finalize run holds the lock.
	ErrFinalizeInProgress = errors.New("billing: finalize already in progress")
	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("billing: invalid status transition")
	// ErrEmployeeNotFound is returned when a manual record names an unknown employee.
	ErrEmployeeNotFound = errors.New("billing: employee not found")
	// ErrDuplicateRecord is returned when a record for the employee, project and period exists.
	ErrDuplicateRecord = errors.New("billing: record already exists for this period")
	// ErrInvalidAmount is returned for negative or non-finite manual amounts.
	ErrInvalidAmount = errors.New("billing: invalid amount")
)

const (
	defaultCurrency = "USD"
	finalizeLockTTL = 2 * time.Minute
)

// FinalizeLockKey serializes finalize runs. A single key keeps overlapping periods from being
// priced against each other's uncommitted records.
const FinalizeLockKey = "billing:finalize"

// ServiceOptions tunes a Service.
type ServiceOptions struct {
	Currency         string      // ISO currency stored on records; defaults to USD.
	FormulaMaxLength int         // Formula length limit; defaults to DefaultFormulaMaxLength.
	Locker           lock.Locker // Finalize guard; defaults to an in-process locker.
}

// Service runs billing over the database: preview, finalize, manual records and status changes.
type Service struct {
	db               *gorm.DB
	locker           lock.Locker
	currency         string
	formulaMaxLength int
	nowFn            func() time.Time
}

// NewService constructs a billing service.
func NewService(db *gorm.DB, opts ServiceOptions) *Service {
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Service{
		db:               db,
		locker:           locker,
		currency:         currency,
		formulaMaxLength: opts.FormulaMaxLength,
		nowFn:            time.Now,
	}
}

// Currency returns the currency stamped on new records. The BILLING_CURRENCY setting overrides
// the configured default.
func (s *Service) Currency() string {
	return strings.ToUpper(internalsettings.DBConfigString(internalsettings.BillingCurrencyKey, s.currency))
}

// Preview prices every work report in period without persisting anything.
func (s *Service) Preview(ctx context.Context, period Period) (Summary, error) {
	return s.summarize(ctx, period, nil)
}

// summarize loads projects and the reports in period and prices them. Reports for which skip
// returns true are left out.
func (s *Service) summarize(ctx context.Context, period Period, skip func(*models.WorkReport) bool) (Summary, error) {
	var projects []models.Project
	if errFind := s.db.WithContext(ctx).Order("id ASC").Find(&projects).Error; errFind != nil {
		return Summary{}, fmt.Errorf("billing: load projects: %w", errFind)
	}
	inputs := make(map[uint64]ProjectInput, len(projects))
	for i := range projects {
		p := &projects[i]
		cfg := ProjectBillingFrom(p)
		cfg.FormulaMaxLength = s.formulaMaxLength
		inputs[p.ID] = ProjectInput{ID: p.ID, Name: p.Name, Billing: cfg}
	}

	var reports []models.WorkReport
	if errFind := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", datatypes.Date(period.Start), datatypes.Date(period.End)).
		Order("id ASC").
		Find(&reports).Error; errFind != nil {
		return Summary{}, fmt.Errorf("billing: load work reports: %w", errFind)
	}
	reportInputs := make([]ReportInput, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if skip != nil && skip(r) {
			continue
		}
		method := inputs[r.ProjectID].Billing.Method
		reportInputs = append(reportInputs, ReportInput{
			EmployeeID: r.EmployeeID,
			ProjectID:  r.ProjectID,
			Date:       time.Time(r.Date),
			Quantities: QuantitiesFromReport(method, r),
		})
	}

	summary := Run(period, inputs, reportInputs)
	if errNames := s.attachEmployeeNames(ctx, &summary); errNames != nil {
		return Summary{}, errNames
	}
	for _, w := range summary.Warnings {
		log.WithFields(log.Fields{
			"employee_id": w.EmployeeID,
			"project_id":  w.ProjectID,
			"period":      period.String(),
		}).Warn(w.Message)
	}
	return summary, nil
}

// billedSpans maps an employee and project to the periods already covered by finalized or paid
// records.
type billedSpans map[lineKey][]Period

func (b billedSpans) covers(r *models.WorkReport) bool {
	for _, span := range b[lineKey{employeeID: r.EmployeeID, projectID: r.ProjectID}] {
		if span.Contains(time.Time(r.Date)) {
			return true
		}
	}
	return false
}

// loadBilledSpans returns the finalized or paid project records overlapping period.
func (s *Service) loadBilledSpans(ctx context.Context, period Period) (billedSpans, error) {
	var records []models.BillingRecord
	if errFind := s.db.WithContext(ctx).
		Select("employee_id", "project_id", "period_start", "period_end").
		Where("project_id IS NOT NULL AND period_start <= ? AND period_end >= ? AND status IN ?",
			datatypes.Date(period.End), datatypes.Date(period.Start),
			[]models.BillingStatus{models.BillingStatusFinalized, models.BillingStatusPaid}).
		Find(&records).Error; errFind != nil {
		return nil, fmt.Errorf("billing: load billed periods: %w", errFind)
	}
	spans := make(billedSpans, len(records))
	for _, r := range records {
		key := lineKey{employeeID: r.EmployeeID, projectID: *r.ProjectID}
		spans[key] = append(spans[key], Period{
			Start: DateOnly(time.Time(r.PeriodStart)),
			End:   DateOnly(time.Time(r.PeriodEnd)),
		})
	}
	return spans, nil
}

func (s *Service) attachEmployeeNames(ctx context.Context, summary *Summary) error {
	if len(summary.Employees) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(summary.Employees))
	for _, e := range summary.Employees {
		ids = append(ids, e.EmployeeID)
	}
	var employees []models.Employee
	if errFind := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&employees).Error; errFind != nil {
		return fmt.Errorf("billing: load employees: %w", errFind)
	}
	names := make(map[uint64]string, len(employees))
	for _, e := range employees {
		names[e.ID] = e.Name
	}
	for i := range summary.Employees {
		summary.Employees[i].EmployeeName = names[summary.Employees[i].EmployeeID]
	}
	return nil
}

// FinalizeResult reports what a finalize run persisted.
type FinalizeResult struct {
	RunID    string  `json:"run_id"`
	Summary  Summary `json:"summary"`
	Created  int     `json:"created"`
	Skipped  int     `json:"skipped"`
	Notified int     `json:"notified"`
}

// recordDetails is the JSON breakdown stored on generated records.
type recordDetails struct {
	ProjectName string               `json:"project_name"`
	Method      models.BillingMethod `json:"billing_method"`
	Quantities  Quantities           `json:"quantities"`
	Reports     int                  `json:"reports"`
	Basis       Basis                `json:"basis"`
	Warning     string               `json:"warning,omitempty"`
}

// Finalize prices period and stores one finalized record per employee and project with a
// positive amount. Work reports dated inside a finalized or paid record for the same employee and
// project are left out, so overlapping periods never bill the same day twice and finalizing the
// same period again creates nothing. Pairs whose reports are all covered count as skipped. Each
// employee with new records receives an internal message from senderUserID.
func (s *Service) Finalize(ctx context.Context, period Period, senderUserID uint64) (*FinalizeResult, error) {
	release, errLock := s.locker.Acquire(ctx, FinalizeLockKey, finalizeLockTTL)
	if errLock != nil {
		if errors.Is(errLock, lock.ErrNotAcquired) {
			return nil, ErrFinalizeInProgress
		}
		return nil, fmt.Errorf("billing: acquire finalize lock: %w", errLock)
	}
	defer release()

	billed, errBilled := s.loadBilledSpans(ctx, period)
	if errBilled != nil {
		return nil, errBilled
	}
	covered := make(map[lineKey]struct{})
	summary, errSummary := s.summarize(ctx, period, func(r *models.WorkReport) bool {
		if !billed.covers(r) {
			return false
		}
		covered[lineKey{employeeID: r.EmployeeID, projectID: r.ProjectID}] = struct{}{}
		return true
	})
	if errSummary != nil {
		return nil, errSummary
	}

	result := &FinalizeResult{RunID: uuid.NewString(), Summary: summary}
	for _, employee := range summary.Employees {
		for _, line := range employee.Projects {
			if line.Amount > 0 {
				delete(covered, lineKey{employeeID: employee.EmployeeID, projectID: line.ProjectID})
			}
		}
	}
	result.Skipped = len(covered)
	now := s.nowFn().UTC()
	currency := s.Currency()

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, employee := range summary.Employees {
			created := 0
			createdTotal := 0.0
			for _, line := range employee.Projects {
				if line.Amount <= 0 {
					continue
				}
				details, errMarshal := json.Marshal(recordDetails{
					ProjectName: line.ProjectName,
					Method:      line.Method,
					Quantities:  line.Quantities,
					Reports:     line.Reports,
					Basis:       line.Basis,
					Warning:     line.Warning,
				})
				if errMarshal != nil {
					return errMarshal
				}
				projectID := line.ProjectID
				finalizedAt := now
				record := models.BillingRecord{
					RunID:       result.RunID,
					EmployeeID:  employee.EmployeeID,
					ProjectID:   &projectID,
					PeriodStart: datatypes.Date(period.Start),
					PeriodEnd:   datatypes.Date(period.End),
					TotalAmount: line.Amount,
					Currency:    currency,
					Status:      models.BillingStatusFinalized,
					Details:     datatypes.JSON(details),
					FinalizedAt: &finalizedAt,
				}
				res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
				if res.Error != nil {
					return fmt.Errorf("billing: create record: %w", res.Error)
				}
				if res.RowsAffected == 0 {
					result.Skipped++
					continue
				}
				created++
				createdTotal += line.Amount
			}
			if created == 0 {
				continue
			}
			result.Created += created

			var emp models.Employee
			if errFind := tx.Select("id", "user_id").First(&emp, employee.EmployeeID).Error; errFind != nil {
				if errors.Is(errFind, gorm.ErrRecordNotFound) {
					continue
				}
				return errFind
			}
			recipientID := emp.UserID
			message := models.InternalMessage{
				SenderID:    senderUserID,
				RecipientID: &recipientID,
				Subject:     "Billing Finalized",
				Content: fmt.Sprintf("Your billing for the period %s to %s has been finalized. Your total earnings are %.2f %s.",
					summary.PeriodStart, summary.PeriodEnd, createdTotal, currency),
			}
			if errCreate := tx.Create(&message).Error; errCreate != nil {
				return fmt.Errorf("billing: notify employee %d: %w", employee.EmployeeID, errCreate)
			}
			result.Notified++
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	log.WithFields(log.Fields{
		"run_id":  result.RunID,
		"period":  period.String(),
		"created": result.Created,
		"skipped": result.Skipped,
	}).Info("billing finalized")
	return result, nil
}

// ManualRecordInput describes a hand-entered billing record.
type ManualRecordInput struct {
	EmployeeID uint64
	ProjectID  *uint64
	Period     Period
	Amount     float64
	Notes      string
	Draft      bool // Stored as draft for later review instead of finalized.
}

// CreateManual stores a record entered by an administrator. Records are finalized unless Draft is
// set. Only one record may exist per employee, project (or no project) and period.
func (s *Service) CreateManual(ctx context.Context, in ManualRecordInput) (*models.BillingRecord, error) {
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount < 0 {
		return nil, ErrInvalidAmount
	}

	var record models.BillingRecord
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employee models.Employee
		if errFind := tx.Select("id").First(&employee, in.EmployeeID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrEmployeeNotFound
			}
			return errFind
		}

		q := tx.Model(&models.BillingRecord{}).
			Where("employee_id = ? AND period_start = ? AND period_end = ?",
				in.EmployeeID, datatypes.Date(in.Period.Start), datatypes.Date(in.Period.End))
		if in.ProjectID != nil {
			q = q.Where("project_id = ?", *in.ProjectID)
		} else {
			q = q.Where("project_id IS NULL")
		}
		var count int64
		if errCount := q.Count(&count).Error; errCount != nil {
			return errCount
		}
		if count > 0 {
			return ErrDuplicateRecord
		}

		record = models.BillingRecord{
			EmployeeID:  in.EmployeeID,
			ProjectID:   in.ProjectID,
			PeriodStart: datatypes.Date(in.Period.Start),
			PeriodEnd:   datatypes.Date(in.Period.End),
			TotalAmount: in.Amount,
			Currency:    s.Currency(),
			Status:      models.BillingStatusFinalized,
			Notes:       strings.TrimSpace(in.Notes),
		}
		if in.Draft {
			record.Status = models.BillingStatusDraft
		} else {
			now := s.nowFn().UTC()
			record.FinalizedAt = &now
		}
		return tx.Create(&record).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &record, nil
}

// UpdateStatus moves a record along draft -> finalized -> paid. The amount never changes.
func (s *Service) UpdateStatus(ctx context.Context, id uint64, next models.BillingStatus) (*models.BillingRecord, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	var record models.BillingRecord
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.First(&record, id).Error; errFind != nil {
			return errFind
		}
		if !record.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, next)
		}

		now := s.nowFn().UTC()
		updates := map[string]any{"status": next}
		switch next {
		case models.BillingStatusFinalized:
			updates["finalized_at"] = now
			record.FinalizedAt = &now
		case models.BillingStatusPaid:
			updates["paid_at"] = now
			record.PaidAt = &now
		}
		res := tx.Model(&models.BillingRecord{}).
			Where("id = ? AND status = ?", id, record.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: record changed concurrently", ErrInvalidTransition)
		}
		record.Status = next
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &record, nil
}
