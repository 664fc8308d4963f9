package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/ems-hq/attendance/internal/models"
)

// DateLayout is the wire format of period boundaries.
const DateLayout = "2006-01-02"

// Period is an inclusive range of calendar days, normalised to UTC midnight.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a period from two days. Start after end is rejected.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: DateOnly(start), End: DateOnly(end)}
	if p.Start.After(p.End) {
		return Period{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidPeriod, p.Start.Format(DateLayout), p.End.Format(DateLayout))
	}
	return p, nil
}

// ParsePeriod parses two YYYY-MM-DD dates into a period.
func ParsePeriod(start, end string) (Period, error) {
	s, errStart := time.Parse(DateLayout, start)
	if errStart != nil {
		return Period{}, fmt.Errorf("%w: start date %q", ErrInvalidPeriod, start)
	}
	e, errEnd := time.Parse(DateLayout, end)
	if errEnd != nil {
		return Period{}, fmt.Errorf("%w: end date %q", ErrInvalidPeriod, end)
	}
	return NewPeriod(s, e)
}

// Contains reports whether the day of t falls within the period.
func (p Period) Contains(t time.Time) bool {
	day := DateOnly(t)
	return !day.Before(p.Start) && !day.After(p.End)
}

// String renders the period as "start..end".
func (p Period) String() string {
	return p.Start.Format(DateLayout) + ".." + p.End.Format(DateLayout)
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ProjectInput is the pricing view of one project.
type ProjectInput struct {
	ID      uint64
	Name    string
	Billing ProjectBilling
}

// ReportInput is one work report reduced to what pricing needs.
type ReportInput struct {
	EmployeeID uint64
	ProjectID  uint64
	Date       time.Time
	Quantities Quantities
}

// ProjectLine is the amount owed to one employee for one project.
type ProjectLine struct {
	ProjectID   uint64               `json:"project_id"`
	ProjectName string               `json:"project_name"`
	Method      models.BillingMethod `json:"billing_method"`
	Quantities  Quantities           `json:"quantities"`
	Reports     int                  `json:"reports"`
	Amount      float64              `json:"amount"`
	Basis       Basis                `json:"basis"`
	Warning     string               `json:"warning,omitempty"`
}

// EmployeeSummary is every project line for one employee.
type EmployeeSummary struct {
	EmployeeID   uint64        `json:"employee_id"`
	EmployeeName string        `json:"employee_name,omitempty"`
	Projects     []ProjectLine `json:"projects"`
	Total        float64       `json:"total"`
}

// Warning is a diagnostic raised while pricing a run.
type Warning struct {
	EmployeeID uint64 `json:"employee_id,omitempty"`
	ProjectID  uint64 `json:"project_id,omitempty"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Summary is the outcome of a billing run over a period.
type Summary struct {
	PeriodStart string            `json:"period_start"`
	PeriodEnd   string            `json:"period_end"`
	Employees   []EmployeeSummary `json:"employees"`
	Total       float64           `json:"total"`
	Warnings    []Warning         `json:"warnings,omitempty"`
}

type lineKey struct {
	employeeID uint64
	projectID  uint64
}

// Run prices every report inside period. Quantities are summed per (employee, project) before
// pricing, so a project's amount is computed once per employee. Reports outside the period are
// ignored; reports for unknown projects are skipped with a warning. Output is sorted by employee
// ID then project ID and depends only on the inputs.
func Run(period Period, projects map[uint64]ProjectInput, reports []ReportInput) Summary {
	summary := Summary{
		PeriodStart: period.Start.Format(DateLayout),
		PeriodEnd:   period.End.Format(DateLayout),
		Employees:   []EmployeeSummary{},
	}

	totals := make(map[lineKey]Quantities)
	counts := make(map[lineKey]int)
	missing := make(map[lineKey]struct{})
	for _, report := range reports {
		if !period.Contains(report.Date) {
			continue
		}
		key := lineKey{employeeID: report.EmployeeID, projectID: report.ProjectID}
		if _, ok := projects[report.ProjectID]; !ok {
			if _, seen := missing[key]; !seen {
				missing[key] = struct{}{}
				errMissing := fmt.Errorf("%w: project %d not found", ErrInvalidConfiguration, report.ProjectID)
				summary.Warnings = append(summary.Warnings, Warning{
					EmployeeID: report.EmployeeID,
					ProjectID:  report.ProjectID,
					Message:    errMissing.Error(),
					Err:        errMissing,
				})
			}
			continue
		}
		totals[key] = totals[key].Add(report.Quantities)
		counts[key]++
	}

	keys := make([]lineKey, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].employeeID != keys[j].employeeID {
			return keys[i].employeeID < keys[j].employeeID
		}
		return keys[i].projectID < keys[j].projectID
	})

	var current *EmployeeSummary
	for _, key := range keys {
		if current == nil || current.EmployeeID != key.employeeID {
			summary.Employees = append(summary.Employees, EmployeeSummary{EmployeeID: key.employeeID, Projects: []ProjectLine{}})
			current = &summary.Employees[len(summary.Employees)-1]
		}
		project := projects[key.projectID]
		result := Calculate(project.Billing, totals[key])
		line := ProjectLine{
			ProjectID:   key.projectID,
			ProjectName: project.Name,
			Method:      project.Billing.Method,
			Quantities:  totals[key],
			Reports:     counts[key],
			Amount:      result.Amount,
			Basis:       result.Basis,
		}
		if result.Warning != nil {
			line.Warning = result.Warning.Error()
			summary.Warnings = append(summary.Warnings, Warning{
				EmployeeID: key.employeeID,
				ProjectID:  key.projectID,
				Message:    result.Warning.Error(),
				Err:        result.Warning,
			})
		}
		current.Projects = append(current.Projects, line)
		current.Total += line.Amount
		summary.Total += line.Amount
	}

	sort.SliceStable(summary.Warnings, func(i, j int) bool {
		if summary.Warnings[i].EmployeeID != summary.Warnings[j].EmployeeID {
			return summary.Warnings[i].EmployeeID < summary.Warnings[j].EmployeeID
		}
		return summary.Warnings[i].ProjectID < summary.Warnings[j].ProjectID
	})
	return summary
}
