package billing

import (
	"errors"
	"testing"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func day(value string) time.Time {
	t, errParse := time.Parse(DateLayout, value)
	if errParse != nil {
		panic(errParse)
	}
	return t
}

func testProjects() map[uint64]ProjectInput {
	return map[uint64]ProjectInput{
		1: {ID: 1, Name: "Transcription", Billing: ProjectBilling{Method: models.BillingMethodHourly, Rate: ptr(20)}},
		2: {ID: 2, Name: "Data entry", Billing: ProjectBilling{Method: models.BillingMethodRecordCount, Formula: "(record_count/1000)*4.85"}},
		3: {ID: 3, Name: "Typing", Billing: ProjectBilling{
			Method:           models.BillingMethodCharacterCount,
			MetricDivisor:    ptr(1000),
			MetricMultiplier: ptr(2),
		}},
	}
}

func TestRunAggregatesPerEmployeeAndProject(t *testing.T) {
	period, errPeriod := ParsePeriod("2024-03-01", "2024-03-31")
	if errPeriod != nil {
		t.Fatalf("parse period: %v", errPeriod)
	}
	reports := []ReportInput{
		{EmployeeID: 7, ProjectID: 2, Date: day("2024-03-04"), Quantities: Quantities{RecordCount: 1500}},
		{EmployeeID: 7, ProjectID: 1, Date: day("2024-03-04"), Quantities: Quantities{HoursWorked: 3}},
		{EmployeeID: 7, ProjectID: 2, Date: day("2024-03-05"), Quantities: Quantities{RecordCount: 500}},
		{EmployeeID: 3, ProjectID: 3, Date: day("2024-03-31"), Quantities: Quantities{CharacterCount: 4000}},
		{EmployeeID: 7, ProjectID: 1, Date: day("2024-04-01"), Quantities: Quantities{HoursWorked: 100}},
		{EmployeeID: 3, ProjectID: 1, Date: day("2024-02-29"), Quantities: Quantities{HoursWorked: 100}},
	}

	got := Run(period, testProjects(), reports)
	want := Summary{
		PeriodStart: "2024-03-01",
		PeriodEnd:   "2024-03-31",
		Employees: []EmployeeSummary{
			{
				EmployeeID: 3,
				Projects: []ProjectLine{
					{ProjectID: 3, ProjectName: "Typing", Method: models.BillingMethodCharacterCount, Quantities: Quantities{CharacterCount: 4000}, Reports: 1, Amount: 8, Basis: BasisMetric},
				},
				Total: 8,
			},
			{
				EmployeeID: 7,
				Projects: []ProjectLine{
					{ProjectID: 1, ProjectName: "Transcription", Method: models.BillingMethodHourly, Quantities: Quantities{HoursWorked: 3}, Reports: 1, Amount: 60, Basis: BasisRate},
					{ProjectID: 2, ProjectName: "Data entry", Method: models.BillingMethodRecordCount, Quantities: Quantities{RecordCount: 2000}, Reports: 2, Amount: 9.70, Basis: BasisFormula},
				},
				Total: 69.70,
			},
		},
		Total: 77.70,
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("unexpected summary (-want +got):\n%s", diff)
	}
}

func TestRunTotalEqualsSumOfLines(t *testing.T) {
	period, _ := ParsePeriod("2024-01-01", "2024-12-31")
	var reports []ReportInput
	for i := 0; i < 60; i++ {
		reports = append(reports, ReportInput{
			EmployeeID: uint64(i%5 + 1),
			ProjectID:  uint64(i%3 + 1),
			Date:       day("2024-06-01").AddDate(0, 0, i),
			Quantities: Quantities{HoursWorked: float64(i % 7), RecordCount: float64(i * 37), CharacterCount: float64(i * 211)},
		})
	}

	summary := Run(period, testProjects(), reports)
	sum := 0.0
	for _, employee := range summary.Employees {
		employeeSum := 0.0
		for _, line := range employee.Projects {
			employeeSum += line.Amount
			sum += line.Amount
		}
		if employeeSum != employee.Total {
			t.Fatalf("employee %d: total %v does not match lines %v", employee.EmployeeID, employee.Total, employeeSum)
		}
	}
	if sum != summary.Total {
		t.Fatalf("aggregate total %v does not match lines %v", summary.Total, sum)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	period, _ := ParsePeriod("2024-03-01", "2024-03-31")
	reports := []ReportInput{
		{EmployeeID: 2, ProjectID: 1, Date: day("2024-03-02"), Quantities: Quantities{HoursWorked: 4}},
		{EmployeeID: 1, ProjectID: 2, Date: day("2024-03-03"), Quantities: Quantities{RecordCount: 900}},
		{EmployeeID: 2, ProjectID: 3, Date: day("2024-03-04"), Quantities: Quantities{CharacterCount: 1234}},
	}

	first := Run(period, testProjects(), reports)
	reversed := make([]ReportInput, len(reports))
	for i := range reports {
		reversed[len(reports)-1-i] = reports[i]
	}
	second := Run(period, testProjects(), reversed)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("rerun differs (-first +second):\n%s", diff)
	}
}

func TestRunWarnsOnceForUnknownProject(t *testing.T) {
	period, _ := ParsePeriod("2024-03-01", "2024-03-31")
	reports := []ReportInput{
		{EmployeeID: 1, ProjectID: 99, Date: day("2024-03-02"), Quantities: Quantities{HoursWorked: 4}},
		{EmployeeID: 1, ProjectID: 99, Date: day("2024-03-03"), Quantities: Quantities{HoursWorked: 4}},
		{EmployeeID: 1, ProjectID: 1, Date: day("2024-03-03"), Quantities: Quantities{HoursWorked: 1}},
	}

	summary := Run(period, testProjects(), reports)
	if len(summary.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d: %+v", len(summary.Warnings), summary.Warnings)
	}
	if !errors.Is(summary.Warnings[0].Err, ErrInvalidConfiguration) || summary.Warnings[0].ProjectID != 99 {
		t.Fatalf("unexpected warning %+v", summary.Warnings[0])
	}
	if summary.Total != 20 {
		t.Fatalf("expected total 20, got %v", summary.Total)
	}
}

func TestRunKeepsDegenerateLinesWithWarning(t *testing.T) {
	period, _ := ParsePeriod("2024-03-01", "2024-03-01")
	projects := map[uint64]ProjectInput{
		1: {ID: 1, Name: "Broken", Billing: ProjectBilling{Method: models.BillingMethodRecordCount, MetricDivisor: ptr(0), MetricMultiplier: ptr(3)}},
	}
	reports := []ReportInput{{EmployeeID: 1, ProjectID: 1, Date: day("2024-03-01"), Quantities: Quantities{RecordCount: 10}}}

	summary := Run(period, projects, reports)
	if len(summary.Employees) != 1 || len(summary.Employees[0].Projects) != 1 {
		t.Fatalf("expected one line, got %+v", summary.Employees)
	}
	line := summary.Employees[0].Projects[0]
	if line.Amount != 0 || line.Warning == "" {
		t.Fatalf("expected zero amount with warning, got %+v", line)
	}
	if len(summary.Warnings) != 1 || !errors.Is(summary.Warnings[0].Err, ErrArithmeticDegenerate) {
		t.Fatalf("expected degenerate warning, got %+v", summary.Warnings)
	}
}

func TestParsePeriod(t *testing.T) {
	if _, errParse := ParsePeriod("2024-03-02", "2024-03-01"); !errors.Is(errParse, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod for reversed period, got %v", errParse)
	}
	if _, errParse := ParsePeriod("2024/03/01", "2024-03-01"); !errors.Is(errParse, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod for bad date, got %v", errParse)
	}
	period, errParse := ParsePeriod("2024-03-01", "2024-03-01")
	if errParse != nil {
		t.Fatalf("single-day period: %v", errParse)
	}
	if !period.Contains(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)) {
		t.Fatalf("expected period to contain the whole day")
	}
	if period.String() != "2024-03-01..2024-03-01" {
		t.Fatalf("unexpected period string %q", period.String())
	}
}
