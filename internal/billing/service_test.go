package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ems-hq/attendance/internal/lock"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupBillingDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:billing_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(
		&models.User{},
		&models.Employee{},
		&models.Project{},
		&models.WorkReport{},
		&models.BillingRecord{},
		&models.InternalMessage{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

type billingFixture struct {
	admin    models.User
	employee models.Employee
	hourly   models.Project
	records  models.Project
}

func seedBilling(t *testing.T, db *gorm.DB) billingFixture {
	t.Helper()
	var fx billingFixture

	fx.admin = models.User{Username: "admin", Password: "x", Role: models.RoleAdmin, Active: true}
	if errCreate := db.Create(&fx.admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	user := models.User{Username: "alice", Password: "x", Role: models.RoleEmployee, Active: true}
	if errCreate := db.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	fx.employee = models.Employee{UserID: user.ID, Name: "Alice", Email: "alice@example.com"}
	if errCreate := db.Create(&fx.employee).Error; errCreate != nil {
		t.Fatalf("create employee: %v", errCreate)
	}

	rate := 20.0
	fx.hourly = models.Project{Name: "Transcription", Status: models.ProjectStatusActive, BillingMethod: models.BillingMethodHourly, BillingRate: &rate}
	formula := "(record_count/1000)*4.85"
	fx.records = models.Project{Name: "Data entry", Status: models.ProjectStatusActive, BillingMethod: models.BillingMethodCustomFormula, BillingFormula: &formula}
	for _, p := range []*models.Project{&fx.hourly, &fx.records} {
		if errCreate := db.Create(p).Error; errCreate != nil {
			t.Fatalf("create project: %v", errCreate)
		}
	}

	reports := []models.WorkReport{
		{EmployeeID: fx.employee.ID, ProjectID: fx.hourly.ID, Date: datatypes.Date(day("2024-03-04")), Description: "calls", Quantity: 2},
		{EmployeeID: fx.employee.ID, ProjectID: fx.hourly.ID, Date: datatypes.Date(day("2024-03-05")), Description: "calls", Quantity: 1},
		{EmployeeID: fx.employee.ID, ProjectID: fx.records.ID, Date: datatypes.Date(day("2024-03-05")), Description: "forms", Quantity: 2000},
		{EmployeeID: fx.employee.ID, ProjectID: fx.hourly.ID, Date: datatypes.Date(day("2024-04-01")), Description: "next month", Quantity: 50},
	}
	if errCreate := db.Create(&reports).Error; errCreate != nil {
		t.Fatalf("create reports: %v", errCreate)
	}
	return fx
}

func marchPeriod(t *testing.T) Period {
	t.Helper()
	period, errPeriod := ParsePeriod("2024-03-01", "2024-03-31")
	if errPeriod != nil {
		t.Fatalf("parse period: %v", errPeriod)
	}
	return period
}

func TestServicePreview(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{Currency: "eur"})

	summary, errPreview := svc.Preview(context.Background(), marchPeriod(t))
	if errPreview != nil {
		t.Fatalf("preview: %v", errPreview)
	}
	if len(summary.Employees) != 1 {
		t.Fatalf("expected 1 employee, got %d", len(summary.Employees))
	}
	employee := summary.Employees[0]
	if employee.EmployeeID != fx.employee.ID || employee.EmployeeName != "Alice" {
		t.Fatalf("unexpected employee %+v", employee)
	}
	if len(employee.Projects) != 2 {
		t.Fatalf("expected 2 project lines, got %d", len(employee.Projects))
	}
	if employee.Projects[0].Amount != 60 {
		t.Fatalf("expected hourly amount 60, got %v", employee.Projects[0].Amount)
	}
	if diff := summary.Total - 69.70; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected total 69.70, got %v", summary.Total)
	}
	if svc.Currency() != "EUR" {
		t.Fatalf("expected currency EUR, got %s", svc.Currency())
	}

	var count int64
	db.Model(&models.BillingRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("preview must not persist records, found %d", count)
	}
}

func TestServiceFinalizeIsIdempotent(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{})
	period := marchPeriod(t)

	first, errFirst := svc.Finalize(context.Background(), period, fx.admin.ID)
	if errFirst != nil {
		t.Fatalf("finalize: %v", errFirst)
	}
	if first.Created != 2 || first.Skipped != 0 || first.Notified != 1 || first.RunID == "" {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, errSecond := svc.Finalize(context.Background(), period, fx.admin.ID)
	if errSecond != nil {
		t.Fatalf("finalize again: %v", errSecond)
	}
	if second.Created != 0 || second.Skipped != 2 || second.Notified != 0 {
		t.Fatalf("unexpected second result %+v", second)
	}

	var records []models.BillingRecord
	if errFind := db.Order("id ASC").Find(&records).Error; errFind != nil {
		t.Fatalf("list records: %v", errFind)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, record := range records {
		if record.Status != models.BillingStatusFinalized || record.FinalizedAt == nil || record.RunID != first.RunID {
			t.Fatalf("unexpected record %+v", record)
		}
	}

	var messages []models.InternalMessage
	if errFind := db.Find(&messages).Error; errFind != nil {
		t.Fatalf("list messages: %v", errFind)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(messages))
	}
	if messages[0].RecipientID == nil || *messages[0].RecipientID != fx.employee.UserID || messages[0].SenderID != fx.admin.ID {
		t.Fatalf("unexpected notification %+v", messages[0])
	}
	want := "Your billing for the period 2024-03-01 to 2024-03-31 has been finalized. Your total earnings are 69.70 USD."
	if messages[0].Content != want {
		t.Fatalf("unexpected notification content %q", messages[0].Content)
	}
}

func TestServiceFinalizeRejectsConcurrentRun(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	locker := lock.NewLocalLocker()
	svc := NewService(db, ServiceOptions{Locker: locker})
	period := marchPeriod(t)

	release, errLock := locker.Acquire(context.Background(), FinalizeLockKey, time.Minute)
	if errLock != nil {
		t.Fatalf("acquire: %v", errLock)
	}
	if _, errFinalize := svc.Finalize(context.Background(), period, fx.admin.ID); !errors.Is(errFinalize, ErrFinalizeInProgress) {
		t.Fatalf("expected ErrFinalizeInProgress, got %v", errFinalize)
	}
	release()
	if _, errFinalize := svc.Finalize(context.Background(), period, fx.admin.ID); errFinalize != nil {
		t.Fatalf("finalize after release: %v", errFinalize)
	}
}

func TestServiceCreateManual(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{})
	period := marchPeriod(t)
	ctx := context.Background()

	if _, errCreate := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: 999, Period: period, Amount: 10}); !errors.Is(errCreate, ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", errCreate)
	}
	if _, errCreate := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, Period: period, Amount: -1}); !errors.Is(errCreate, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", errCreate)
	}

	record, errCreate := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, ProjectID: &fx.hourly.ID, Period: period, Amount: 125.5, Notes: "  bonus  "})
	if errCreate != nil {
		t.Fatalf("create manual: %v", errCreate)
	}
	if record.Status != models.BillingStatusFinalized || record.Notes != "bonus" || record.TotalAmount != 125.5 {
		t.Fatalf("unexpected manual record %+v", record)
	}

	if _, errDup := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, ProjectID: &fx.hourly.ID, Period: period, Amount: 1}); !errors.Is(errDup, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", errDup)
	}

	result, errFinalize := svc.Finalize(ctx, period, fx.admin.ID)
	if errFinalize != nil {
		t.Fatalf("finalize: %v", errFinalize)
	}
	if result.Created != 1 || result.Skipped != 1 {
		t.Fatalf("manual row must block the generated one, got %+v", result)
	}
}

func TestServiceUpdateStatus(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{})
	ctx := context.Background()

	draft := models.BillingRecord{
		EmployeeID:  fx.employee.ID,
		PeriodStart: datatypes.Date(day("2024-02-01")),
		PeriodEnd:   datatypes.Date(day("2024-02-29")),
		TotalAmount: 42,
		Currency:    "USD",
		Status:      models.BillingStatusDraft,
	}
	if errCreate := db.Create(&draft).Error; errCreate != nil {
		t.Fatalf("create draft: %v", errCreate)
	}

	if _, errUpdate := svc.UpdateStatus(ctx, draft.ID, models.BillingStatusPaid); !errors.Is(errUpdate, ErrInvalidTransition) {
		t.Fatalf("expected draft -> paid to fail, got %v", errUpdate)
	}
	finalized, errUpdate := svc.UpdateStatus(ctx, draft.ID, models.BillingStatusFinalized)
	if errUpdate != nil {
		t.Fatalf("draft -> finalized: %v", errUpdate)
	}
	if finalized.FinalizedAt == nil || finalized.TotalAmount != 42 {
		t.Fatalf("unexpected finalized record %+v", finalized)
	}
	paid, errUpdate := svc.UpdateStatus(ctx, draft.ID, models.BillingStatusPaid)
	if errUpdate != nil {
		t.Fatalf("finalized -> paid: %v", errUpdate)
	}
	if paid.Status != models.BillingStatusPaid || paid.PaidAt == nil {
		t.Fatalf("unexpected paid record %+v", paid)
	}
	if _, errUpdate := svc.UpdateStatus(ctx, draft.ID, models.BillingStatusFinalized); !errors.Is(errUpdate, ErrInvalidTransition) {
		t.Fatalf("expected paid -> finalized to fail, got %v", errUpdate)
	}
	if _, errUpdate := svc.UpdateStatus(ctx, draft.ID, "void"); !errors.Is(errUpdate, ErrInvalidTransition) {
		t.Fatalf("expected unknown status to fail, got %v", errUpdate)
	}
	if _, errUpdate := svc.UpdateStatus(ctx, 12345, models.BillingStatusPaid); !errors.Is(errUpdate, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", errUpdate)
	}
}

func TestServiceFinalizeOverlappingPeriodBillsUncoveredDaysOnly(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{})
	ctx := context.Background()

	if _, errFinalize := svc.Finalize(ctx, marchPeriod(t), fx.admin.ID); errFinalize != nil {
		t.Fatalf("finalize march: %v", errFinalize)
	}
	overlap, errPeriod := ParsePeriod("2024-03-05", "2024-04-30")
	if errPeriod != nil {
		t.Fatalf("parse period: %v", errPeriod)
	}
	result, errFinalize := svc.Finalize(ctx, overlap, fx.admin.ID)
	if errFinalize != nil {
		t.Fatalf("finalize overlap: %v", errFinalize)
	}
	// Only the April hourly report (50h at 20) is new; the data entry line is fully covered.
	if result.Created != 1 || result.Skipped != 1 || result.Notified != 1 {
		t.Fatalf("unexpected overlap result %+v", result)
	}
	if result.Summary.Total != 1000 {
		t.Fatalf("expected overlap total 1000, got %v", result.Summary.Total)
	}

	var total float64
	if errSum := db.Model(&models.BillingRecord{}).
		Where("employee_id = ?", fx.employee.ID).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error; errSum != nil {
		t.Fatalf("sum records: %v", errSum)
	}
	if diff := total - 1069.70; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected billed total 1069.70, got %v", total)
	}
}

func TestServiceFinalizeIgnoresDraftCoverage(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{})
	ctx := context.Background()

	draftPeriod, errPeriod := ParsePeriod("2024-03-01", "2024-03-04")
	if errPeriod != nil {
		t.Fatalf("parse period: %v", errPeriod)
	}
	if _, errCreate := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, ProjectID: &fx.hourly.ID, Period: draftPeriod, Amount: 40, Draft: true}); errCreate != nil {
		t.Fatalf("create draft: %v", errCreate)
	}
	result, errFinalize := svc.Finalize(ctx, marchPeriod(t), fx.admin.ID)
	if errFinalize != nil {
		t.Fatalf("finalize: %v", errFinalize)
	}
	if result.Created != 2 || result.Skipped != 0 || result.Summary.Total < 69.69 {
		t.Fatalf("a draft must not cover reports, got %+v", result)
	}
}

func TestServiceCreateManualWithoutProject(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{})
	period := marchPeriod(t)
	ctx := context.Background()

	if _, errCreate := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, Period: period, Amount: 15}); errCreate != nil {
		t.Fatalf("create manual: %v", errCreate)
	}
	if _, errDup := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, Period: period, Amount: 15}); !errors.Is(errDup, ErrDuplicateRecord) {
		t.Fatalf("expected ErrDuplicateRecord, got %v", errDup)
	}
	// A project row for the same period is a different record.
	if _, errCreate := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, ProjectID: &fx.records.ID, Period: period, Amount: 1}); errCreate != nil {
		t.Fatalf("create project manual: %v", errCreate)
	}
}

func TestServiceCreateManualDraft(t *testing.T) {
	db := setupBillingDB(t)
	fx := seedBilling(t, db)
	svc := NewService(db, ServiceOptions{})
	ctx := context.Background()

	draft, errCreate := svc.CreateManual(ctx, ManualRecordInput{EmployeeID: fx.employee.ID, Period: marchPeriod(t), Amount: 80, Draft: true})
	if errCreate != nil {
		t.Fatalf("create draft: %v", errCreate)
	}
	if draft.Status != models.BillingStatusDraft || draft.FinalizedAt != nil {
		t.Fatalf("unexpected draft %+v", draft)
	}
	finalized, errUpdate := svc.UpdateStatus(ctx, draft.ID, models.BillingStatusFinalized)
	if errUpdate != nil {
		t.Fatalf("draft -> finalized: %v", errUpdate)
	}
	if finalized.FinalizedAt == nil || finalized.TotalAmount != 80 {
		t.Fatalf("unexpected finalized record %+v", finalized)
	}
}
