package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ems-hq/attendance/internal/billing"
	"github.com/ems-hq/attendance/internal/db"
	"github.com/ems-hq/attendance/internal/models"
	internalsettings "github.com/ems-hq/attendance/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupAdminDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:admin_handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, errOpen)
	require.NoError(t, db.Migrate(conn))
	return conn
}

type adminFixture struct {
	admin    models.User
	user     models.User
	employee models.Employee
}

func seedAdmin(t *testing.T, conn *gorm.DB) adminFixture {
	t.Helper()

	var fx adminFixture
	fx.admin = models.User{Username: "root", Password: "x", Role: models.RoleAdmin, Active: true}
	require.NoError(t, conn.Create(&fx.admin).Error)
	fx.user = models.User{Username: "alice", Password: "x", Role: models.RoleEmployee, Active: true}
	require.NoError(t, conn.Create(&fx.user).Error)
	fx.employee = models.Employee{UserID: fx.user.ID, Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, conn.Create(&fx.employee).Error)
	return fx
}

func addEmployee(t *testing.T, conn *gorm.DB, username string) models.Employee {
	t.Helper()

	user := models.User{Username: username, Password: "x", Role: models.RoleEmployee, Active: true}
	require.NoError(t, conn.Create(&user).Error)
	employee := models.Employee{UserID: user.ID, Name: username, Email: username + "@example.com"}
	require.NoError(t, conn.Create(&employee).Error)
	return employee
}

// newAdminRouter returns a router whose requests run as the given user.
func newAdminRouter(userID uint64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("userRole", models.RoleAdmin)
		c.Next()
	})
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		require.NoError(t, errMarshal)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func day(t *testing.T, value string) datatypes.Date {
	t.Helper()
	parsed, errParse := time.Parse(billing.DateLayout, value)
	require.NoError(t, errParse)
	return datatypes.Date(parsed)
}

func TestProjectCreateValidatesBilling(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	h := NewProjectHandler(conn, 0)
	router := newAdminRouter(fx.admin.ID)
	router.POST("/projects", h.Create)

	rec, out := doJSON(t, router, http.MethodPost, "/projects", gin.H{
		"name":            "Evil",
		"billing_method":  "custom_formula",
		"billing_formula": "__import__('os').system('rm -rf /')",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, out["error"], "invalid formula")

	rec, out = doJSON(t, router, http.MethodPost, "/projects", gin.H{
		"name":            "Scan",
		"billing_method":  "custom_formula",
		"billing_formula": "  record_count * 0.05 + hours_worked * 10 ",
		"metric_divisor":  1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "record_count * 0.05 + hours_worked * 10", out["billing_formula"])
	assert.Nil(t, out["metric_divisor"], "divisor is irrelevant for formulas")

	rec, out = doJSON(t, router, http.MethodPost, "/projects", gin.H{
		"name":           "Legacy",
		"billing_method": "count_based",
		"metric_label":   "Records",
		"metric_divisor": 1000, "metric_multiplier": 4.85,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, string(models.BillingMethodRecordCount), out["billing_method"])

	rec, _ = doJSON(t, router, http.MethodPost, "/projects", gin.H{"name": "NoRate", "billing_method": "hourly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectUpdateClearsIrrelevantFields(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	formula := "record_count * 2"
	project := models.Project{
		Name:           "Formula",
		Status:         models.ProjectStatusActive,
		BillingMethod:  models.BillingMethodCustomFormula,
		BillingFormula: &formula,
	}
	require.NoError(t, conn.Create(&project).Error)

	h := NewProjectHandler(conn, 0)
	router := newAdminRouter(fx.admin.ID)
	router.PUT("/projects/:id", h.Update)

	rec, out := doJSON(t, router, http.MethodPut, fmt.Sprintf("/projects/%d", project.ID), gin.H{
		"billing_method": "hourly",
		"billing_rate":   25,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, out["billing_formula"])

	var stored models.Project
	require.NoError(t, conn.First(&stored, project.ID).Error)
	assert.Equal(t, models.BillingMethodHourly, stored.BillingMethod)
	assert.Nil(t, stored.BillingFormula)
	require.NotNil(t, stored.BillingRate)
	assert.InDelta(t, 25, *stored.BillingRate, 1e-9)

	rec, _ = doJSON(t, router, http.MethodPut, "/projects/9999", gin.H{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectDeleteRefusesWithWork(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	rate := 10.0
	project := models.Project{Name: "Busy", Status: models.ProjectStatusActive, BillingMethod: models.BillingMethodHourly, BillingRate: &rate}
	require.NoError(t, conn.Create(&project).Error)
	require.NoError(t, conn.Create(&models.WorkReport{
		EmployeeID: fx.employee.ID, ProjectID: project.ID, Date: day(t, "2024-03-01"), Description: "work", Quantity: 1,
	}).Error)

	h := NewProjectHandler(conn, 0)
	router := newAdminRouter(fx.admin.ID)
	router.DELETE("/projects/:id", h.Delete)

	rec, _ := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/projects/%d", project.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	idle := models.Project{Name: "Idle", Status: models.ProjectStatusActive, BillingMethod: models.BillingMethodHourly, BillingRate: &rate}
	require.NoError(t, conn.Create(&idle).Error)
	rec, _ = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/projects/%d", idle.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCheckFormula(t *testing.T) {
	conn := setupAdminDB(t)
	h := NewProjectHandler(conn, 0)
	router := newAdminRouter(1)
	router.POST("/projects/formula/check", h.CheckFormula)

	rec, out := doJSON(t, router, http.MethodPost, "/projects/formula/check", gin.H{"formula": "record_count + open('x')"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out, "position")

	rec, out = doJSON(t, router, http.MethodPost, "/projects/formula/check", gin.H{
		"formula":    "record_count * 0.5 + tasks_completed",
		"quantities": gin.H{"record_count": 10, "tasks_completed": 3},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["valid"])
	assert.InDelta(t, 8.0, out["amount"], 1e-9)
	assert.ElementsMatch(t, []any{"record_count", "tasks_completed"}, out["references"])
}

func TestLeaveReviewNotifiesEmployee(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	request := models.LeaveRequest{
		EmployeeID: fx.employee.ID,
		StartDate:  day(t, "2024-05-06"),
		EndDate:    day(t, "2024-05-08"),
		Reason:     "holiday",
	}
	require.NoError(t, conn.Create(&request).Error)

	h := NewLeaveHandler(conn)
	router := newAdminRouter(fx.admin.ID)
	router.POST("/leave-requests/:id/approve", h.Approve)
	router.POST("/leave-requests/:id/deny", h.Deny)

	path := fmt.Sprintf("/leave-requests/%d", request.ID)
	rec, out := doJSON(t, router, http.MethodPost, path+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", out["status"])
	assert.EqualValues(t, fx.admin.ID, out["approved_by"])

	var messages []models.InternalMessage
	require.NoError(t, conn.Where("recipient_id = ?", fx.user.ID).Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, "Leave Request Approved", messages[0].Subject)
	assert.Contains(t, messages[0].Content, "2024-05-06")

	rec, _ = doJSON(t, router, http.MethodPost, path+"/deny", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "reviewed requests stay reviewed")

	rec, _ = doJSON(t, router, http.MethodPost, "/leave-requests/999/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBillingFinalizeAndStatusLifecycle(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	rate := 20.0
	project := models.Project{Name: "Support", Status: models.ProjectStatusActive, BillingMethod: models.BillingMethodHourly, BillingRate: &rate}
	require.NoError(t, conn.Create(&project).Error)
	for _, d := range []string{"2024-04-01", "2024-04-02"} {
		require.NoError(t, conn.Create(&models.WorkReport{
			EmployeeID: fx.employee.ID, ProjectID: project.ID, Date: day(t, d), Description: "tickets", Quantity: 4,
		}).Error)
	}

	service := billing.NewService(conn, billing.ServiceOptions{})
	h := NewBillingHandler(conn, service)
	router := newAdminRouter(fx.admin.ID)
	router.POST("/billing/calculate", h.Calculate)
	router.POST("/billing/finalize", h.Finalize)
	router.GET("/billing/records", h.ListRecords)
	router.PATCH("/billing/records/:id/status", h.UpdateStatus)

	period := gin.H{"start_date": "2024-04-01", "end_date": "2024-04-30"}
	rec, out := doJSON(t, router, http.MethodPost, "/billing/calculate", period)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary, ok := out["summary"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 160.0, summary["total"], 1e-9)

	var count int64
	require.NoError(t, conn.Model(&models.BillingRecord{}).Count(&count).Error)
	assert.Zero(t, count, "calculate must not persist")

	rec, out = doJSON(t, router, http.MethodPost, "/billing/finalize", period)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, out["created"])
	assert.EqualValues(t, 1, out["notified"])

	rec, out = doJSON(t, router, http.MethodPost, "/billing/finalize", period)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, out["created"], "finalize is idempotent per period")

	rec, out = doJSON(t, router, http.MethodGet, "/billing/records?status=finalized&start_date=2024-04-15", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	records, ok := out["records"].([]any)
	require.True(t, ok)
	require.Len(t, records, 1)
	record := records[0].(map[string]any)
	assert.InDelta(t, 160.0, record["total_amount"], 1e-9)
	assert.Equal(t, "Alice", record["employee_name"])
	recordPath := fmt.Sprintf("/billing/records/%v/status", record["id"])

	rec, out = doJSON(t, router, http.MethodPatch, recordPath, gin.H{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paid", out["status"])
	assert.NotNil(t, out["paid_at"])

	rec, _ = doJSON(t, router, http.MethodPatch, recordPath, gin.H{"status": "finalized"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPatch, "/billing/records/999/status", gin.H{"status": "paid"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/billing/calculate", gin.H{"start_date": "2024-05-01", "end_date": "2024-04-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingCreateManual(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	h := NewBillingHandler(conn, billing.NewService(conn, billing.ServiceOptions{Currency: "eur"}))
	router := newAdminRouter(fx.admin.ID)
	router.POST("/billing/manual", h.CreateManual)

	rec, out := doJSON(t, router, http.MethodPost, "/billing/manual", gin.H{
		"employee_id":  fx.employee.ID,
		"period_start": "2024-01-01",
		"period_end":   "2024-01-31",
		"total_amount": 300,
		"notes":        "bonus",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "finalized", out["status"])
	assert.Equal(t, "EUR", out["currency"])

	rec, _ = doJSON(t, router, http.MethodPost, "/billing/manual", gin.H{
		"employee_id": fx.employee.ID, "period_start": "2024-01-01", "period_end": "2024-01-31", "total_amount": -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/billing/manual", gin.H{
		"employee_id": 999, "period_start": "2024-01-01", "period_end": "2024-01-31", "total_amount": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/billing/manual", gin.H{
		"employee_id": fx.employee.ID, "period_start": "2024-01-01", "period_end": "2024-01-31", "total_amount": 5,
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "project-less rows are unique per period")

	rec, _ = doJSON(t, router, http.MethodPost, "/billing/manual", gin.H{
		"employee_id": fx.employee.ID, "period_start": "2024-02-01", "period_end": "2024-02-29", "total_amount": 5, "status": "paid",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = doJSON(t, router, http.MethodPost, "/billing/manual", gin.H{
		"employee_id": fx.employee.ID, "period_start": "2024-02-01", "period_end": "2024-02-29", "total_amount": 5, "status": "draft",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "draft", out["status"])
	assert.Nil(t, out["finalized_at"])
}

func TestWorkReportEditsBlockedWhenFinalized(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	rate := 10.0
	project := models.Project{Name: "Locked", Status: models.ProjectStatusActive, BillingMethod: models.BillingMethodHourly, BillingRate: &rate}
	require.NoError(t, conn.Create(&project).Error)
	billed := models.WorkReport{EmployeeID: fx.employee.ID, ProjectID: project.ID, Date: day(t, "2024-02-10"), Description: "billed", Quantity: 3}
	open := models.WorkReport{EmployeeID: fx.employee.ID, ProjectID: project.ID, Date: day(t, "2024-03-10"), Description: "open", Quantity: 3}
	require.NoError(t, conn.Create(&billed).Error)
	require.NoError(t, conn.Create(&open).Error)
	projectID := project.ID
	require.NoError(t, conn.Create(&models.BillingRecord{
		EmployeeID: fx.employee.ID, ProjectID: &projectID,
		PeriodStart: day(t, "2024-02-01"), PeriodEnd: day(t, "2024-02-29"),
		TotalAmount: 30, Currency: "USD", Status: models.BillingStatusFinalized,
	}).Error)

	h := NewWorkReportHandler(conn)
	router := newAdminRouter(fx.admin.ID)
	router.PUT("/work-reports/:id", h.Update)
	router.DELETE("/work-reports/:id", h.Delete)

	rec, _ := doJSON(t, router, http.MethodPut, fmt.Sprintf("/work-reports/%d", billed.ID), gin.H{"quantity": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/work-reports/%d", billed.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, out := doJSON(t, router, http.MethodPut, fmt.Sprintf("/work-reports/%d", open.ID), gin.H{"quantity": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 5.0, out["quantity"], 1e-9)
	assert.Equal(t, "Locked", out["project_name"])

	rec, _ = doJSON(t, router, http.MethodPut, fmt.Sprintf("/work-reports/%d", open.ID), gin.H{"hours_worked": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainingAssignProject(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	bob := addEmployee(t, conn, "bob")
	addEmployee(t, conn, "carol")
	rate := 10.0
	project := models.Project{Name: "Onboarding", Status: models.ProjectStatusActive, BillingMethod: models.BillingMethodHourly, BillingRate: &rate}
	require.NoError(t, conn.Create(&project).Error)
	for _, employeeID := range []uint64{fx.employee.ID, bob.ID, bob.ID} {
		require.NoError(t, conn.Create(&models.WorkReport{
			EmployeeID: employeeID, ProjectID: project.ID, Date: day(t, "2024-06-03"), Description: "x", Quantity: 1,
		}).Error)
	}

	h := NewTrainingHandler(conn)
	router := newAdminRouter(fx.admin.ID)
	router.POST("/training/modules", h.CreateModule)
	router.POST("/training/modules/:id/assign", h.AssignEmployee)
	router.POST("/training/modules/:id/assign-project", h.AssignProject)

	rec, out := doJSON(t, router, http.MethodPost, "/training/modules", gin.H{
		"title": "Security basics", "content": "Lock your screen.", "target_audience": "everyone",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid target_audience", out["error"])

	rec, out = doJSON(t, router, http.MethodPost, "/training/modules", gin.H{
		"title": "Security basics", "content": "Lock your screen.", "target_audience": "project_specific",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	modulePath := fmt.Sprintf("/training/modules/%v", out["id"])

	rec, out = doJSON(t, router, http.MethodPost, modulePath+"/assign-project", gin.H{"project_id": project.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, out["assigned"])

	rec, out = doJSON(t, router, http.MethodPost, modulePath+"/assign-project", gin.H{"project_id": project.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 0, out["assigned"], "existing assignments are kept")

	rec, _ = doJSON(t, router, http.MethodPost, modulePath+"/assign", gin.H{"employee_id": bob.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var links int64
	require.NoError(t, conn.Model(&models.ProjectTrainingAssignment{}).Count(&links).Error)
	assert.EqualValues(t, 1, links)
}

func TestSettingsUpsert(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	t.Cleanup(func() { internalsettings.StoreDBConfig(time.Time{}, nil) })
	h := NewSettingsHandler(conn)
	router := newAdminRouter(fx.admin.ID)
	router.GET("/settings", h.List)
	router.PUT("/settings/:key", h.Upsert)

	rec, _ := doJSON(t, router, http.MethodPut, "/settings/NOT_A_KEY", gin.H{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPut, "/settings/BILLING_CURRENCY", gin.H{"value": "euro"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out := doJSON(t, router, http.MethodPut, "/settings/billing_currency", gin.H{"value": "chf"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BILLING_CURRENCY", out["key"])
	assert.Equal(t, "CHF", out["value"])

	rec, out = doJSON(t, router, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items, ok := out["settings"].([]any)
	require.True(t, ok)
	found := false
	for _, item := range items {
		entry := item.(map[string]any)
		if entry["key"] == "BILLING_CURRENCY" {
			found = true
			assert.Equal(t, "CHF", entry["value"])
			assert.Equal(t, true, entry["stored"])
		}
	}
	assert.True(t, found)
}

func TestCompanyUpdateUpsertsSingleRow(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	h := NewCompanyHandler(conn)
	router := newAdminRouter(fx.admin.ID)
	router.PUT("/company", h.Update)

	rec, out := doJSON(t, router, http.MethodPut, "/company", gin.H{"name": " Acme ", "email": "hr@acme.test"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme", out["name"])

	rec, out = doJSON(t, router, http.MethodPut, "/company", gin.H{"address": "1 Main St"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme", out["name"])
	assert.Equal(t, "1 Main St", out["address"])

	rec, _ = doJSON(t, router, http.MethodPut, "/company", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, conn.Model(&models.Company{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCalendarCreateAndDelete(t *testing.T) {
	conn := setupAdminDB(t)
	fx := seedAdmin(t, conn)
	h := NewCalendarHandler(conn)
	router := newAdminRouter(fx.admin.ID)
	router.POST("/calendar/events", h.Create)
	router.DELETE("/calendar/events/:id", h.Delete)

	rec, out := doJSON(t, router, http.MethodPost, "/calendar/events", gin.H{
		"title": "Standup", "event_date": "2026-05-04", "event_time": "9:30", "event_type": "Meeting",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "09:30", out["event_time"])
	assert.Equal(t, "meeting", out["event_type"])
	assert.Equal(t, "2026-05-04", out["event_date"])

	rec, out = doJSON(t, router, http.MethodPost, "/calendar/events", gin.H{
		"title": "Holiday", "event_date": "2026-12-25", "event_time": "10:00", "event_type": "holiday", "is_all_day": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, out["event_time"])

	rec, _ = doJSON(t, router, http.MethodPost, "/calendar/events", gin.H{"title": "Party", "event_date": "2026-05-04", "event_type": "party"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = doJSON(t, router, http.MethodPost, "/calendar/events", gin.H{"title": "Party", "event_date": "05/04/2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := uint64(out["id"].(float64))
	rec, _ = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/calendar/events/%d", id), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/calendar/events/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
