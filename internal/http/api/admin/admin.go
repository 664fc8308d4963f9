package admin

import (
	"github.com/ems-hq/attendance/internal/billing"
	"github.com/ems-hq/attendance/internal/config"
	apihttp "github.com/ems-hq/attendance/internal/http"
	"github.com/ems-hq/attendance/internal/http/api/admin/handlers"
	permissions "github.com/ems-hq/attendance/internal/http/api/admin/permissions"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps carries what the admin routes need beyond the database.
type Deps struct {
	JWT              config.JWTConfig
	Billing          *billing.Service
	Redis            *redis.Client // Optional; pinged by the health check when set.
	FormulaMaxLength int
}

// RegisterAdminRoutes registers the admin and manager routes under /api/v1/admin.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, deps Deps) {
	if r == nil || db == nil {
		return
	}
	billingService := deps.Billing
	if billingService == nil {
		billingService = billing.NewService(db, billing.ServiceOptions{FormulaMaxLength: deps.FormulaMaxLength})
	}

	admin := r.Group(permissions.BasePath)
	admin.Use(
		apihttp.UserAuthMiddleware(db, deps.JWT),
		apihttp.RequireRoles(models.RoleAdmin, models.RoleManager),
		adminPermissionMiddleware(),
	)

	permissionHandler := handlers.NewPermissionHandler()
	admin.GET("/permissions", permissionHandler.List)

	healthHandler := handlers.NewHealthHandler(db, deps.Redis)
	admin.GET("/healthz", healthHandler.Healthz)

	settingsHandler := handlers.NewSettingsHandler(db)
	admin.GET("/settings", settingsHandler.List)
	admin.PUT("/settings/:key", settingsHandler.Upsert)

	companyHandler := handlers.NewCompanyHandler(db)
	admin.PUT("/company", companyHandler.Update)

	employeeHandler := handlers.NewEmployeeHandler(db)
	admin.GET("/employees", employeeHandler.List)
	admin.POST("/employees", employeeHandler.Create)
	admin.GET("/employees/:id", employeeHandler.Get)
	admin.PUT("/employees/:id", employeeHandler.Update)
	admin.DELETE("/employees/:id", employeeHandler.Delete)
	admin.POST("/employees/:id/reset-password", employeeHandler.ResetPassword)

	projectHandler := handlers.NewProjectHandler(db, deps.FormulaMaxLength)
	admin.GET("/projects", projectHandler.List)
	admin.POST("/projects", projectHandler.Create)
	admin.POST("/projects/formula/check", projectHandler.CheckFormula)
	admin.GET("/projects/:id", projectHandler.Get)
	admin.PUT("/projects/:id", projectHandler.Update)
	admin.DELETE("/projects/:id", projectHandler.Delete)

	attendanceHandler := handlers.NewAttendanceHandler(db)
	admin.GET("/attendance", attendanceHandler.List)

	leaveHandler := handlers.NewLeaveHandler(db)
	admin.GET("/leave-requests", leaveHandler.List)
	admin.POST("/leave-requests/:id/approve", leaveHandler.Approve)
	admin.POST("/leave-requests/:id/deny", leaveHandler.Deny)

	workReportHandler := handlers.NewWorkReportHandler(db)
	admin.GET("/work-reports", workReportHandler.List)
	admin.PUT("/work-reports/:id", workReportHandler.Update)
	admin.DELETE("/work-reports/:id", workReportHandler.Delete)

	journalHandler := handlers.NewJournalHandler(db)
	admin.GET("/journal", journalHandler.List)

	trainingHandler := handlers.NewTrainingHandler(db)
	admin.GET("/training/modules", trainingHandler.ListModules)
	admin.POST("/training/modules", trainingHandler.CreateModule)
	admin.PUT("/training/modules/:id", trainingHandler.UpdateModule)
	admin.DELETE("/training/modules/:id", trainingHandler.DeleteModule)
	admin.POST("/training/modules/:id/assign", trainingHandler.AssignEmployee)
	admin.POST("/training/modules/:id/assign-project", trainingHandler.AssignProject)
	admin.GET("/training/assignments", trainingHandler.ListAssignments)

	messageHandler := handlers.NewMessageHandler(db)
	admin.POST("/messages/broadcast", messageHandler.Broadcast)

	calendarHandler := handlers.NewCalendarHandler(db)
	admin.POST("/calendar/events", calendarHandler.Create)
	admin.DELETE("/calendar/events/:id", calendarHandler.Delete)

	billingHandler := handlers.NewBillingHandler(db, billingService)
	admin.POST("/billing/calculate", billingHandler.Calculate)
	admin.POST("/billing/finalize", billingHandler.Finalize)
	admin.POST("/billing/manual", billingHandler.CreateManual)
	admin.GET("/billing/records", billingHandler.ListRecords)
	admin.PATCH("/billing/records/:id/status", billingHandler.UpdateStatus)
}
