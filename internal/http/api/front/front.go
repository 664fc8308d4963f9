package front

import (
	"github.com/ems-hq/attendance/internal/attendance"
	"github.com/ems-hq/attendance/internal/config"
	apihttp "github.com/ems-hq/attendance/internal/http"
	"github.com/ems-hq/attendance/internal/http/api/front/handlers"
	"github.com/ems-hq/attendance/internal/lock"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BasePath is the prefix of the employee-facing API.
const BasePath = "/api/v1"

// Deps carries what the front routes need beyond the database.
type Deps struct {
	JWT        config.JWTConfig
	Attendance *attendance.Service
}

// RegisterFrontRoutes registers public and authenticated employee-facing routes.
func RegisterFrontRoutes(r *gin.Engine, db *gorm.DB, deps Deps) {
	if r == nil || db == nil {
		return
	}
	clock := deps.Attendance
	if clock == nil {
		clock = attendance.NewService(db, lock.NewLocalLocker())
	}

	front := r.Group(BasePath)

	authHandler := handlers.NewAuthHandler(db, deps.JWT)
	front.POST("/auth/signup", authHandler.Signup)
	front.POST("/auth/login", authHandler.Login)

	authed := front.Group("")
	authed.Use(apihttp.UserAuthMiddleware(db, deps.JWT))

	profileHandler := handlers.NewProfileHandler(db)
	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.PUT("/profile/password", profileHandler.ChangePassword)

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/profile/totp", mfaHandler.Status)
	authed.POST("/profile/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/profile/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/profile/totp/disable", mfaHandler.DisableTOTP)

	companyHandler := handlers.NewCompanyHandler(db)
	authed.GET("/company", companyHandler.Get)

	projectHandler := handlers.NewProjectHandler(db)
	authed.GET("/projects", projectHandler.List)
	authed.GET("/projects/:id", projectHandler.Get)

	attendanceHandler := handlers.NewAttendanceHandler(db, clock)
	authed.POST("/attendance/clock-in", attendanceHandler.ClockIn)
	authed.POST("/attendance/clock-out", attendanceHandler.ClockOut)
	authed.GET("/attendance/current", attendanceHandler.Current)
	authed.GET("/attendance", attendanceHandler.List)

	leaveHandler := handlers.NewLeaveHandler(db)
	authed.POST("/leave-requests", leaveHandler.Create)
	authed.GET("/leave-requests", leaveHandler.List)

	workReportHandler := handlers.NewWorkReportHandler(db)
	authed.POST("/work-reports", workReportHandler.Create)
	authed.GET("/work-reports", workReportHandler.List)
	authed.PUT("/work-reports/:id", workReportHandler.Update)
	authed.DELETE("/work-reports/:id", workReportHandler.Delete)

	journalHandler := handlers.NewJournalHandler(db)
	authed.POST("/journal", journalHandler.Create)
	authed.GET("/journal", journalHandler.List)

	trainingHandler := handlers.NewTrainingHandler(db)
	authed.GET("/training", trainingHandler.List)
	authed.POST("/training/:id/complete", trainingHandler.Complete)

	messageHandler := handlers.NewMessageHandler(db)
	authed.POST("/messages", messageHandler.Send)
	authed.GET("/messages/inbox", messageHandler.Inbox)
	authed.GET("/messages/sent", messageHandler.Sent)
	authed.GET("/messages/unread-count", messageHandler.UnreadCount)
	authed.GET("/messages/:id", messageHandler.Get)

	calendarHandler := handlers.NewCalendarHandler(db)
	authed.GET("/calendar/events", calendarHandler.List)

	billingHandler := handlers.NewBillingHandler(db)
	authed.GET("/billing/mine", billingHandler.Mine)
}
