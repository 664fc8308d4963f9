package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/attendance"
	"github.com/ems-hq/attendance/internal/billing"
	"github.com/ems-hq/attendance/internal/config"
	"github.com/ems-hq/attendance/internal/db"
	apihttp "github.com/ems-hq/attendance/internal/http"
	internalhttp "github.com/ems-hq/attendance/internal/http/api/admin"
	"github.com/ems-hq/attendance/internal/http/api/front"
	"github.com/ems-hq/attendance/internal/lock"
	"github.com/ems-hq/attendance/internal/logging"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/ems-hq/attendance/internal/security"
	internalsettings "github.com/ems-hq/attendance/internal/settings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// CreateAdminParams holds inputs for administrator creation.
type CreateAdminParams struct {
	Username string
	Password string
	Name     string
	Email    string
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// CreateAdmin creates an administrator account with its employee profile.
func CreateAdmin(ctx context.Context, cfg config.AppConfig, params CreateAdminParams) (*models.User, error) {
	username := strings.TrimSpace(params.Username)
	name := strings.TrimSpace(params.Name)
	email := strings.TrimSpace(params.Email)
	if username == "" || name == "" || email == "" {
		return nil, errors.New("username, name and email are required")
	}
	if errPassword := security.ValidatePassword(params.Password); errPassword != nil {
		return nil, errPassword
	}

	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}

	hash, errHash := security.HashPassword(params.Password)
	if errHash != nil {
		return nil, fmt.Errorf("hash password: %w", errHash)
	}
	user := models.User{Username: username, Password: hash, Role: models.RoleAdmin, Active: true}
	errTx := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; errCount != nil {
			return errCount
		}
		if count > 0 {
			return fmt.Errorf("username %q already exists", username)
		}
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		employee := models.Employee{UserID: user.ID, Name: name, Email: email, Position: "Administrator"}
		return tx.Create(&employee).Error
	})
	if errTx != nil {
		return nil, errTx
	}
	return &user, nil
}

// RunServer boots the HTTP API and the background attendance auto-closer. It returns when ctx
// is cancelled or either component fails.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	appCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(appCfg.JWT.Secret) == "" {
		return config.ErrMissingJWTSecret
	}
	if errCost := security.SetPasswordCost(appCfg.Auth.PasswordCost); errCost != nil {
		return errCost
	}
	logCloser, err := logging.Setup(appCfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.OpenWithPool(appCfg.Database.DSN, db.PoolOptions{
		MaxOpenConns:    appCfg.Database.MaxOpenConns,
		ConnMaxLifetime: appCfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return fmt.Errorf("load settings: %w", errRefresh)
	}

	var rdb *redis.Client
	var locker lock.Locker = lock.NewLocalLocker()
	if appCfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     appCfg.Redis.Addr,
			Password: appCfg.Redis.Password,
			DB:       appCfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		errPing := rdb.Ping(pingCtx).Err()
		cancel()
		if errPing != nil {
			return fmt.Errorf("connect redis %s: %w", appCfg.Redis.Addr, errPing)
		}
		locker = lock.NewRedisLocker(rdb, appCfg.Redis.KeyPrefix)
		log.Infof("using redis locks at %s", appCfg.Redis.Addr)
	}

	billingService := billing.NewService(conn, billing.ServiceOptions{
		Currency:         appCfg.Billing.Currency,
		FormulaMaxLength: appCfg.Billing.FormulaMaxLength,
		Locker:           locker,
	})
	clock := attendance.NewService(conn, locker)
	autoCloser := attendance.NewAutoCloser(conn, appCfg.Attendance.CheckInterval, appCfg.Attendance.AutoCloseAfterHours)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), apihttp.RequestLogger())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	front.RegisterFrontRoutes(engine, conn, front.Deps{JWT: appCfg.JWT, Attendance: clock})
	internalhttp.RegisterAdminRoutes(engine, conn, internalhttp.Deps{
		JWT:              appCfg.JWT,
		Billing:          billingService,
		Redis:            rdb,
		FormulaMaxLength: appCfg.Billing.FormulaMaxLength,
	})

	server := &http.Server{
		Addr:              appCfg.Server.Listen,
		Handler:           corsHandler(appCfg.Server.CORSOrigins).Handler(engine),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Infof("starting server on %s with config=%s", appCfg.Server.Listen, configPath)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	})
	group.Go(func() error {
		return autoCloser.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// corsHandler allows the configured origins, or every origin when none is configured.
func corsHandler(origins []string) *cors.Cors {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowedOrigins = origins
	}
	return cors.New(opts)
}
