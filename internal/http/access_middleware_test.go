package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ems-hq/attendance/internal/config"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/ems-hq/attendance/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testSecret = "middleware-test-secret"

func setupMiddlewareDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:middleware_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.User{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, username string, role models.Role, active bool) models.User {
	t.Helper()

	user := models.User{Username: username, Password: "x", Role: role, Active: true}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	if !active {
		if errUpdate := conn.Model(&user).Update("active", false).Error; errUpdate != nil {
			t.Fatalf("deactivate user: %v", errUpdate)
		}
	}
	return user
}

func bearer(t *testing.T, user models.User, expiry time.Duration) string {
	t.Helper()

	token, errToken := security.GenerateToken(testSecret, user.ID, user.Username, string(user.Role), expiry)
	if errToken != nil {
		t.Fatalf("generate token: %v", errToken)
	}
	return "Bearer " + token
}

func runRequestWithMiddleware(t *testing.T, authorization string, middleware ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware...)
	router.GET("/*path", func(c *gin.Context) {
		role, _ := c.Get(ContextUserRole)
		c.String(http.StatusOK, "%v", role)
	})

	responseRecorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(responseRecorder, req)

	return responseRecorder
}

func TestUserAuthMiddleware(t *testing.T) {
	conn := setupMiddlewareDB(t)
	jwtCfg := config.JWTConfig{Secret: testSecret, Expiry: time.Hour}
	active := createUser(t, conn, "alice", models.RoleManager, true)
	disabled := createUser(t, conn, "bob", models.RoleEmployee, false)

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
	}{
		{name: "missing header", authorization: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", authorization: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authorization: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "expired token", authorization: bearer(t, active, -time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "unknown user", authorization: bearer(t, models.User{ID: 999, Username: "ghost"}, time.Hour), wantStatus: http.StatusUnauthorized},
		{name: "disabled user", authorization: bearer(t, disabled, time.Hour), wantStatus: http.StatusForbidden},
		{name: "valid", authorization: bearer(t, active, time.Hour), wantStatus: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := runRequestWithMiddleware(t, tc.authorization, UserAuthMiddleware(conn, jwtCfg))
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUserAuthMiddlewareUsesStoredRole(t *testing.T) {
	conn := setupMiddlewareDB(t)
	jwtCfg := config.JWTConfig{Secret: testSecret, Expiry: time.Hour}
	user := createUser(t, conn, "carol", models.RoleAdmin, true)
	token := bearer(t, user, time.Hour)

	if errUpdate := conn.Model(&user).Update("role", models.RoleEmployee).Error; errUpdate != nil {
		t.Fatalf("demote: %v", errUpdate)
	}

	rec := runRequestWithMiddleware(t, token, UserAuthMiddleware(conn, jwtCfg), RequireRoles(models.RoleAdmin))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 after demotion, got %d", rec.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	conn := setupMiddlewareDB(t)
	jwtCfg := config.JWTConfig{Secret: testSecret, Expiry: time.Hour}
	manager := createUser(t, conn, "dave", models.RoleManager, true)
	employee := createUser(t, conn, "erin", models.RoleEmployee, true)

	auth := UserAuthMiddleware(conn, jwtCfg)
	guard := RequireRoles(models.RoleAdmin, models.RoleManager)

	rec := runRequestWithMiddleware(t, bearer(t, manager, time.Hour), auth, guard)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected manager to pass, got %d", rec.Code)
	}
	if rec.Body.String() != string(models.RoleManager) {
		t.Fatalf("expected role in context, got %q", rec.Body.String())
	}

	rec = runRequestWithMiddleware(t, bearer(t, employee, time.Hour), auth, guard)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected employee to be rejected, got %d", rec.Code)
	}

	rec = runRequestWithMiddleware(t, "", guard)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected missing role to be unauthorized, got %d", rec.Code)
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	rec := runRequestWithMiddleware(t, "", RequestLogger())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}
