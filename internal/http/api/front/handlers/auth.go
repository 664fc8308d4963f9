package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/ems-hq/attendance/internal/config"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/ems-hq/attendance/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler serves signup and login.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// signupRequest is the self-service registration form.
type signupRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

// normalize trims the text fields and returns the first validation problem, if any.
func (r *signupRequest) normalize() string {
	r.Username = strings.TrimSpace(r.Username)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Department = strings.TrimSpace(r.Department)
	switch {
	case r.Username == "" || r.Name == "" || r.Email == "":
		return "missing required fields"
	case security.ValidatePassword(r.Password) != nil:
		return "password too short"
	case len(r.Phone) > maxPhoneLength:
		return "phone too long"
	}
	if _, errAddr := mail.ParseAddress(r.Email); errAddr != nil {
		return "invalid email"
	}
	return ""
}

// Signup registers an employee-role account together with its employee profile.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body signupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if msg := body.normalize(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	for _, unique := range []struct {
		model  any
		column string
		value  string
		msg    string
	}{
		{&models.User{}, "username", body.Username, "username already exists"},
		{&models.Employee{}, "email", body.Email, "email already exists"},
	} {
		taken, errTaken := h.taken(ctx, unique.model, unique.column, unique.value)
		if errTaken != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if taken {
			c.JSON(http.StatusConflict, gin.H{"error": unique.msg})
			return
		}
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	user := models.User{Username: body.Username, Password: hash, Role: models.RoleEmployee, Active: true}
	employee := models.Employee{Name: body.Name, Email: body.Email, Phone: body.Phone, Department: body.Department}
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		employee.UserID = user.ID
		return tx.Create(&employee).Error
	})
	if errTx != nil {
		log.WithError(errTx).WithField("username", body.Username).Error("signup: create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"role":        user.Role,
		"employee_id": employee.ID,
	})
}

func (h *AuthHandler) taken(ctx context.Context, model any, column, value string) (bool, error) {
	var count int64
	errCount := h.db.WithContext(ctx).Model(model).Where(column+" = ?", value).Count(&count).Error
	return count > 0, errCount
}

// loginRequest carries credentials and, for TOTP users, the current code.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

// Login checks the credentials and issues a JWT. Disabled accounts are refused only after the
// password matches so the response does not reveal which usernames exist.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error
	switch {
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case errFind != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	case !security.CheckPassword(user.Password, body.Password):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case !user.Active:
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}
	if msg := secondFactorProblem(user, body.TOTPCode); msg != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msg, "mfa_required": true})
		return
	}

	h.upgradeHash(c.Request.Context(), user.ID, user.Password, body.Password)

	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Username, string(user.Role), h.jwtCfg.Expiry)
	if errToken != nil {
		log.WithError(errToken).WithField("user_id", user.ID).Error("login: sign token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"token":    token,
	})
}

// upgradeHash rehashes a verified password stored under an outdated bcrypt cost. Failures are
// logged and do not block the login.
func (h *AuthHandler) upgradeHash(ctx context.Context, userID uint64, hash, password string) {
	if !security.NeedsRehash(hash) {
		return
	}
	rehashed, errHash := security.HashPassword(password)
	if errHash != nil {
		log.WithError(errHash).WithField("user_id", userID).Warn("login: rehash password failed")
		return
	}
	if errSave := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND password = ?", userID, hash).
		Update("password", rehashed).Error; errSave != nil {
		log.WithError(errSave).WithField("user_id", userID).Warn("login: store rehashed password failed")
	}
}

// secondFactorProblem returns why the TOTP step fails for user, or "" when it passes or is off.
func secondFactorProblem(user models.User, code string) string {
	if strings.TrimSpace(user.TOTPSecret) == "" {
		return ""
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "totp code required"
	}
	if !security.ValidateTOTP(code, user.TOTPSecret) {
		return "invalid code"
	}
	return ""
}
