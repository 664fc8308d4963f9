package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/ems-hq/attendance/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxPhoneLength = 20

// ProfileHandler serves the signed-in user's account and employee profile.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// Get returns the account together with the linked employee profile, if any.
func (h *ProfileHandler) Get(c *gin.Context) {
	user, ok := currentUser(c, h.db, func(q *gorm.DB) *gorm.DB { return q.Preload("Employee") })
	if !ok {
		return
	}
	out := gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"role":         user.Role,
		"active":       user.Active,
		"totp_enabled": strings.TrimSpace(user.TOTPSecret) != "",
		"created_at":   user.CreatedAt,
		"updated_at":   user.UpdatedAt,
	}
	if user.Employee != nil {
		out["employee"] = formatEmployee(user.Employee)
	}
	c.JSON(http.StatusOK, out)
}

// updateProfileRequest lists the fields an employee may edit. Name, email, position and hire
// date stay under HR control.
type updateProfileRequest struct {
	Phone                   *string `json:"phone"`
	Department              *string `json:"department"`
	Skills                  *string `json:"skills"`
	Qualifications          *string `json:"qualifications"`
	ProfessionalDevelopment *string `json:"professional_development"`
}

func (r updateProfileRequest) changes() map[string]any {
	fields := map[string]*string{
		"phone":                    r.Phone,
		"department":               r.Department,
		"skills":                   r.Skills,
		"qualifications":           r.Qualifications,
		"professional_development": r.ProfessionalDevelopment,
	}
	out := make(map[string]any, len(fields))
	for column, value := range fields {
		if value != nil {
			out[column] = strings.TrimSpace(*value)
		}
	}
	return out
}

// Update applies the self-service profile fields.
func (h *ProfileHandler) Update(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	changes := body.changes()
	if phone, has := changes["phone"].(string); has && len(phone) > maxPhoneLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone too long"})
		return
	}
	if len(changes) > 0 {
		changes["updated_at"] = time.Now().UTC()
		ctx := c.Request.Context()
		errSave := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if errUpdate := tx.Model(employee).Updates(changes).Error; errUpdate != nil {
				return errUpdate
			}
			return tx.First(employee, employee.ID).Error
		})
		if errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatEmployee(employee))
}

// changePasswordRequest carries the current and the replacement password.
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (r changePasswordRequest) problem() string {
	switch {
	case r.OldPassword == "" || r.NewPassword == "":
		return "missing password"
	case security.ValidatePassword(r.NewPassword) != nil:
		return "password too short"
	case r.NewPassword == r.OldPassword:
		return "new password must differ"
	}
	return ""
}

// ChangePassword replaces the password after verifying the current one.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if msg := body.problem(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	user, ok := currentUser(c, h.db, nil)
	if !ok {
		return
	}
	if !security.CheckPassword(user.Password, body.OldPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "old password incorrect"})
		return
	}
	hash, errHash := security.HashPassword(body.NewPassword)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"password": hash, "updated_at": time.Now().UTC()}).Error
	if errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formatEmployee converts an employee profile into a response payload.
func formatEmployee(e *models.Employee) gin.H {
	return gin.H{
		"id":                       e.ID,
		"user_id":                  e.UserID,
		"name":                     e.Name,
		"email":                    e.Email,
		"phone":                    e.Phone,
		"department":               e.Department,
		"position":                 e.Position,
		"hire_date":                formatDatePtr(e.HireDate),
		"skills":                   e.Skills,
		"qualifications":           e.Qualifications,
		"professional_development": e.ProfessionalDevelopment,
		"created_at":               e.CreatedAt,
		"updated_at":               e.UpdatedAt,
	}
}
