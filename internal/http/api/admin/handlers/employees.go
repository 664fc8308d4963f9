package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	dbutil "github.com/ems-hq/attendance/internal/db"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/ems-hq/attendance/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmployeeHandler manages user accounts and their employee profiles.
type EmployeeHandler struct {
	db *gorm.DB
}

// NewEmployeeHandler constructs an EmployeeHandler.
func NewEmployeeHandler(db *gorm.DB) *EmployeeHandler {
	return &EmployeeHandler{db: db}
}

// createEmployeeRequest defines the request body for employee creation.
type createEmployeeRequest struct {
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	Role       models.Role `json:"role"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Department string      `json:"department"`
	Position   string      `json:"position"`
	HireDate   string      `json:"hire_date"`
}

// Create creates a user account with its employee profile. An empty password generates a
// temporary one that is returned once.
func (h *EmployeeHandler) Create(c *gin.Context) {
	var body createEmployeeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	name := strings.TrimSpace(body.Name)
	email := strings.TrimSpace(body.Email)
	if username == "" || name == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	if _, errAddr := mail.ParseAddress(email); errAddr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	role := body.Role
	if role == "" {
		role = models.RoleEmployee
	}
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	var hireDate *datatypes.Date
	if strings.TrimSpace(body.HireDate) != "" {
		parsed, errDate := parseDate(body.HireDate)
		if errDate != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hire_date"})
			return
		}
		d := datatypes.Date(parsed)
		hireDate = &d
	}

	password := body.Password
	temporary := ""
	if password == "" {
		generated, errGenerate := security.GenerateTemporaryPassword()
		if errGenerate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate password failed"})
			return
		}
		password = generated
		temporary = generated
	} else if security.ValidatePassword(password) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}

	ctx := c.Request.Context()
	conflict, errConflict := h.identityConflict(ctx, username, email, 0)
	if errConflict != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if conflict != "" {
		c.JSON(http.StatusConflict, gin.H{"error": conflict})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := models.User{Username: username, Password: hash, Role: role, Active: true}
	employee := models.Employee{
		Name:       name,
		Email:      email,
		Phone:      strings.TrimSpace(body.Phone),
		Department: strings.TrimSpace(body.Department),
		Position:   strings.TrimSpace(body.Position),
		HireDate:   hireDate,
	}
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		employee.UserID = user.ID
		return tx.Create(&employee).Error
	})
	if errTx != nil {
		log.WithError(errTx).Error("create employee failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create employee failed"})
		return
	}

	employee.User = &user
	out := formatEmployee(&employee)
	if temporary != "" {
		out["temporary_password"] = temporary
	}
	c.JSON(http.StatusCreated, out)
}

// listEmployeesQuery filters the employee list.
type listEmployeesQuery struct {
	listQuery
	Search     string `form:"search"`
	Department string `form:"department"`
	Role       string `form:"role"`
}

// List returns employees with optional search, department and role filters.
func (h *EmployeeHandler) List(c *gin.Context) {
	var q listEmployeesQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.Employee{}).
		Joins("JOIN users ON users.id = employees.user_id")
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := dbutil.ContainsPattern(h.db, search)
		query = query.Where(
			"("+dbutil.CaseInsensitiveLikeExpr(h.db, "employees.name")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "employees.email")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "users.username")+")",
			pattern, pattern, pattern)
	}
	if department := strings.TrimSpace(q.Department); department != "" {
		query = query.Where("employees.department = ?", department)
	}
	if role := strings.TrimSpace(q.Role); role != "" {
		if !models.Role(role).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		query = query.Where("users.role = ?", role)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list employees failed"})
		return
	}
	var rows []models.Employee
	if errFind := query.Preload("User").
		Order("employees.name ASC, employees.id ASC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list employees failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatEmployee(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"employees": out, "total": total, "page": q.Page, "limit": q.Limit})
}

// Get returns a single employee by ID.
func (h *EmployeeHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var employee models.Employee
	if errFind := h.db.WithContext(c.Request.Context()).Preload("User").First(&employee, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatEmployee(&employee))
}

// updateEmployeeRequest defines the request body for employee updates.
type updateEmployeeRequest struct {
	Username                *string      `json:"username"`
	Role                    *models.Role `json:"role"`
	Active                  *bool        `json:"active"`
	Name                    *string      `json:"name"`
	Email                   *string      `json:"email"`
	Phone                   *string      `json:"phone"`
	Department              *string      `json:"department"`
	Position                *string      `json:"position"`
	HireDate                *string      `json:"hire_date"`
	Skills                  *string      `json:"skills"`
	Qualifications          *string      `json:"qualifications"`
	ProfessionalDevelopment *string      `json:"professional_development"`
}

// Update modifies account and profile fields of an employee.
func (h *EmployeeHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updateEmployeeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	var employee models.Employee
	if errFind := h.db.WithContext(ctx).Preload("User").First(&employee, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	now := time.Now().UTC()
	userUpdates := map[string]any{}
	profileUpdates := map[string]any{}
	newUsername, newEmail := "", ""
	if body.Username != nil {
		username := strings.TrimSpace(*body.Username)
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username cannot be empty"})
			return
		}
		userUpdates["username"] = username
		newUsername = username
	}
	if body.Role != nil {
		if !body.Role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		if employee.UserID == getUserID(c) && *body.Role != models.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot change own role"})
			return
		}
		userUpdates["role"] = *body.Role
	}
	if body.Active != nil {
		if employee.UserID == getUserID(c) && !*body.Active {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot disable own account"})
			return
		}
		userUpdates["active"] = *body.Active
	}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		profileUpdates["name"] = name
	}
	if body.Email != nil {
		email := strings.TrimSpace(*body.Email)
		if _, errAddr := mail.ParseAddress(email); errAddr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		profileUpdates["email"] = email
		newEmail = email
	}
	if body.HireDate != nil {
		if strings.TrimSpace(*body.HireDate) == "" {
			profileUpdates["hire_date"] = nil
		} else {
			parsed, errDate := parseDate(*body.HireDate)
			if errDate != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hire_date"})
				return
			}
			profileUpdates["hire_date"] = datatypes.Date(parsed)
		}
	}
	for column, value := range map[string]*string{
		"phone":                    body.Phone,
		"department":               body.Department,
		"position":                 body.Position,
		"skills":                   body.Skills,
		"qualifications":           body.Qualifications,
		"professional_development": body.ProfessionalDevelopment,
	} {
		if value != nil {
			profileUpdates[column] = strings.TrimSpace(*value)
		}
	}

	if newUsername != "" || newEmail != "" {
		conflict, errConflict := h.identityConflict(ctx, newUsername, newEmail, employee.ID)
		if errConflict != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if conflict != "" {
			c.JSON(http.StatusConflict, gin.H{"error": conflict})
			return
		}
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(userUpdates) > 0 {
			userUpdates["updated_at"] = now
			if errUpdate := tx.Model(&models.User{}).Where("id = ?", employee.UserID).Updates(userUpdates).Error; errUpdate != nil {
				return errUpdate
			}
		}
		if len(profileUpdates) > 0 {
			profileUpdates["updated_at"] = now
			if errUpdate := tx.Model(&models.Employee{}).Where("id = ?", employee.ID).Updates(profileUpdates).Error; errUpdate != nil {
				return errUpdate
			}
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	if errReload := h.db.WithContext(ctx).Preload("User").First(&employee, employee.ID).Error; errReload != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatEmployee(&employee))
}

// Delete removes an employee, its account and its activity. Employees with billing records are
// kept for the books and must be deactivated instead.
func (h *EmployeeHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var employee models.Employee
	if errFind := h.db.WithContext(ctx).First(&employee, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if employee.UserID == getUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete own account"})
		return
	}

	var billed int64
	if errCount := h.db.WithContext(ctx).Model(&models.BillingRecord{}).Where("employee_id = ?", employee.ID).Count(&billed).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if billed > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "employee has billing records; deactivate instead"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.Attendance{},
			&models.LeaveRequest{},
			&models.WorkReport{},
			&models.ProjectJournal{},
			&models.TrainingAssignment{},
		} {
			if errDelete := tx.Where("employee_id = ?", employee.ID).Delete(model).Error; errDelete != nil {
				return errDelete
			}
		}
		if errDelete := tx.Where("sender_id = ? OR recipient_id = ?", employee.UserID, employee.UserID).
			Delete(&models.InternalMessage{}).Error; errDelete != nil {
			return errDelete
		}
		if errDelete := tx.Delete(&models.Employee{}, employee.ID).Error; errDelete != nil {
			return errDelete
		}
		return tx.Delete(&models.User{}, employee.UserID).Error
	})
	if errTx != nil {
		log.WithError(errTx).WithField("employee_id", employee.ID).Error("delete employee failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// resetPasswordRequest defines the optional new password. An empty body generates one.
type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ResetPassword replaces the employee's password and clears TOTP so the user can sign in again.
func (h *EmployeeHandler) ResetPassword(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body resetPasswordRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	password := body.NewPassword
	generated := false
	if password == "" {
		temp, errGenerate := security.GenerateTemporaryPassword()
		if errGenerate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generate password failed"})
			return
		}
		password = temp
		generated = true
	} else if security.ValidatePassword(password) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}

	ctx := c.Request.Context()
	var employee models.Employee
	if errFind := h.db.WithContext(ctx).Select("id", "user_id").First(&employee, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	if errUpdate := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", employee.UserID).Updates(map[string]any{
		"password":    hash,
		"totp_secret": "",
		"updated_at":  time.Now().UTC(),
	}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset password failed"})
		return
	}

	out := gin.H{"ok": true}
	if generated {
		out["temporary_password"] = password
	}
	c.JSON(http.StatusOK, out)
}

// identityConflict reports which unique identity is already taken by someone other than the
// employee exceptID. Empty values are not checked.
func (h *EmployeeHandler) identityConflict(ctx context.Context, username, email string, exceptID uint64) (string, error) {
	if username != "" {
		query := h.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username)
		if exceptID != 0 {
			query = query.Where("id NOT IN (?)", h.db.Model(&models.Employee{}).Select("user_id").Where("id = ?", exceptID))
		}
		var count int64
		if errCount := query.Count(&count).Error; errCount != nil {
			return "", errCount
		}
		if count > 0 {
			return "username already exists", nil
		}
	}
	if email != "" {
		query := h.db.WithContext(ctx).Model(&models.Employee{}).Where("email = ?", email)
		if exceptID != 0 {
			query = query.Where("id <> ?", exceptID)
		}
		var count int64
		if errCount := query.Count(&count).Error; errCount != nil {
			return "", errCount
		}
		if count > 0 {
			return "email already exists", nil
		}
	}
	return "", nil
}

// formatEmployee converts an employee and its account into a response payload.
func formatEmployee(e *models.Employee) gin.H {
	out := gin.H{
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
	if e.User != nil {
		out["username"] = e.User.Username
		out["role"] = e.User.Role
		out["active"] = e.User.Active
		out["totp_enabled"] = strings.TrimSpace(e.User.TOTPSecret) != ""
	}
	return out
}
