package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TrainingHandler manages training modules and their assignment.
type TrainingHandler struct {
	db *gorm.DB
}

// NewTrainingHandler constructs a TrainingHandler.
func NewTrainingHandler(db *gorm.DB) *TrainingHandler {
	return &TrainingHandler{db: db}
}

// moduleRequest defines the create and update body.
type moduleRequest struct {
	Title          *string `json:"title"`
	Content        *string `json:"content"`
	TargetAudience *string `json:"target_audience"`
	IsActive       *bool   `json:"is_active"`
}

// apply merges the request onto m and returns a client error message, or "".
func (r *moduleRequest) apply(m *models.TrainingModule) string {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return "missing title"
		}
		if len(title) > 200 {
			return "title too long"
		}
		m.Title = title
	}
	if r.Content != nil {
		content := strings.TrimSpace(*r.Content)
		if content == "" {
			return "missing content"
		}
		m.Content = content
	}
	if r.TargetAudience != nil {
		audience := models.TrainingAudience(strings.ToLower(strings.TrimSpace(*r.TargetAudience)))
		if !audience.Valid() {
			return "invalid target_audience"
		}
		m.TargetAudience = audience
	}
	if r.IsActive != nil {
		m.IsActive = *r.IsActive
	}
	return ""
}

// CreateModule creates a training module.
func (h *TrainingHandler) CreateModule(c *gin.Context) {
	var body moduleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == nil || body.Content == nil || body.TargetAudience == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields"})
		return
	}
	module := models.TrainingModule{IsActive: true, CreatedBy: getUserID(c)}
	if msg := body.apply(&module); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	ctx := c.Request.Context()
	if errCreate := h.db.WithContext(ctx).Create(&module).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	// IsActive=false is a zero value that the column default would override.
	if !module.IsActive {
		if errUpdate := h.db.WithContext(ctx).Model(&module).Update("is_active", false).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
			return
		}
	}
	c.JSON(http.StatusCreated, formatModule(&module))
}

// ListModules returns every training module.
func (h *TrainingHandler) ListModules(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.TrainingModule{})
	if audience := strings.TrimSpace(c.Query("target_audience")); audience != "" {
		query = query.Where("target_audience = ?", audience)
	}
	var rows []models.TrainingModule
	if errFind := query.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatModule(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"modules": out})
}

// UpdateModule edits a training module.
func (h *TrainingHandler) UpdateModule(c *gin.Context) {
	module, ok := h.loadModule(c)
	if !ok {
		return
	}
	var body moduleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if msg := body.apply(module); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	module.UpdatedAt = time.Now().UTC()
	if errSave := h.db.WithContext(c.Request.Context()).Model(module).
		Select("title", "content", "target_audience", "is_active", "updated_at").
		Updates(module).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, formatModule(module))
}

// DeleteModule removes a module with its assignments.
func (h *TrainingHandler) DeleteModule(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var res *gorm.DB
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDelete := tx.Where("module_id = ?", id).Delete(&models.TrainingAssignment{}).Error; errDelete != nil {
			return errDelete
		}
		if errDelete := tx.Where("module_id = ?", id).Delete(&models.ProjectTrainingAssignment{}).Error; errDelete != nil {
			return errDelete
		}
		res = tx.Delete(&models.TrainingModule{}, id)
		return res.Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// assignEmployeeRequest names the employee to train.
type assignEmployeeRequest struct {
	EmployeeID uint64 `json:"employee_id"`
}

// AssignEmployee assigns a module to one employee. A second assignment answers 409.
func (h *TrainingHandler) AssignEmployee(c *gin.Context) {
	module, ok := h.loadModule(c)
	if !ok {
		return
	}
	var body assignEmployeeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.EmployeeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !module.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "module inactive"})
		return
	}

	ctx := c.Request.Context()
	var employee models.Employee
	if errFind := h.db.WithContext(ctx).Select("id", "user_id").First(&employee, body.EmployeeID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var existing int64
	if errCount := h.db.WithContext(ctx).Model(&models.TrainingAssignment{}).
		Where("module_id = ? AND employee_id = ?", module.ID, employee.ID).
		Count(&existing).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "already assigned"})
		return
	}

	assignment := models.TrainingAssignment{ModuleID: module.ID, EmployeeID: employee.ID}
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&assignment).Error; errCreate != nil {
			return errCreate
		}
		return notifyUser(tx, getUserID(c), employee.UserID, "New Training Assigned",
			"You have been assigned the training module \""+module.Title+"\".")
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign failed"})
		return
	}
	assignment.Module = module
	c.JSON(http.StatusCreated, formatAssignment(&assignment))
}

// assignProjectRequest names the project whose staff should be trained.
type assignProjectRequest struct {
	ProjectID uint64 `json:"project_id"`
}

// AssignProject links a module to a project and assigns it to every employee that has reported
// work on the project. Existing assignments are left untouched.
func (h *TrainingHandler) AssignProject(c *gin.Context) {
	module, ok := h.loadModule(c)
	if !ok {
		return
	}
	var body assignProjectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.ProjectID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !module.IsActive {
		c.JSON(http.StatusConflict, gin.H{"error": "module inactive"})
		return
	}

	ctx := c.Request.Context()
	var project models.Project
	if errFind := h.db.WithContext(ctx).Select("id").First(&project, body.ProjectID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var assigned int64
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link := models.ProjectTrainingAssignment{ModuleID: module.ID, ProjectID: project.ID}
		if errCreate := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; errCreate != nil {
			return errCreate
		}
		var employeeIDs []uint64
		if errPluck := tx.Model(&models.WorkReport{}).
			Where("project_id = ?", project.ID).
			Distinct().Pluck("employee_id", &employeeIDs).Error; errPluck != nil {
			return errPluck
		}
		if len(employeeIDs) == 0 {
			return nil
		}
		rows := make([]models.TrainingAssignment, 0, len(employeeIDs))
		for _, employeeID := range employeeIDs {
			rows = append(rows, models.TrainingAssignment{ModuleID: module.ID, EmployeeID: employeeID})
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		assigned = res.RowsAffected
		return res.Error
	})
	if errTx != nil {
		log.WithError(errTx).WithFields(log.Fields{"module_id": module.ID, "project_id": project.ID}).Error("assign training to project failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assign failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"module_id": module.ID, "project_id": project.ID, "assigned": assigned})
}

// listAssignmentsQuery filters the assignment list.
type listAssignmentsQuery struct {
	listQuery
	ModuleID   uint64 `form:"module_id"`
	EmployeeID uint64 `form:"employee_id"`
	Completed  *bool  `form:"completed"`
}

// ListAssignments returns assignments with module and employee details.
func (h *TrainingHandler) ListAssignments(c *gin.Context) {
	var q listAssignmentsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.TrainingAssignment{})
	if q.ModuleID != 0 {
		query = query.Where("module_id = ?", q.ModuleID)
	}
	if q.EmployeeID != 0 {
		query = query.Where("employee_id = ?", q.EmployeeID)
	}
	if q.Completed != nil {
		query = query.Where("is_completed = ?", *q.Completed)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.TrainingAssignment
	if errFind := query.Preload("Module").Preload("Employee").
		Order("assigned_at DESC, id DESC").
		Offset(q.offset()).Limit(q.Limit).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAssignment(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"assignments": out, "total": total, "page": q.Page, "limit": q.Limit})
}

func (h *TrainingHandler) loadModule(c *gin.Context) (*models.TrainingModule, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}
	var module models.TrainingModule
	if errFind := h.db.WithContext(c.Request.Context()).First(&module, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &module, true
}

func formatModule(m *models.TrainingModule) gin.H {
	return gin.H{
		"id":              m.ID,
		"title":           m.Title,
		"content":         m.Content,
		"target_audience": m.TargetAudience,
		"is_active":       m.IsActive,
		"created_by":      m.CreatedBy,
		"created_at":      m.CreatedAt,
		"updated_at":      m.UpdatedAt,
	}
}

func formatAssignment(a *models.TrainingAssignment) gin.H {
	out := gin.H{
		"id":           a.ID,
		"module_id":    a.ModuleID,
		"employee_id":  a.EmployeeID,
		"assigned_at":  a.AssignedAt,
		"is_completed": a.IsCompleted,
		"completed_at": a.CompletedAt,
	}
	if a.Module != nil {
		out["module_title"] = a.Module.Title
	}
	if a.Employee != nil {
		out["employee_name"] = a.Employee.Name
	}
	return out
}
