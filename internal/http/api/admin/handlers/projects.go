package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/billing"
	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectHandler manages projects and their billing configuration.
type ProjectHandler struct {
	db               *gorm.DB
	formulaMaxLength int
}

// NewProjectHandler constructs a ProjectHandler. formulaMaxLength <= 0 uses the billing default.
func NewProjectHandler(db *gorm.DB, formulaMaxLength int) *ProjectHandler {
	return &ProjectHandler{db: db, formulaMaxLength: formulaMaxLength}
}

// projectRequest defines the create and update body. Update applies only the fields present;
// billing fields are validated together after merging.
type projectRequest struct {
	Name             *string  `json:"name"`
	Description      *string  `json:"description"`
	StartDate        *string  `json:"start_date"`
	EndDate          *string  `json:"end_date"`
	Status           *string  `json:"status"`
	BillingMethod    *string  `json:"billing_method"`
	BillingRate      *float64 `json:"billing_rate"`
	BillingFormula   *string  `json:"billing_formula"`
	MetricLabel      *string  `json:"metric_label"`
	MetricDivisor    *float64 `json:"metric_divisor"`
	MetricMultiplier *float64 `json:"metric_multiplier"`
}

// apply merges the request onto p and normalises its billing columns. It returns a client error
// message, or "" on success.
func (r *projectRequest) apply(p *models.Project, formulaMaxLength int) string {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return "missing name"
		}
		if len(name) > 100 {
			return "name too long"
		}
		p.Name = name
	}
	if r.Description != nil {
		p.Description = strings.TrimSpace(*r.Description)
	}
	if r.StartDate != nil {
		d, errDate := optionalDate(*r.StartDate)
		if errDate != nil {
			return "invalid start_date"
		}
		p.StartDate = d
	}
	if r.EndDate != nil {
		d, errDate := optionalDate(*r.EndDate)
		if errDate != nil {
			return "invalid end_date"
		}
		p.EndDate = d
	}
	if p.StartDate != nil && p.EndDate != nil && time.Time(*p.StartDate).After(time.Time(*p.EndDate)) {
		return "start_date after end_date"
	}
	if r.Status != nil {
		status := models.ProjectStatus(strings.ToLower(strings.TrimSpace(*r.Status)))
		if !status.Valid() {
			return "invalid status"
		}
		p.Status = status
	}
	if r.BillingMethod != nil {
		p.BillingMethod = models.BillingMethod(*r.BillingMethod)
	}
	if r.BillingRate != nil {
		p.BillingRate = r.BillingRate
	}
	if r.BillingFormula != nil {
		formula := *r.BillingFormula
		p.BillingFormula = &formula
	}
	if r.MetricLabel != nil {
		label := strings.TrimSpace(*r.MetricLabel)
		if label == "" {
			p.MetricLabel = nil
		} else {
			p.MetricLabel = &label
		}
	}
	if r.MetricDivisor != nil {
		p.MetricDivisor = r.MetricDivisor
	}
	if r.MetricMultiplier != nil {
		p.MetricMultiplier = r.MetricMultiplier
	}

	cfg := billing.ProjectBillingFrom(p)
	cfg.FormulaMaxLength = formulaMaxLength
	normalized, errNorm := billing.NormalizeProjectBilling(cfg)
	if errNorm != nil {
		return errNorm.Error()
	}
	normalized.ApplyTo(p)
	return ""
}

// optionalDate parses a YYYY-MM-DD day; an empty value clears the date.
func optionalDate(value string) (*datatypes.Date, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, errParse := parseDate(value)
	if errParse != nil {
		return nil, errParse
	}
	d := datatypes.Date(parsed)
	return &d, nil
}

// Create creates a project.
func (h *ProjectHandler) Create(c *gin.Context) {
	var body projectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Name == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	project := models.Project{
		Status:        models.ProjectStatusActive,
		BillingMethod: models.BillingMethodHourly,
	}
	if msg := body.apply(&project, h.formulaMaxLength); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&project).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create project failed"})
		return
	}
	c.JSON(http.StatusCreated, formatProject(&project))
}

// List returns every project with its billing configuration.
func (h *ProjectHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Project{})
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if method := strings.TrimSpace(c.Query("billing_method")); method != "" {
		query = query.Where("billing_method = ?", billing.NormalizeMethod(method))
	}
	var rows []models.Project
	if errFind := query.Order("name ASC, id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list projects failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatProject(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

// Get returns a single project by ID.
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var project models.Project
	if errFind := h.db.WithContext(c.Request.Context()).First(&project, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatProject(&project))
}

// Update modifies a project. Billing fields irrelevant to the resulting method are cleared.
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body projectRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	var project models.Project
	if errFind := h.db.WithContext(ctx).First(&project, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if msg := body.apply(&project, h.formulaMaxLength); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	// Select("*") writes nil pointers too, so cleared billing fields reach the database.
	project.UpdatedAt = time.Now().UTC()
	if errSave := h.db.WithContext(ctx).Model(&project).Select("*").Omit("created_at").Updates(&project).Error; errSave != nil {
		log.WithError(errSave).WithField("project_id", project.ID).Error("update project failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, formatProject(&project))
}

// Delete removes a project that has no recorded work or billing.
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	for _, dep := range []struct {
		model any
		what  string
	}{
		{&models.WorkReport{}, "work reports"},
		{&models.ProjectJournal{}, "journal entries"},
		{&models.BillingRecord{}, "billing records"},
	} {
		var count int64
		if errCount := h.db.WithContext(ctx).Model(dep.model).Where("project_id = ?", id).Count(&count).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "project has " + dep.what})
			return
		}
	}

	var res *gorm.DB
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDelete := tx.Where("project_id = ?", id).Delete(&models.ProjectTrainingAssignment{}).Error; errDelete != nil {
			return errDelete
		}
		if errUpdate := tx.Model(&models.Attendance{}).Where("project_id = ?", id).Update("project_id", nil).Error; errUpdate != nil {
			return errUpdate
		}
		res = tx.Delete(&models.Project{}, id)
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

// checkFormulaRequest carries a formula and optional sample quantities.
type checkFormulaRequest struct {
	Formula    string             `json:"formula"`
	Quantities billing.Quantities `json:"quantities"`
	Rate       *float64           `json:"billing_rate"`
}

// CheckFormula validates a formula with the restricted parser and evaluates it on the sample.
// Invalid formulas answer 200 with valid=false so editors can show the reason inline.
func (h *ProjectHandler) CheckFormula(c *gin.Context) {
	var body checkFormulaRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	maxLen := h.formulaMaxLength
	if maxLen <= 0 {
		maxLen = billing.DefaultFormulaMaxLength
	}

	formula, errParse := billing.ParseFormulaLimit(body.Formula, maxLen)
	if errParse != nil {
		out := gin.H{"valid": false, "error": errParse.Error(), "variables": billing.FormulaVariables()}
		var formulaErr *billing.FormulaError
		if errors.As(errParse, &formulaErr) && formulaErr.Pos >= 0 {
			out["position"] = formulaErr.Pos
		}
		c.JSON(http.StatusOK, out)
		return
	}

	result := billing.Calculate(billing.ProjectBilling{
		Method:           models.BillingMethodCustomFormula,
		Rate:             body.Rate,
		Formula:          formula.String(),
		FormulaMaxLength: maxLen,
	}, body.Quantities)
	out := gin.H{
		"valid":      true,
		"formula":    formula.String(),
		"references": formula.Variables(),
		"variables":  billing.FormulaVariables(),
		"amount":     result.Amount,
		"basis":      result.Basis,
	}
	if result.Warning != nil {
		out["warning"] = result.Warning.Error()
	}
	c.JSON(http.StatusOK, out)
}

// formatProject converts a project into the admin payload.
func formatProject(p *models.Project) gin.H {
	return gin.H{
		"id":                p.ID,
		"name":              p.Name,
		"description":       p.Description,
		"start_date":        formatDatePtr(p.StartDate),
		"end_date":          formatDatePtr(p.EndDate),
		"status":            p.Status,
		"billing_method":    p.BillingMethod,
		"billing_rate":      p.BillingRate,
		"billing_formula":   p.BillingFormula,
		"metric_label":      p.MetricLabel,
		"metric_divisor":    p.MetricDivisor,
		"metric_multiplier": p.MetricMultiplier,
		"created_at":        p.CreatedAt,
		"updated_at":        p.UpdatedAt,
	}
}
