package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
	internalsettings "github.com/ems-hq/attendance/internal/settings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CompanyHandler exposes company information to signed-in users.
type CompanyHandler struct {
	db *gorm.DB
}

// NewCompanyHandler constructs a CompanyHandler.
func NewCompanyHandler(db *gorm.DB) *CompanyHandler {
	return &CompanyHandler{db: db}
}

// Get returns the company row. The name falls back to the COMPANY_NAME setting.
func (h *CompanyHandler) Get(c *gin.Context) {
	var company models.Company
	errFind := h.db.WithContext(c.Request.Context()).Order("id ASC").First(&company).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	name := strings.TrimSpace(company.Name)
	if name == "" {
		name = internalsettings.DBConfigString(internalsettings.CompanyNameKey, internalsettings.DefaultCompanyName)
	}
	c.JSON(http.StatusOK, gin.H{
		"name":    name,
		"address": company.Address,
		"email":   company.Email,
	})
}
