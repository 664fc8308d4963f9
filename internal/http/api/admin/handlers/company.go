package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CompanyHandler edits the single company row.
type CompanyHandler struct {
	db *gorm.DB
}

// NewCompanyHandler constructs a CompanyHandler.
func NewCompanyHandler(db *gorm.DB) *CompanyHandler {
	return &CompanyHandler{db: db}
}

// updateCompanyRequest defines the editable company fields.
type updateCompanyRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Email   *string `json:"email"`
}

// Update creates the company row on first use and edits it afterwards.
func (h *CompanyHandler) Update(c *gin.Context) {
	var body updateCompanyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	var company models.Company
	errFind := h.db.WithContext(ctx).Order("id ASC").First(&company).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if len(name) > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name too long"})
			return
		}
		company.Name = name
	}
	if body.Address != nil {
		address := strings.TrimSpace(*body.Address)
		if len(address) > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address too long"})
			return
		}
		company.Address = address
	}
	if body.Email != nil {
		email := strings.TrimSpace(*body.Email)
		if email != "" {
			if _, errAddr := mail.ParseAddress(email); errAddr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
				return
			}
		}
		company.Email = email
	}
	company.UpdatedAt = time.Now().UTC()

	if errSave := h.db.WithContext(ctx).Save(&company).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         company.ID,
		"name":       company.Name,
		"address":    company.Address,
		"email":      company.Email,
		"updated_at": company.UpdatedAt,
	})
}
