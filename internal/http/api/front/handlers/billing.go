package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BillingHandler shows employees their own billing records.
type BillingHandler struct {
	db *gorm.DB
}

// NewBillingHandler constructs a BillingHandler.
func NewBillingHandler(db *gorm.DB) *BillingHandler {
	return &BillingHandler{db: db}
}

// listBillingQuery filters the own billing records.
type listBillingQuery struct {
	listQuery
	Status string `form:"status"`
}

// Mine returns the current employee's billing records, newest period first.
func (h *BillingHandler) Mine(c *gin.Context) {
	employee, ok := currentEmployee(c, h.db)
	if !ok {
		return
	}
	var q listBillingQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	q.normalize()

	query := h.db.WithContext(c.Request.Context()).Model(&models.BillingRecord{}).Where("employee_id = ?", employee.ID)
	if status := strings.TrimSpace(q.Status); status != "" {
		if !models.BillingStatus(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var rows []models.BillingRecord
	if errFind := query.Order("period_start DESC, id DESC").Offset(q.offset()).Limit(q.Limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	sum := 0.0
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		sum += rows[i].TotalAmount
		out = append(out, gin.H{
			"id":           rows[i].ID,
			"project_id":   rows[i].ProjectID,
			"period_start": formatDate(rows[i].PeriodStart),
			"period_end":   formatDate(rows[i].PeriodEnd),
			"total_amount": rows[i].TotalAmount,
			"currency":     rows[i].Currency,
			"status":       rows[i].Status,
			"notes":        rows[i].Notes,
			"details":      json.RawMessage(nonEmptyJSON(rows[i].Details)),
			"finalized_at": rows[i].FinalizedAt,
			"paid_at":      rows[i].PaidAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"records": out, "page_total": sum, "total": total, "page": q.Page, "limit": q.Limit})
}

// nonEmptyJSON substitutes null for an empty JSON column so the payload stays valid.
func nonEmptyJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
