package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"github.com/ems-hq/attendance/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// totpSetupTTL bounds how long a prepared secret waits for confirmation.
const totpSetupTTL = 10 * time.Minute

// MFAHandler manages TOTP enrollment for the signed-in user. Prepared secrets live in memory
// until confirmed, so a restart between prepare and confirm requires preparing again.
type MFAHandler struct {
	db      *gorm.DB
	pending *security.PendingSecrets
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db, pending: security.NewPendingSecrets(totpSetupTTL)}
}

// Status reports whether TOTP is enabled.
func (h *MFAHandler) Status(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": strings.TrimSpace(user.TOTPSecret) != ""})
}

// PrepareTOTP generates a secret and its QR code. Nothing is stored until ConfirmTOTP.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	enrollment, errGenerate := security.GenerateTOTP(user.Username)
	if errGenerate != nil {
		log.WithError(errGenerate).WithField("user_id", user.ID).Error("mfa: generate totp secret failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}
	h.pending.Set(user.ID, enrollment.Secret)
	c.JSON(http.StatusOK, enrollment)
}

// totpCodeRequest carries a TOTP code.
type totpCodeRequest struct {
	Code string `json:"code"`
}

func bindTOTPCode(c *gin.Context) (string, bool) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return "", false
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return "", false
	}
	return code, true
}

// ConfirmTOTP stores the prepared secret once the user proves possession with a valid code.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	code, ok := bindTOTPCode(c)
	if !ok {
		return
	}
	secret, ok := h.pending.Get(userID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp setup expired"})
		return
	}
	if !security.ValidateTOTP(code, secret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}
	if errSave := h.saveSecret(c.Request.Context(), userID, secret); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.pending.Delete(userID)
	c.JSON(http.StatusOK, gin.H{"totp_enabled": true})
}

// DisableTOTP clears the secret. A current code is required while TOTP is enabled.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	h.pending.Delete(user.ID)
	if strings.TrimSpace(user.TOTPSecret) == "" {
		c.JSON(http.StatusOK, gin.H{"totp_enabled": false})
		return
	}
	code, ok := bindTOTPCode(c)
	if !ok {
		return
	}
	if !security.ValidateTOTP(code, user.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}
	if errSave := h.saveSecret(c.Request.Context(), user.ID, ""); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": false})
}

func (h *MFAHandler) loadUser(c *gin.Context) (*models.User, bool) {
	return currentUser(c, h.db, func(q *gorm.DB) *gorm.DB {
		return q.Select("id", "username", "totp_secret")
	})
}

func (h *MFAHandler) saveSecret(ctx context.Context, userID uint64, secret string) error {
	return h.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"totp_secret": secret, "updated_at": time.Now().UTC()}).Error
}
