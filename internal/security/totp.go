package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

// totpIssuer names the service in authenticator apps.
const totpIssuer = "EMS"

// TOTPEnrollment is a freshly generated secret awaiting confirmation.
type TOTPEnrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRImage    string `json:"qr_image,omitempty"` // data: URL of a PNG QR code
}

// GenerateTOTP creates a new TOTP secret for account.
func GenerateTOTP(account string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	enrollment := &TOTPEnrollment{Secret: key.Secret(), OTPAuthURL: key.URL()}
	if img, errImage := key.Image(220, 220); errImage == nil {
		var buf bytes.Buffer
		if errEncode := png.Encode(&buf, img); errEncode == nil {
			enrollment.QRImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	return enrollment, nil
}

// ValidateTOTP reports whether code is currently valid for secret.
func ValidateTOTP(code, secret string) bool {
	code = strings.TrimSpace(code)
	secret = strings.TrimSpace(secret)
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}

// PendingSecrets keeps TOTP secrets between prepare and confirm, for a limited time.
type PendingSecrets struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[uint64]pendingSecret
	nowFn func() time.Time
}

type pendingSecret struct {
	secret  string
	expires time.Time
}

// NewPendingSecrets creates an empty store whose entries expire after ttl.
func NewPendingSecrets(ttl time.Duration) *PendingSecrets {
	return &PendingSecrets{ttl: ttl, items: make(map[uint64]pendingSecret), nowFn: time.Now}
}

// Set stores the pending secret of userID, replacing any earlier one.
func (s *PendingSecrets) Set(userID uint64, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = pendingSecret{secret: secret, expires: s.nowFn().Add(s.ttl)}
}

// Get returns the pending secret of userID if present and not expired.
func (s *PendingSecrets) Get(userID uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[userID]
	if !ok {
		return "", false
	}
	if s.nowFn().After(entry.expires) {
		delete(s.items, userID)
		return "", false
	}
	return entry.secret, true
}

// Delete removes the pending secret of userID.
func (s *PendingSecrets) Delete(userID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, userID)
}
