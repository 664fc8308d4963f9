package security

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used until SetPasswordCost changes it.
const DefaultPasswordCost = 12

// MinPasswordLength is the shortest password accepted for any account.
const MinPasswordLength = 8

// ErrPasswordTooShort is returned by ValidatePassword for passwords under MinPasswordLength.
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// ErrInvalidPasswordCost is returned by SetPasswordCost for a cost bcrypt does not support.
var ErrInvalidPasswordCost = errors.New("invalid bcrypt cost")

var passwordCost atomic.Int32

func init() {
	passwordCost.Store(DefaultPasswordCost)
}

// SetPasswordCost changes the bcrypt cost for new hashes. Zero restores the default. Existing
// hashes keep their own cost and still verify.
func SetPasswordCost(cost int) error {
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d (want %d-%d)", ErrInvalidPasswordCost, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	passwordCost.Store(int32(cost))
	return nil
}

// PasswordCost returns the bcrypt cost used for new hashes.
func PasswordCost() int {
	return int(passwordCost.Load())
}

// ValidatePassword checks a new password against the account rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword hashes a plaintext password with the configured bcrypt cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost())
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password. An empty hash never matches.
func CheckPassword(hash, password string) bool {
	if strings.TrimSpace(hash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash was produced with a cost other than the configured one.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false
	}
	return cost != PasswordCost()
}
