package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ems-hq/attendance/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Setting validation errors.
var (
	// ErrUnknownKey is returned for keys the service does not read.
	ErrUnknownKey = errors.New("settings: unknown key")
	// ErrInvalidValue is returned when a value does not match the key's type.
	ErrInvalidValue = errors.New("settings: invalid value")
)

// RefreshDBConfigSnapshot replaces the in-memory snapshot with the rows currently stored. Call it
// at startup and after every write; readers only ever see the snapshot.
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&rows).Error
	if errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	var latest time.Time
	for _, row := range rows {
		if key := strings.TrimSpace(row.Key); key != "" {
			values[key] = json.RawMessage(row.Value)
			if stamp := row.UpdatedAt.UTC(); stamp.After(latest) {
				latest = stamp
			}
		}
	}
	StoreDBConfig(latest, values)
	return nil
}

// ValidateValue checks that value is acceptable for key and returns its normalised JSON.
func ValidateValue(key string, value json.RawMessage) (json.RawMessage, error) {
	kind, ok := knownKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	switch kind {
	case kindNonNegativeInt:
		n, ok := parseInt(value)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidValue, key)
		}
		return json.Marshal(n)
	case kindCurrency:
		var s string
		if errUnmarshal := json.Unmarshal(value, &s); errUnmarshal != nil {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if len(s) != 3 {
			return nil, fmt.Errorf("%w: %s must be a three-letter currency code", ErrInvalidValue, key)
		}
		return json.Marshal(s)
	default:
		var s string
		if errUnmarshal := json.Unmarshal(value, &s); errUnmarshal != nil {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
		}
		return json.Marshal(strings.TrimSpace(s))
	}
}

// Upsert validates and stores one setting, then refreshes the snapshot.
func Upsert(ctx context.Context, db *gorm.DB, key string, value json.RawMessage, updatedBy uint64) (*models.Setting, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	normalized, errValidate := ValidateValue(key, value)
	if errValidate != nil {
		return nil, errValidate
	}

	row := models.Setting{
		Key:       key,
		Value:     datatypes.JSON(normalized),
		UpdatedAt: time.Now().UTC(),
	}
	if updatedBy != 0 {
		row.UpdatedBy = &updatedBy
	}
	if errSave := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&row).Error; errSave != nil {
		return nil, fmt.Errorf("settings: save %s: %w", key, errSave)
	}
	if errRefresh := RefreshDBConfigSnapshot(ctx, db); errRefresh != nil {
		return nil, errRefresh
	}
	return &row, nil
}

// Known returns every accepted key with its current value, falling back to defaults.
func Known() map[string]any {
	return map[string]any{
		CompanyNameKey:              DBConfigString(CompanyNameKey, DefaultCompanyName),
		BillingCurrencyKey:          DBConfigString(BillingCurrencyKey, ""),
		AttendanceAutoCloseHoursKey: DBConfigInt(AttendanceAutoCloseHoursKey, DefaultAttendanceAutoCloseHours),
	}
}
