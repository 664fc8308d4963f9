package db

import (
	"fmt"

	"github.com/ems-hq/attendance/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the application uses.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Employee{},
		&models.Company{},
		&models.Project{},
		&models.Attendance{},
		&models.LeaveRequest{},
		&models.WorkReport{},
		&models.ProjectJournal{},
		&models.TrainingModule{},
		&models.TrainingAssignment{},
		&models.ProjectTrainingAssignment{},
		&models.InternalMessage{},
		&models.CompanyEvent{},
		&models.BillingRecord{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return migrateLegacyBillingMethods(conn)
}

// migrateLegacyBillingMethods rewrites projects stored with the old "count_based" method into
// record_count projects priced through the divisor/multiplier pair.
func migrateLegacyBillingMethods(conn *gorm.DB) error {
	errUpdate := conn.Model(&models.Project{}).
		Where("billing_method = ?", "count_based").
		Update("billing_method", models.BillingMethodRecordCount).Error
	if errUpdate != nil {
		return fmt.Errorf("db: migrate legacy billing methods: %w", errUpdate)
	}
	return nil
}
