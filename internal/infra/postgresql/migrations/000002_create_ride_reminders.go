package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/ride-reminders/internal/repository"
	"gorm.io/gorm"
)

func createRideRemindersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_ride_reminders",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ReminderModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_ride_reminders_due ON ride_reminders (scheduled_at) WHERE status = 'SCHEDULED'`,
				`CREATE INDEX IF NOT EXISTS idx_ride_reminders_retry ON ride_reminders (updated_at) WHERE status = 'FAILED'`,
				`CREATE INDEX IF NOT EXISTS idx_ride_reminders_recipient ON ride_reminders (recipient)`,
				`CREATE INDEX IF NOT EXISTS idx_ride_reminders_status ON ride_reminders (status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ReminderModel{})
		},
	}
}
