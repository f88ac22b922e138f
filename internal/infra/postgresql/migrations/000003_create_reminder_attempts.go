package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/ride-reminders/internal/repository"
	"gorm.io/gorm"
)

func createReminderAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_reminder_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ReminderAttemptModel{}); err != nil {
				return err
			}
			// Attempts go away with their reminder when it is replaced or purged.
			return tx.Exec(`
				DO $$
				BEGIN
					IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_reminder_attempts_reminder') THEN
						ALTER TABLE reminder_attempts
							ADD CONSTRAINT fk_reminder_attempts_reminder
							FOREIGN KEY (reminder_id) REFERENCES ride_reminders (id) ON DELETE CASCADE;
					END IF;
				END $$`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ReminderAttemptModel{})
		},
	}
}
