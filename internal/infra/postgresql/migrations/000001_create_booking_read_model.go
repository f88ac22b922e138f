package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/ride-reminders/internal/repository"
	"gorm.io/gorm"
)

// The booking service owns these tables. They are created here only when
// missing so the reminder engine can run against an empty database.
func createBookingReadModelTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_booking_read_model",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&repository.UserModel{},
				&repository.RideModel{},
				&repository.BookingModel{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return nil
		},
	}
}
