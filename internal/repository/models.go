package repository

import (
	"time"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
)

// ReminderModel is the persistence model for the ride_reminders table.
type ReminderModel struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	BookingID    string         `gorm:"type:uuid;not null;uniqueIndex:ux_ride_reminders_booking_kind"`
	Kind         domain.Kind    `gorm:"type:varchar(32);not null;uniqueIndex:ux_ride_reminders_booking_kind"`
	ScheduledAt  time.Time      `gorm:"type:timestamptz;not null"`
	Status       domain.Status  `gorm:"type:varchar(20);not null"`
	Channel      domain.Channel `gorm:"type:varchar(10);not null"`
	Recipient    string         `gorm:"type:varchar(255);not null"`
	Message      string         `gorm:"type:varchar(500);not null"`
	SentAt       *time.Time     `gorm:"type:timestamptz"`
	ErrorDetail  *string        `gorm:"type:varchar(1000)"`
	AttemptCount int            `gorm:"not null;default:0"`
	AttemptLimit int            `gorm:"not null;default:3"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ReminderModel) TableName() string {
	return "ride_reminders"
}

// ReminderAttemptModel is the persistence model for reminder_attempts.
type ReminderAttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	ReminderID    string  `gorm:"type:uuid;not null;index"`
	AttemptNumber int     `gorm:"not null"`
	StatusCode    *int    `gorm:"type:int"`
	Error         *string `gorm:"type:text"`
	DurationMs    int64   `gorm:"not null;default:0"`
	CreatedAt     time.Time
}

func (ReminderAttemptModel) TableName() string {
	return "reminder_attempts"
}

// UserModel, RideModel and BookingModel mirror the booking service tables the
// reminder engine reads from.
type UserModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	FirstName   string `gorm:"type:varchar(100);not null"`
	LastName    string `gorm:"type:varchar(100);not null"`
	Email       string `gorm:"type:varchar(255);not null"`
	PhoneNumber string `gorm:"type:varchar(32)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UserModel) TableName() string {
	return "users"
}

type RideModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	DriverID      string    `gorm:"type:uuid;not null;index"`
	Source        string    `gorm:"type:varchar(255);not null"`
	Destination   string    `gorm:"type:varchar(255);not null"`
	DepartureDate time.Time `gorm:"type:timestamptz;not null"`
	VehicleNumber string    `gorm:"type:varchar(32)"`
	VehicleType   string    `gorm:"type:varchar(32)"`
	VehicleModel  string    `gorm:"type:varchar(64)"`
	Driver        UserModel `gorm:"foreignKey:DriverID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (RideModel) TableName() string {
	return "rides"
}

type BookingModel struct {
	ID          string               `gorm:"type:uuid;primaryKey"`
	RideID      string               `gorm:"type:uuid;not null;index"`
	PassengerID string               `gorm:"type:uuid;not null;index"`
	Status      domain.BookingStatus `gorm:"type:varchar(20);not null"`
	SeatsBooked int                  `gorm:"not null;default:1"`
	BookingDate time.Time            `gorm:"type:timestamptz;not null"`
	Ride        RideModel            `gorm:"foreignKey:RideID"`
	Passenger   UserModel            `gorm:"foreignKey:PassengerID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (BookingModel) TableName() string {
	return "bookings"
}

func reminderModelFromDomain(r *domain.Reminder) *ReminderModel {
	if r == nil {
		return nil
	}

	return &ReminderModel{
		ID:           r.ID,
		BookingID:    r.BookingID,
		Kind:         r.Kind,
		ScheduledAt:  r.ScheduledAt,
		Status:       r.Status,
		Channel:      r.Channel,
		Recipient:    r.Recipient,
		Message:      r.Message,
		SentAt:       r.SentAt,
		ErrorDetail:  r.ErrorDetail,
		AttemptCount: r.AttemptCount,
		AttemptLimit: r.AttemptLimit,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func reminderModelToDomain(m *ReminderModel) *domain.Reminder {
	if m == nil {
		return nil
	}

	return &domain.Reminder{
		ID:           m.ID,
		BookingID:    m.BookingID,
		Kind:         m.Kind,
		ScheduledAt:  m.ScheduledAt,
		Status:       m.Status,
		Channel:      m.Channel,
		Recipient:    m.Recipient,
		Message:      m.Message,
		SentAt:       m.SentAt,
		ErrorDetail:  m.ErrorDetail,
		AttemptCount: m.AttemptCount,
		AttemptLimit: m.AttemptLimit,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func remindersToDomain(models []ReminderModel) []domain.Reminder {
	reminders := make([]domain.Reminder, 0, len(models))
	for i := range models {
		reminders = append(reminders, *reminderModelToDomain(&models[i]))
	}
	return reminders
}

func attemptModelFromDomain(a *domain.ReminderAttempt) *ReminderAttemptModel {
	if a == nil {
		return nil
	}

	return &ReminderAttemptModel{
		ID:            a.ID,
		ReminderID:    a.ReminderID,
		AttemptNumber: a.AttemptNumber,
		StatusCode:    a.StatusCode,
		Error:         a.Error,
		DurationMs:    a.DurationMs,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *ReminderAttemptModel) *domain.ReminderAttempt {
	if m == nil {
		return nil
	}

	return &domain.ReminderAttempt{
		ID:            m.ID,
		ReminderID:    m.ReminderID,
		AttemptNumber: m.AttemptNumber,
		StatusCode:    m.StatusCode,
		Error:         m.Error,
		DurationMs:    m.DurationMs,
		CreatedAt:     m.CreatedAt,
	}
}

func userModelToDomain(m *UserModel) domain.User {
	return domain.User{
		ID:          m.ID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		PhoneNumber: m.PhoneNumber,
	}
}

func bookingModelToDomain(m *BookingModel) *domain.Booking {
	if m == nil {
		return nil
	}

	return &domain.Booking{
		ID:          m.ID,
		Status:      m.Status,
		SeatsBooked: m.SeatsBooked,
		BookingDate: m.BookingDate,
		Ride: domain.Ride{
			ID:            m.Ride.ID,
			Source:        m.Ride.Source,
			Destination:   m.Ride.Destination,
			DepartureDate: m.Ride.DepartureDate,
			VehicleNumber: m.Ride.VehicleNumber,
			VehicleType:   m.Ride.VehicleType,
			VehicleModel:  m.Ride.VehicleModel,
			Driver:        userModelToDomain(&m.Ride.Driver),
		},
		Passenger: userModelToDomain(&m.Passenger),
	}
}
