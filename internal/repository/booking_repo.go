package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"gorm.io/gorm"
)

// BookingReader exposes the booking, ride, driver and passenger data the
// reminder engine needs. It never writes.
type BookingReader interface {
	GetBookingDetails(ctx context.Context, bookingID string) (*domain.Booking, error)
}

type GormBookingReader struct {
	db *gorm.DB
}

func NewGormBookingReader(db *gorm.DB) *GormBookingReader {
	return &GormBookingReader{db: db}
}

func (r *GormBookingReader) GetBookingDetails(ctx context.Context, bookingID string) (*domain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).
		Preload("Ride.Driver").
		Preload("Passenger").
		First(&model, "id = ?", bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bookingModelToDomain(&model), nil
}
