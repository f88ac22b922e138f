package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/kursadbilgin/ride-reminders/internal/queue"
	"go.uber.org/zap"
)

type bookingScheduler interface {
	ScheduleForBooking(ctx context.Context, booking *domain.Booking) ([]domain.Reminder, error)
	CancelForBooking(ctx context.Context, bookingID string) (int64, error)
}

type bookingLoader interface {
	GetBookingDetails(ctx context.Context, bookingID string) (*domain.Booking, error)
}

// BookingEventHandler reacts to booking lifecycle events: confirmed bookings
// get reminders, cancelled bookings lose their pending ones.
type BookingEventHandler struct {
	scheduler bookingScheduler
	bookings  bookingLoader
	logger    *zap.Logger
}

func NewBookingEventHandler(scheduler bookingScheduler, bookings bookingLoader, logger *zap.Logger) (*BookingEventHandler, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if bookings == nil {
		return nil, fmt.Errorf("booking reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingEventHandler{scheduler: scheduler, bookings: bookings, logger: logger}, nil
}

// Handle processes one event. Errors it returns are redelivered, so events
// for bookings that no longer exist are logged and dropped.
func (h *BookingEventHandler) Handle(ctx context.Context, msg queue.BookingEventMessage) error {
	logger := observability.WithContextLogger(h.logger, ctx).With(
		zap.String("bookingId", msg.BookingID),
		zap.String("bookingStatus", msg.Status.String()),
	)

	switch msg.Status {
	case domain.BookingStatusConfirmed:
		booking, err := h.bookings.GetBookingDetails(ctx, msg.BookingID)
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("booking from event not found, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load booking %s: %w", msg.BookingID, err)
		}

		// Payment can land before the confirmation event is consumed.
		if booking.Status == domain.BookingStatusPaid {
			confirmed := *booking
			confirmed.Status = domain.BookingStatusConfirmed
			booking = &confirmed
		}
		if booking.Status != domain.BookingStatusConfirmed {
			logger.Info("booking no longer confirmed, skipping",
				zap.String("currentStatus", booking.Status.String()),
			)
			return nil
		}

		if _, err := h.scheduler.ScheduleForBooking(ctx, booking); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				logger.Warn("booking cannot be scheduled", zap.Error(err))
				return err
			}
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
		return nil

	case domain.BookingStatusCancelled:
		if _, err := h.scheduler.CancelForBooking(ctx, msg.BookingID); err != nil {
			return fmt.Errorf("failed to cancel reminders: %w", err)
		}
		return nil

	default:
		logger.Debug("booking event ignored")
		return nil
	}
}
