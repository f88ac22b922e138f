package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/kursadbilgin/ride-reminders/internal/repository"
	"go.uber.org/zap"
)

// ReminderScheduler turns confirmed bookings into reminder records and
// cancels them when the booking goes away.
type ReminderScheduler struct {
	reminders    repository.ReminderRepository
	bookings     repository.BookingReader
	channel      domain.Channel
	attemptLimit int
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	newID        func() string
}

func NewReminderScheduler(
	reminders repository.ReminderRepository,
	bookings repository.BookingReader,
	channel domain.Channel,
	attemptLimit int,
	logger *zap.Logger,
) (*ReminderScheduler, error) {
	if reminders == nil {
		return nil, fmt.Errorf("reminder repository is required")
	}
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}
	if attemptLimit < 1 {
		attemptLimit = domain.DefaultAttemptLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderScheduler{
		reminders:    reminders,
		bookings:     bookings,
		channel:      channel,
		attemptLimit: attemptLimit,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

func (s *ReminderScheduler) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// ScheduleForBooking replaces the booking's reminders with a freshly planned
// set. Bookings that are not CONFIRMED are left alone. Calling it again for
// the same booking never duplicates a kind.
func (s *ReminderScheduler) ScheduleForBooking(ctx context.Context, booking *domain.Booking) ([]domain.Reminder, error) {
	if booking == nil || strings.TrimSpace(booking.ID) == "" {
		return nil, fmt.Errorf("%w: booking is required", domain.ErrValidation)
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(zap.String("bookingId", booking.ID))

	if booking.Status != domain.BookingStatusConfirmed {
		logger.Debug("booking not confirmed, no reminders scheduled",
			zap.String("bookingStatus", booking.Status.String()),
		)
		return nil, nil
	}

	now := s.now().UTC()
	planned := domain.PlanReminders(booking.BookingDate, booking.Ride.DepartureDate, now)

	recipient := recipientFor(s.channel, booking.Passenger)
	if len(planned) > 0 && recipient == "" {
		return nil, fmt.Errorf("%w: passenger %s has no contact for channel %s",
			domain.ErrValidation, booking.Passenger.ID, s.channel)
	}

	records := make([]*domain.Reminder, 0, len(planned))
	for _, p := range planned {
		r := &domain.Reminder{
			ID:           s.newID(),
			BookingID:    booking.ID,
			Kind:         p.Kind,
			ScheduledAt:  p.ScheduledAt,
			Status:       domain.StatusScheduled,
			Channel:      s.channel,
			Recipient:    recipient,
			Message:      reminderMessage(p.Kind, booking.Ride),
			AttemptLimit: s.attemptLimit,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("reminder %s for booking %s: %w", p.Kind, booking.ID, err)
		}
		records = append(records, r)
	}

	if err := s.reminders.ReplaceForBooking(ctx, booking.ID, records); err != nil {
		return nil, fmt.Errorf("failed to store reminders for booking %s: %w", booking.ID, err)
	}

	scheduled := make([]domain.Reminder, 0, len(records))
	for _, r := range records {
		scheduled = append(scheduled, *r)
		s.metrics.IncScheduled(r.Kind.String())
	}

	logger.Info("reminders scheduled",
		zap.Int("count", len(scheduled)),
		zap.Time("departure", booking.Ride.DepartureDate),
	)

	return scheduled, nil
}

// ScheduleForBookingID loads the booking and schedules its reminders.
func (s *ReminderScheduler) ScheduleForBookingID(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.ScheduleForBooking(ctx, booking)
}

// CancelForBooking cancels every still-scheduled reminder of the booking.
// Sent and failed reminders keep their history. Zero matches is not an error.
func (s *ReminderScheduler) CancelForBooking(ctx context.Context, bookingID string) (int64, error) {
	if strings.TrimSpace(bookingID) == "" {
		return 0, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}

	cancelled, err := s.reminders.CancelScheduledForBooking(ctx, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel reminders for booking %s: %w", bookingID, err)
	}

	s.metrics.AddCancelled(cancelled)
	observability.WithContextLogger(s.logger, ctx).Info("reminders cancelled",
		zap.String("bookingId", bookingID),
		zap.Int64("count", cancelled),
	)

	return cancelled, nil
}

func (s *ReminderScheduler) loadBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	if s.bookings == nil {
		return nil, fmt.Errorf("booking reader is not configured")
	}

	booking, err := s.bookings.GetBookingDetails(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}
	return booking, nil
}

// recipientFor snapshots the passenger contact the channel delivers to.
func recipientFor(channel domain.Channel, passenger domain.User) string {
	if channel == domain.ChannelSMS {
		return strings.TrimSpace(passenger.PhoneNumber)
	}
	return strings.TrimSpace(passenger.Email)
}
