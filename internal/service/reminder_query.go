package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
	"github.com/kursadbilgin/ride-reminders/internal/observability"
	"github.com/kursadbilgin/ride-reminders/internal/repository"
)

// Statistics is a point-in-time count of reminders per status. Exhausted is
// the subset of Failed with no attempts left.
type Statistics struct {
	Scheduled int64 `json:"scheduled"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
	Exhausted int64 `json:"exhausted"`
	Total     int64 `json:"total"`
}

type ReminderQueryService struct {
	reminders repository.ReminderRepository
	attempts  repository.AttemptRepository
	metrics   *observability.Metrics
}

func NewReminderQueryService(reminders repository.ReminderRepository) (*ReminderQueryService, error) {
	if reminders == nil {
		return nil, fmt.Errorf("reminder repository is required")
	}
	return &ReminderQueryService{reminders: reminders}, nil
}

func (s *ReminderQueryService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetAttemptLog enables the per-reminder delivery history.
func (s *ReminderQueryService) SetAttemptLog(attempts repository.AttemptRepository) {
	s.attempts = attempts
}

func (s *ReminderQueryService) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: reminder id is required", domain.ErrValidation)
	}
	return s.reminders.GetByID(ctx, id)
}

// Attempts returns the delivery history of a reminder, oldest first.
func (s *ReminderQueryService) Attempts(ctx context.Context, reminderID string) ([]domain.ReminderAttempt, error) {
	if _, err := s.GetByID(ctx, reminderID); err != nil {
		return nil, err
	}
	if s.attempts == nil {
		return []domain.ReminderAttempt{}, nil
	}
	return s.attempts.GetByReminderID(ctx, reminderID)
}

// ListByBooking returns the booking's reminders ordered by fire time.
func (s *ReminderQueryService) ListByBooking(ctx context.Context, bookingID string) ([]domain.Reminder, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	return s.reminders.ListByBooking(ctx, bookingID)
}

// ListByRecipient returns reminders addressed to recipient ordered by fire time.
func (s *ReminderQueryService) ListByRecipient(ctx context.Context, recipient string) ([]domain.Reminder, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}
	return s.reminders.ListByRecipient(ctx, recipient)
}

func (s *ReminderQueryService) ListByPassenger(ctx context.Context, passengerID string) ([]domain.Reminder, error) {
	if strings.TrimSpace(passengerID) == "" {
		return nil, fmt.Errorf("%w: passenger id is required", domain.ErrValidation)
	}
	return s.reminders.ListByPassenger(ctx, passengerID)
}

// Statistics counts reminders per status and refreshes the status gauges.
func (s *ReminderQueryService) Statistics(ctx context.Context) (Statistics, error) {
	counts, err := s.reminders.CountByStatus(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to count reminders: %w", err)
	}
	exhausted, err := s.reminders.CountExhausted(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to count exhausted reminders: %w", err)
	}

	var stats Statistics
	for _, c := range counts {
		switch c.Status {
		case domain.StatusScheduled:
			stats.Scheduled = c.Count
		case domain.StatusSent:
			stats.Sent = c.Count
		case domain.StatusFailed:
			stats.Failed = c.Count
		case domain.StatusCancelled:
			stats.Cancelled = c.Count
		}
	}
	stats.Exhausted = exhausted
	stats.Total = stats.Scheduled + stats.Sent + stats.Failed + stats.Cancelled

	s.metrics.SetStatusCount(domain.StatusScheduled.String(), stats.Scheduled)
	s.metrics.SetStatusCount(domain.StatusSent.String(), stats.Sent)
	s.metrics.SetStatusCount(domain.StatusFailed.String(), stats.Failed)
	s.metrics.SetStatusCount(domain.StatusCancelled.String(), stats.Cancelled)

	return stats, nil
}
