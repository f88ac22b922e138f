package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/ride-reminders/internal/domain"
)

// BookingEventMessage is published by the booking service whenever a
// booking changes status.
type BookingEventMessage struct {
	EventID    string               `json:"eventId,omitempty"`
	BookingID  string               `json:"bookingId"`
	Status     domain.BookingStatus `json:"status"`
	OccurredAt time.Time            `json:"occurredAt"`
}

func (m BookingEventMessage) Validate() error {
	if strings.TrimSpace(m.BookingID) == "" {
		return fmt.Errorf("%w: bookingId is required", domain.ErrValidation)
	}
	if _, err := uuid.Parse(m.BookingID); err != nil {
		return fmt.Errorf("%w: bookingId %q is not a UUID", domain.ErrValidation, m.BookingID)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("%w: invalid booking status %q", domain.ErrValidation, m.Status)
	}
	return nil
}

// ReminderEventMessage reports that a reminder reached a final outcome:
// delivered, or failed with no attempts left.
type ReminderEventMessage struct {
	EventID      string         `json:"eventId"`
	ReminderID   string         `json:"reminderId"`
	BookingID    string         `json:"bookingId"`
	Kind         domain.Kind    `json:"kind"`
	Channel      domain.Channel `json:"channel"`
	Status       domain.Status  `json:"status"`
	AttemptCount int            `json:"attemptCount"`
	Error        string         `json:"error,omitempty"`
	OccurredAt   time.Time      `json:"occurredAt"`
}

func (m ReminderEventMessage) Validate() error {
	if strings.TrimSpace(m.ReminderID) == "" {
		return fmt.Errorf("reminderId is required")
	}
	if strings.TrimSpace(m.BookingID) == "" {
		return fmt.Errorf("bookingId is required")
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid reminder kind %q", m.Kind)
	}
	if m.Status != domain.StatusSent && m.Status != domain.StatusFailed {
		return fmt.Errorf("status must be SENT or FAILED, got %q", m.Status)
	}
	return nil
}
