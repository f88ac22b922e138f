package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a ride reminder.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
// FAILED is terminal only once the attempt limit is reached, see Reminder.CanRetry.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusCancelled
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// AllStatuses lists every reminder status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusScheduled, StatusSent, StatusFailed, StatusCancelled}
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelEmail   Channel = "EMAIL"
	ChannelSMS     Channel = "SMS"
	ChannelWebhook Channel = "WEBHOOK"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWebhook:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Content limits.
const (
	MaxReminderMessage   = 500
	MaxReminderRecipient = 255
	MaxErrorDetail       = 1000
)

// DefaultAttemptLimit is the number of delivery attempts a reminder gets before
// it stays FAILED for manual handling.
const DefaultAttemptLimit = 3

// Reminder is a scheduled or historical ride reminder notification.
type Reminder struct {
	ID           string
	BookingID    string
	Kind         Kind
	ScheduledAt  time.Time
	Status       Status
	Channel      Channel
	Recipient    string
	Message      string
	SentAt       *time.Time
	ErrorDetail  *string
	AttemptCount int
	AttemptLimit int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanRetry reports whether the dispatcher may attempt delivery again.
func (r *Reminder) CanRetry() bool {
	return r.Status == StatusFailed && r.AttemptCount < r.AttemptLimit
}

// IsExhausted reports a FAILED reminder that used all of its attempts.
func (r *Reminder) IsExhausted() bool {
	return r.Status == StatusFailed && r.AttemptCount >= r.AttemptLimit
}

// IsDue reports whether a SCHEDULED reminder should fire at now.
func (r *Reminder) IsDue(now time.Time) bool {
	return r.Status == StatusScheduled && !r.ScheduledAt.After(now)
}

func (r *Reminder) Validate() error {
	if strings.TrimSpace(r.BookingID) == "" {
		return fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("%w: invalid reminder kind %q", ErrValidation, r.Kind)
	}
	if !r.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, r.Channel)
	}
	if strings.TrimSpace(r.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if n := len([]rune(r.Recipient)); n > MaxReminderRecipient {
		return fmt.Errorf("%w: recipient exceeds %d characters (got %d)", ErrValidation, MaxReminderRecipient, n)
	}
	if n := len([]rune(r.Message)); n > MaxReminderMessage {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxReminderMessage, n)
	}
	if r.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled time is required", ErrValidation)
	}
	if r.AttemptLimit < 1 {
		return fmt.Errorf("%w: attempt limit must be >= 1", ErrValidation)
	}
	return nil
}

// TruncateErrorDetail keeps failure reasons within the stored column size.
func TruncateErrorDetail(detail string) string {
	runes := []rune(strings.TrimSpace(detail))
	if len(runes) <= MaxErrorDetail {
		return string(runes)
	}
	return string(runes[:MaxErrorDetail])
}
