package domain

import "time"

// ReminderAttempt records a single delivery attempt for a reminder.
type ReminderAttempt struct {
	ID            string
	ReminderID    string
	AttemptNumber int
	StatusCode    *int
	Error         *string
	DurationMs    int64
	CreatedAt     time.Time
}
