package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid uppercase", input: "SENT", want: StatusSent},
		{name: "valid lowercase with spaces", input: " scheduled ", want: StatusScheduled},
		{name: "invalid", input: "queued", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelFromString(" sms ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error = %v", err)
	}
	if got != ChannelSMS {
		t.Fatalf("ParseChannelFromString() = %s, want %s", got, ChannelSMS)
	}

	_, err = ParseChannelFromString("fax")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString() error = %v, want ErrValidation", err)
	}
}

func TestKindTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    Kind
		lead    time.Duration
		subject string
		phrase  string
	}{
		{KindThirtyMinutesBefore, 30 * time.Minute, "Ride Reminder: Your ride starts in 30 minutes", "in 30 minutes"},
		{KindOneHourBefore, time.Hour, "Ride Reminder: Your ride starts in 1 hour", "in 1 hour"},
		{KindTwentyFourHoursBefore, 24 * time.Hour, "Ride Reminder: Your ride is tomorrow", "in 24 hours"},
		{KindOneHourBeforeFinal, time.Hour, "Final Reminder: Your ride starts in 1 hour", "in 1 hour"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()

			if !tt.kind.IsValid() {
				t.Fatalf("IsValid() = false for %s", tt.kind)
			}
			if got := tt.kind.LeadTime(); got != tt.lead {
				t.Fatalf("LeadTime() = %v, want %v", got, tt.lead)
			}
			if got := tt.kind.Subject(); got != tt.subject {
				t.Fatalf("Subject() = %q, want %q", got, tt.subject)
			}
			if got := tt.kind.TimePhrase(); got != tt.phrase {
				t.Fatalf("TimePhrase() = %q, want %q", got, tt.phrase)
			}
		})
	}
}

func TestParseKindFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseKindFromString(" one_hour_before_final ")
	if err != nil {
		t.Fatalf("ParseKindFromString() unexpected error = %v", err)
	}
	if got != KindOneHourBeforeFinal {
		t.Fatalf("ParseKindFromString() = %s, want %s", got, KindOneHourBeforeFinal)
	}

	_, err = ParseKindFromString("TWO_HOURS_BEFORE")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseKindFromString() error = %v, want ErrValidation", err)
	}
}

func TestReminderCanRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    Status
		attempts  int
		wantRetry bool
		wantExh   bool
	}{
		{name: "failed with attempts left", status: StatusFailed, attempts: 1, wantRetry: true},
		{name: "failed at limit", status: StatusFailed, attempts: 3, wantExh: true},
		{name: "failed over limit", status: StatusFailed, attempts: 4, wantExh: true},
		{name: "scheduled", status: StatusScheduled, attempts: 0},
		{name: "sent", status: StatusSent, attempts: 0},
		{name: "cancelled", status: StatusCancelled, attempts: 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := Reminder{Status: tt.status, AttemptCount: tt.attempts, AttemptLimit: DefaultAttemptLimit}
			if got := r.CanRetry(); got != tt.wantRetry {
				t.Fatalf("CanRetry() = %v, want %v", got, tt.wantRetry)
			}
			if got := r.IsExhausted(); got != tt.wantExh {
				t.Fatalf("IsExhausted() = %v, want %v", got, tt.wantExh)
			}
		})
	}
}

func TestReminderIsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	r := Reminder{Status: StatusScheduled, ScheduledAt: now}
	if !r.IsDue(now) {
		t.Fatal("IsDue() = false at the scheduled instant")
	}
	if r.IsDue(now.Add(-time.Second)) {
		t.Fatal("IsDue() = true before the scheduled instant")
	}

	r.Status = StatusFailed
	if r.IsDue(now) {
		t.Fatal("IsDue() = true for a failed reminder")
	}
}

func TestReminderValidate(t *testing.T) {
	t.Parallel()

	base := Reminder{
		BookingID:    "booking-1",
		Kind:         KindOneHourBefore,
		ScheduledAt:  time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC),
		Status:       StatusScheduled,
		Channel:      ChannelEmail,
		Recipient:    "jane@example.com",
		Message:      "Your ride from A to B is scheduled in 1 hour. Please be ready!",
		AttemptLimit: DefaultAttemptLimit,
	}

	tests := []struct {
		name    string
		mutate  func(*Reminder)
		wantErr bool
	}{
		{
			name:   "valid reminder",
			mutate: func(r *Reminder) {},
		},
		{
			name: "missing booking",
			mutate: func(r *Reminder) {
				r.BookingID = " "
			},
			wantErr: true,
		},
		{
			name: "invalid kind",
			mutate: func(r *Reminder) {
				r.Kind = Kind("TWO_HOURS_BEFORE")
			},
			wantErr: true,
		},
		{
			name: "invalid channel",
			mutate: func(r *Reminder) {
				r.Channel = Channel("PUSH")
			},
			wantErr: true,
		},
		{
			name: "missing recipient",
			mutate: func(r *Reminder) {
				r.Recipient = ""
			},
			wantErr: true,
		},
		{
			name: "message over limit",
			mutate: func(r *Reminder) {
				r.Message = strings.Repeat("a", MaxReminderMessage+1)
			},
			wantErr: true,
		},
		{
			name: "rune-aware message length accepted",
			mutate: func(r *Reminder) {
				r.Message = strings.Repeat("ğ", MaxReminderMessage)
			},
		},
		{
			name: "zero scheduled time",
			mutate: func(r *Reminder) {
				r.ScheduledAt = time.Time{}
			},
			wantErr: true,
		},
		{
			name: "zero attempt limit",
			mutate: func(r *Reminder) {
				r.AttemptLimit = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestTruncateErrorDetail(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", MaxErrorDetail+50)
	if got := TruncateErrorDetail(long); len([]rune(got)) != MaxErrorDetail {
		t.Fatalf("TruncateErrorDetail() length = %d, want %d", len([]rune(got)), MaxErrorDetail)
	}
	if got := TruncateErrorDetail("  smtp timeout "); got != "smtp timeout" {
		t.Fatalf("TruncateErrorDetail() = %q, want %q", got, "smtp timeout")
	}
}

func TestBookingHelpers(t *testing.T) {
	t.Parallel()

	ride := Ride{VehicleNumber: "34 ABC 123", VehicleType: "SEDAN"}
	if got := ride.VehicleInfo(); got != "34 ABC 123 (SEDAN)" {
		t.Fatalf("VehicleInfo() = %q", got)
	}

	u := User{FirstName: "Jane", LastName: "Doe"}
	if got := u.FullName(); got != "Jane Doe" {
		t.Fatalf("FullName() = %q", got)
	}
}
