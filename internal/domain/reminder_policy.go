package domain

import "time"

// Short-notice bookings may still get their reminder when evaluation lags
// slightly behind the booking itself.
const shortNoticeGrace = 5 * time.Minute

// PlannedReminder is one (kind, fire time) pair produced by PlanReminders.
type PlannedReminder struct {
	Kind        Kind
	ScheduledAt time.Time
}

// PlanReminders decides which reminders a booking gets.
//
// The branch is chosen from the advance notice the passenger gave
// (rideTime - bookingTime, truncated to whole hours), not from the time left
// until departure at evaluation time:
//
//	< 1h   -> THIRTY_MINUTES_BEFORE at ride-30m, kept if after now-5m
//	1..24h -> ONE_HOUR_BEFORE at ride-1h, kept if after now
//	> 24h  -> TWENTY_FOUR_HOURS_BEFORE at ride-24h and ONE_HOUR_BEFORE_FINAL
//	          at ride-1h, each kept if after now
//
// Candidates already in the past are dropped, never backfilled. The result may
// be empty.
func PlanReminders(bookingTime, rideTime, now time.Time) []PlannedReminder {
	noticeHours := int64(rideTime.Sub(bookingTime) / time.Hour)

	switch {
	case noticeHours < 1:
		return keepAfter(now.Add(-shortNoticeGrace), plan(rideTime, KindThirtyMinutesBefore))
	case noticeHours <= 24:
		return keepAfter(now, plan(rideTime, KindOneHourBefore))
	default:
		return keepAfter(now,
			plan(rideTime, KindTwentyFourHoursBefore),
			plan(rideTime, KindOneHourBeforeFinal),
		)
	}
}

func plan(rideTime time.Time, kind Kind) PlannedReminder {
	return PlannedReminder{Kind: kind, ScheduledAt: rideTime.Add(-kind.LeadTime())}
}

func keepAfter(threshold time.Time, candidates ...PlannedReminder) []PlannedReminder {
	kept := make([]PlannedReminder, 0, len(candidates))
	for _, c := range candidates {
		if c.ScheduledAt.After(threshold) {
			kept = append(kept, c)
		}
	}
	return kept
}
