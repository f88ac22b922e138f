package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies which reminder of a booking's schedule a record is.
// A booking holds at most one reminder of each kind.
type Kind string

const (
	KindThirtyMinutesBefore   Kind = "THIRTY_MINUTES_BEFORE"
	KindOneHourBefore         Kind = "ONE_HOUR_BEFORE"
	KindTwentyFourHoursBefore Kind = "TWENTY_FOUR_HOURS_BEFORE"
	KindOneHourBeforeFinal    Kind = "ONE_HOUR_BEFORE_FINAL"
)

type kindSpec struct {
	leadTime   time.Duration
	subject    string
	timePhrase string
}

// kindTable is the single dispatch table for everything that varies by kind.
// Adding a Kind without an entry here makes IsValid reject it.
var kindTable = map[Kind]kindSpec{
	KindThirtyMinutesBefore: {
		leadTime:   30 * time.Minute,
		subject:    "Ride Reminder: Your ride starts in 30 minutes",
		timePhrase: "in 30 minutes",
	},
	KindOneHourBefore: {
		leadTime:   time.Hour,
		subject:    "Ride Reminder: Your ride starts in 1 hour",
		timePhrase: "in 1 hour",
	},
	KindTwentyFourHoursBefore: {
		leadTime:   24 * time.Hour,
		subject:    "Ride Reminder: Your ride is tomorrow",
		timePhrase: "in 24 hours",
	},
	KindOneHourBeforeFinal: {
		leadTime:   time.Hour,
		subject:    "Final Reminder: Your ride starts in 1 hour",
		timePhrase: "in 1 hour",
	},
}

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	_, ok := kindTable[k]
	return ok
}

// LeadTime is how long before departure the reminder fires.
func (k Kind) LeadTime() time.Duration {
	return kindTable[k].leadTime
}

// Subject is the notification subject line for the kind.
func (k Kind) Subject() string {
	return kindTable[k].subject
}

// TimePhrase describes the remaining time until departure, e.g. "in 1 hour".
func (k Kind) TimePhrase() string {
	return kindTable[k].timePhrase
}

func ParseKindFromString(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid reminder kind %q", ErrValidation, s)
	}
	return k, nil
}
