package queue

import (
	"context"
	"fmt"
)

const (
	// BookingEventsQueue carries booking lifecycle changes from the booking service.
	BookingEventsQueue = "booking.events"
	// ReminderEventsQueue carries reminder delivery outcomes to interested consumers.
	ReminderEventsQueue = "reminder.events"
)

// Publisher publishes reminder outcome events.
type Publisher interface {
	PublishReminderEvent(ctx context.Context, msg ReminderEventMessage) error
	Close() error
}

// BookingEventHandler handles a consumed booking event.
type BookingEventHandler func(ctx context.Context, msg BookingEventMessage) error

// Consumer consumes booking events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler BookingEventHandler) error
	Close() error
}

var workQueues = []string{BookingEventsQueue, ReminderEventsQueue}

// DLQName returns the dead-letter queue name, e.g. dlq.booking.events.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// WorkQueueNames returns every queue the service declares.
func WorkQueueNames() []string {
	return append([]string(nil), workQueues...)
}

// DLQNames returns the dead-letter queue of every work queue.
func DLQNames() []string {
	queues := make([]string, 0, len(workQueues))
	for _, q := range workQueues {
		queues = append(queues, DLQName(q))
	}
	return queues
}
