package gateway

import (
	"context"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
)

// Gateway is the outbound reminder delivery port.
type Gateway interface {
	Send(ctx context.Context, msg Message) (*Response, error)
}

// Message is one rendered reminder ready for delivery.
type Message struct {
	Channel    domain.Channel
	To         string
	Subject    string
	Body       string
	ReminderID string
	BookingID  string
	Kind       domain.Kind
}

// Response stores gateway call metadata for the attempt log.
type Response struct {
	StatusCode int
	MessageID  string
}
