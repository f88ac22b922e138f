package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"gopkg.in/mail.v2"
)

const defaultSMTPTimeout = 10 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPGateway delivers reminders as plain-text email.
type SMTPGateway struct {
	sender mailSender
	from   string
}

func NewSMTPGateway(cfg SMTPConfig) (*SMTPGateway, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}

	dialer := mail.NewDialer(host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = cfg.Timeout
	if dialer.Timeout <= 0 {
		dialer.Timeout = defaultSMTPTimeout
	}
	dialer.RetryFailure = false
	dialer.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}

	return newSMTPGateway(dialer, cfg.From), nil
}

func newSMTPGateway(sender mailSender, from string) *SMTPGateway {
	return &SMTPGateway{sender: sender, from: strings.TrimSpace(from)}
}

func (g *SMTPGateway) Send(ctx context.Context, msg Message) (*Response, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, &GatewayError{Message: "recipient email is empty"}
	}

	m := mail.NewMessage()
	m.SetHeader("From", g.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReminderID != "" {
		m.SetHeader("X-Reminder-ID", msg.ReminderID)
	}
	m.SetBody("text/plain", msg.Body)

	// DialAndSend has no context; the goroutine is abandoned on deadline and
	// ends on the dialer timeout.
	done := make(chan error, 1)
	go func() {
		done <- g.sender.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return nil, contextError(ctx, "smtp send")
	case err := <-done:
		if err != nil {
			return nil, classifySMTPError(err)
		}
		return &Response{StatusCode: 250}, nil
	}
}

// 4xx replies are temporary per RFC 5321, 5xx are permanent. Connection
// level failures are retried.
func classifySMTPError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return &GatewayError{
			StatusCode: protoErr.Code,
			Message:    "smtp server rejected message",
			Transient:  protoErr.Code >= 400 && protoErr.Code < 500,
			Cause:      err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &GatewayError{Message: "smtp connection failed", Transient: true, Cause: err}
	}

	return &GatewayError{Message: "smtp send failed", Transient: true, Cause: err}
}
