package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookRequest struct {
	ReminderID string `json:"reminderId"`
	BookingID  string `json:"bookingId"`
	Kind       string `json:"kind"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// WebhookGateway posts reminders as JSON to an HTTP endpoint.
type WebhookGateway struct {
	client   *resty.Client
	endpoint string
}

func NewWebhookGateway(endpoint string) (*WebhookGateway, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)

	return NewWebhookGatewayWithClient(endpoint, client)
}

func NewWebhookGatewayWithClient(endpoint string, client *resty.Client) (*WebhookGateway, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	// Retries belong to the dispatcher so every attempt is counted.
	client.SetRetryCount(0)

	return &WebhookGateway{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (g *WebhookGateway) Send(ctx context.Context, msg Message) (*Response, error) {
	reqBody := webhookRequest{
		ReminderID: msg.ReminderID,
		BookingID:  msg.BookingID,
		Kind:       msg.Kind.String(),
		To:         msg.To,
		Subject:    msg.Subject,
		Body:       msg.Body,
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(g.endpoint)
	if err != nil {
		return nil, &GatewayError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{
			StatusCode: statusCode,
			MessageID:  requestID(response),
		}, nil
	}

	return nil, &GatewayError{
		StatusCode: statusCode,
		Message:    webhookErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func webhookErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func requestID(response *resty.Response) string {
	for _, key := range []string{"X-Request-ID", "X-Correlation-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}
	return ""
}
