package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway delivers reminders as SMS.
type TwilioGateway struct {
	api  messageCreator
	from string
}

func NewTwilioGateway(cfg TwilioConfig) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio credentials are required")
	}
	if strings.TrimSpace(cfg.FromNumber) == "" {
		return nil, fmt.Errorf("twilio from number is required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return newTwilioGateway(client.Api, cfg.FromNumber), nil
}

func newTwilioGateway(api messageCreator, from string) *TwilioGateway {
	return &TwilioGateway{api: api, from: strings.TrimSpace(from)}
}

func (g *TwilioGateway) Send(ctx context.Context, msg Message) (*Response, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, &GatewayError{Message: "recipient phone number is empty"}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(g.from)
	params.SetBody(smsBody(msg))

	type result struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := g.api.CreateMessage(params)
		done <- result{msg: m, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, contextError(ctx, "twilio send")
	case res := <-done:
		if res.err != nil {
			return nil, classifyTwilioError(res.err)
		}
		resp := &Response{StatusCode: 201}
		if res.msg != nil && res.msg.Sid != nil {
			resp.MessageID = *res.msg.Sid
		}
		return resp, nil
	}
}

// SMS has no subject line, so it leads the body.
func smsBody(msg Message) string {
	if msg.Subject == "" {
		return msg.Body
	}
	return msg.Subject + "\n" + msg.Body
}

func classifyTwilioError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		return &GatewayError{
			StatusCode: restErr.Status,
			Message:    fmt.Sprintf("twilio error %d: %s", restErr.Code, restErr.Message),
			Transient:  isTransientHTTPStatus(restErr.Status),
			Cause:      err,
		}
	}
	return &GatewayError{Message: "twilio request failed", Transient: true, Cause: err}
}
