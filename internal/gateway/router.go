package gateway

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/ride-reminders/internal/domain"
)

// Router picks the gateway registered for a message's channel.
type Router struct {
	routes map[domain.Channel]Gateway
}

func NewRouter() *Router {
	return &Router{routes: make(map[domain.Channel]Gateway)}
}

// Register adds or replaces the gateway for ch. Nil gateways are ignored.
func (r *Router) Register(ch domain.Channel, gw Gateway) *Router {
	if gw != nil {
		r.routes[ch] = gw
	}
	return r
}

func (r *Router) Supports(ch domain.Channel) bool {
	_, ok := r.routes[ch]
	return ok
}

func (r *Router) Send(ctx context.Context, msg Message) (*Response, error) {
	gw, ok := r.routes[msg.Channel]
	if !ok {
		return nil, &GatewayError{Message: fmt.Sprintf("no gateway configured for channel %s", msg.Channel)}
	}
	return gw.Send(ctx, msg)
}
