package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName = "reminders.dlx"
	dialTimeout     = 15 * time.Second
	redialMin       = time.Second
	redialMax       = 30 * time.Second
	heartbeat       = 10 * time.Second
	connectionName  = "ride-reminders"
)

// RabbitMQ owns one broker connection shared by the booking event consumer
// and the reminder event publisher. A dropped connection is redialled lazily
// on the next channel request.
type RabbitMQ struct {
	url string

	// dialMu serializes channel opens and redials; mu guards conn only.
	dialMu   sync.Mutex
	mu       sync.RWMutex
	conn     *amqp.Connection
	declared bool
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	ch, err := r.channel(ctx)
	if err != nil {
		return nil, err
	}
	_ = ch.Close()

	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// Healthy reports whether the broker connection is currently open.
func (r *RabbitMQ) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn != nil && !r.conn.IsClosed()
}

// channel opens a channel on a live connection. The queue topology is
// declared on the first channel of every new connection.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	for attempt := 0; ; attempt++ {
		conn, err := r.connect(ctx)
		if err != nil {
			return nil, err
		}

		ch, err := conn.Channel()
		if err != nil {
			if attempt > 0 {
				return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
			}
			// The connection died between the liveness check and Channel().
			_ = conn.Close()
			continue
		}

		if !r.declared {
			if err := declareTopology(ch); err != nil {
				_ = ch.Close()
				return nil, err
			}
			r.declared = true
		}
		return ch, nil
	}
}

// connect returns the open connection or dials a new one with capped
// exponential backoff. Callers hold dialMu.
func (r *RabbitMQ) connect(ctx context.Context) (*amqp.Connection, error) {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	wait := redialMin
	for {
		conn, err := amqp.DialConfig(r.url, dialConfig())
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.mu.Unlock()
			r.declared = false
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled after %v: %w", err, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, redialMax)
	}
}

func dialConfig() amqp.Config {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)

	return amqp.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
	}
}

// declareTopology declares every work queue with a dead-letter queue bound to
// the shared DLX under the work queue's name.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", dlxExchangeName, err)
	}

	for _, name := range workQueues {
		dlq := DLQName(name)
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, name, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %q: %w", dlq, err)
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    dlxExchangeName,
			"x-dead-letter-routing-key": name,
		}
		if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", name, err)
		}
	}

	return nil
}
