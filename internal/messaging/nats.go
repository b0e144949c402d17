// Package messaging provides the NATS client wrapper connecting the
// moderation engine to the rest of the platform. The gateway publishes
// every observed message and membership change on the event subject; the
// engine executes moderation actions as request/reply calls the gateway
// serves.
package messaging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects shared with the platform gateway.
const (
	// SubjectEvents carries JSON-encoded event.Event values, one message
	// per observed event.
	SubjectEvents = "platform.events"

	// SubjectActions is the request/reply subject for moderation actions.
	SubjectActions = "platform.actions"
)

// Client wraps the NATS connection with helper methods for the moderation
// subjects.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "modengine",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// SubscribeEvents registers a handler for the platform event stream. The
// handler receives the raw JSON payload and is expected to hand it off
// quickly (the consumer spawns a goroutine per event).
func (c *Client) SubscribeEvents(handler func(data []byte)) error {
	return c.subscribe(SubjectEvents, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// RequestAction performs one moderation action as a request/reply exchange.
// The context bounds the wait for the gateway's reply.
func (c *Client) RequestAction(ctx context.Context, data []byte) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, SubjectActions, data)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", SubjectActions, err)
	}
	return msg.Data, nil
}

// subscribe registers a handler and stores the subscription for cleanup.
func (c *Client) subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
