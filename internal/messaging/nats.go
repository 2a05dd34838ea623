// Package messaging provides a NATS client wrapper for the moderation
// service. It handles connection lifecycle, subject-based subscriptions, and
// convenience methods for check requests, results and lexicon broadcasts.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATS subject patterns used by the moderation service.
const (
	SubjectModeration       = "moderation.check"
	SubjectModerationResult = "moderation.result" // + .<session_id>
	SubjectLexicon          = "moderation.lexicon"
)

// DefaultQueueGroup load-balances check requests across moderator instances.
const DefaultQueueGroup = "moderators"

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	log  *logrus.Entry
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "moderator",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig, log *logrus.Entry) (*NATSClient, error) {
	log = log.WithField("component", "nats")
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("disconnected")
			} else {
				log.Warn("disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.WithField("url", nc.ConnectedUrl()).Info("connected")

	return &NATSClient{
		conn: nc,
		log:  log,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	c.track(subject, sub)
	return nil
}

// QueueSubscribe registers a handler in a queue group so each message is
// delivered to exactly one member.
func (c *NATSClient) QueueSubscribe(subject, queue string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return fmt.Errorf("nats queue subscribe %s/%s: %w", subject, queue, err)
	}
	c.track(subject+"#"+queue, sub)
	return nil
}

// SubscribeModerationCheck subscribes to moderation check requests within a
// queue group. The handler's return value is sent back when the request
// carries a reply subject; fire-and-forget publishers get no reply.
func (c *NATSClient) SubscribeModerationCheck(queue string, handler func(data []byte) []byte) error {
	return c.QueueSubscribe(SubjectModeration, queue, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" || reply == nil {
			return
		}
		if err := msg.Respond(reply); err != nil {
			c.log.WithError(err).Warn("respond to check request")
		}
	})
}

// RequestModerationCheck sends a check request and waits for the reply.
func (c *NATSClient) RequestModerationCheck(ctx context.Context, data []byte) ([]byte, error) {
	msg, err := c.conn.RequestWithContext(ctx, SubjectModeration, data)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", SubjectModeration, err)
	}
	return msg.Data, nil
}

// PublishModerationResult publishes a moderation result for a specific session.
func (c *NATSClient) PublishModerationResult(sessionID string, data []byte) error {
	return c.Publish(SubjectModerationResult+"."+sessionID, data)
}

// SubscribeModerationResult subscribes to moderation results for a specific session.
func (c *NATSClient) SubscribeModerationResult(sessionID string, handler func(data []byte)) error {
	subject := SubjectModerationResult + "." + sessionID
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeModerationResult unsubscribes from moderation results for a session.
func (c *NATSClient) UnsubscribeModerationResult(sessionID string) error {
	return c.unsubscribe(SubjectModerationResult + "." + sessionID)
}

// PublishLexiconUpdate broadcasts a custom lexicon change to every instance.
func (c *NATSClient) PublishLexiconUpdate(data []byte) error {
	return c.Publish(SubjectLexicon, data)
}

// SubscribeLexiconUpdates subscribes to lexicon broadcasts. Every instance
// receives every update.
func (c *NATSClient) SubscribeLexiconUpdates(handler func(data []byte)) error {
	return c.Subscribe(SubjectLexicon, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Connected reports whether the underlying connection is up.
func (c *NATSClient) Connected() bool {
	return c.conn.IsConnected()
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.log.WithError(err).WithField("subject", subject).Warn("drain subscription")
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		c.log.WithError(err).Warn("connection drain")
	}

	c.log.Info("client closed")
}

func (c *NATSClient) track(key string, sub *nats.Subscription) {
	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
