package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Chat subjects. Turn events are published on the subjects declared by the
// turn package.
const (
	SubjectChatInbound = "realtor.chat.inbound"
	SubjectChatReply   = "realtor.chat.reply"
)

// ChatMessage is an inbound user message for a session. An empty
// SessionID starts a new session.
type ChatMessage struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// ChatReply answers a ChatMessage.
type ChatReply struct {
	SessionID string          `json:"session_id"`
	TurnID    uint64          `json:"turn_id,omitempty"`
	Reply     string          `json:"reply"`
	Status    string          `json:"status,omitempty"`
	View      json.RawMessage `json:"view,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name("realtor"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Serve subscribes handler to subject within a queue group. The handler's
// answer goes to the message's reply inbox when it has one, otherwise it
// is published on fallback.
func (c *Client) Serve(subject, queue, fallback string, handler func(data []byte) any) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		answer := handler(msg.Data)
		to := msg.Reply
		if to == "" {
			to = fallback
		}
		if to == "" || answer == nil {
			return
		}
		if err := c.Publish(to, answer); err != nil {
			c.logger.Error("reply failed", "subject", to, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("serving", "subject", subject, "queue", queue)
	return nil
}

// Request sends data on subject and decodes the JSON answer into out.
func (c *Client) Request(ctx context.Context, subject string, data, out any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg, err := c.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// Drain flushes pending messages and closes the connection.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
