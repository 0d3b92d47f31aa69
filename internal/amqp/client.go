package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/ports"
)

// Ensure interface conformance
var (
	_ ports.ChangePublisher = (*Client)(nil)
	_ ports.ChangeFeed      = (*Client)(nil)
	_ ports.ChangeFeed      = sharedFeed{}
)

const maxBackoff = 30 * time.Second

type Client struct {
	url          string
	exchangeName string
	routingKey   string

	dialMu  sync.Mutex
	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewClient dials the broker and declares the durable direct exchange that
// change notifications are published to.
func NewClient(url, exchangeName, routingKey string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		routingKey:   routingKey,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

// reconnect redials unless another caller already restored the channel.
func (c *Client) reconnect() error {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()
	if _, err := c.currentChannel(); err == nil {
		return nil
	}
	return c.connect()
}

func (c *Client) currentChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil || c.channel.IsClosed() {
		return nil, errors.New("channel closed")
	}
	return c.channel, nil
}

// PublishChange publishes a transaction change notification.
func (c *Client) PublishChange(ctx context.Context, change ports.Change) error {
	body, err := NewTransactionChangedMessage(change).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.currentChannel()
	if err != nil {
		if err := c.reconnect(); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
		if ch, err = c.currentChannel(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "Published transaction change",
		"user_id", change.UserID,
		"id", change.ID,
		"op", change.Op,
		"exchange", c.exchangeName)

	return nil
}

// Watch consumes change notifications through an exclusive queue, so every
// subscribing process sees every change. Lost connections are redialed with
// exponential backoff until ctx is cancelled.
func (c *Client) Watch(ctx context.Context, handler func(ports.Change) error) error {
	return c.watch(ctx, "", handler)
}

// SharedFeed returns a feed backed by the durable queue name. Processes
// watching the same name split the changes between them, so each change is
// handled once.
func (c *Client) SharedFeed(queue string) ports.ChangeFeed {
	return sharedFeed{client: c, queue: queue}
}

type sharedFeed struct {
	client *Client
	queue  string
}

func (f sharedFeed) Watch(ctx context.Context, handler func(ports.Change) error) error {
	return f.client.watch(ctx, f.queue, handler)
}

func (c *Client) watch(ctx context.Context, queue string, handler func(ports.Change) error) error {
	for attempt := 0; ; attempt++ {
		err := c.consume(ctx, queue, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP consumer lost connection, retrying",
			"error", err, "attempt", attempt+1, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := c.reconnect(); err != nil {
			slog.WarnContext(ctx, "AMQP reconnect failed", "error", err)
		}
	}
}

func (c *Client) consume(ctx context.Context, queue string, handler func(ports.Change) error) error {
	ch, err := c.currentChannel()
	if err != nil {
		return fmt.Errorf("connection closed: %w", err)
	}

	// An empty name gets a private, server-named queue.
	private := queue == ""
	q, err := ch.QueueDeclare(
		queue,    // name
		!private, // durable
		private,  // delete when unused
		private,  // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, c.routingKey, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,  // queue
		"",      // consumer
		false,   // auto-ack (we want manual ack)
		private, // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming transaction changes", "queue", q.Name, "routing_key", c.routingKey)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			msg, err := TransactionChangedMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(msg.Change()); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"user_id", msg.UserID,
					"id", msg.ID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
