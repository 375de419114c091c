// Package notify hands outbound email to an external sender. Delivery is
// fire-and-forget: callers log failures and never roll back on them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Email is one message for the email sender to render and deliver.
type Email struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// Mailer queues email for delivery.
type Mailer interface {
	Send(ctx context.Context, email Email) error
	Close() error
}

// RabbitMailer publishes email jobs to a durable queue.
type RabbitMailer struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewRabbitMailer dials RabbitMQ and declares the queue.
func NewRabbitMailer(url, queue string) (*RabbitMailer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &RabbitMailer{conn: conn, queue: queue, ch: ch}, nil
}

// Send publishes the email as a persistent JSON message on the default exchange.
func (m *RabbitMailer) Send(ctx context.Context, email Email) error {
	body, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch == nil || m.ch.IsClosed() {
		ch, err := m.conn.Channel()
		if err != nil {
			return fmt.Errorf("open channel: %w", err)
		}
		m.ch = ch
	}

	return m.ch.PublishWithContext(ctx, "", m.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (m *RabbitMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ch != nil {
		m.ch.Close()
	}
	return m.conn.Close()
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, email Email) error {
	m.logger.Info("Email queued (log only)",
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("template", email.Template),
	)
	return nil
}

func (m *LogMailer) Close() error { return nil }
