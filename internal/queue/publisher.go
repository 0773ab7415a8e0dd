package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/metrics"
)

// Publisher sends admission events and notifications to RabbitMQ. The
// connection is dialed lazily and re-dialed after it drops; every
// publish uses its own channel. Errors are logged and returned so the
// caller can ignore them without interrupting the request.
type Publisher struct {
	url string
	log *logrus.Entry

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, log: logger.WithService("publisher")}
}

// PublishEvent sends ev to the admission.events queue.
func (p *Publisher) PublishEvent(ctx context.Context, ev AdmissionEvent) error {
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	return p.publish(ctx, EventsQueue, ev)
}

// PublishNotification sends n to the admission.notifications queue.
func (p *Publisher) PublishNotification(ctx context.Context, n Notification) error {
	if n.SentAt == "" {
		n.SentAt = time.Now().UTC().Format(time.RFC3339)
	}
	return p.publish(ctx, NotificationsQueue, n)
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *Publisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func (p *Publisher) publish(ctx context.Context, queueName string, v any) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			p.log.WithError(err).WithField("queue", queueName).Warn("publish failed")
		}
		metrics.RecordPublish(queueName, outcome)
	}()

	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			_ = p.Close()
		}
		return err
	}
	return nil
}
