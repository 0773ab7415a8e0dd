package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
)

// EventLogConsumer appends every admission event to a log file, one
// line per event. Malformed messages are rejected without requeue so a
// bad payload cannot stall the queue.
type EventLogConsumer struct {
	url     string
	logPath string
	log     *logrus.Entry

	mu sync.Mutex
}

func NewEventLogConsumer(url, logPath string) *EventLogConsumer {
	if logPath == "" {
		logPath = filepath.Join("logs", "admission.log")
	}
	return &EventLogConsumer{url: url, logPath: logPath, log: logger.WithService("event-consumer")}
}

// Run connects, consumes and reconnects with backoff until ctx is done.
func (c *EventLogConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("dial failed; retrying in %s", backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *EventLogConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.WithError(err).Warn("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one event and appends it to the log file.
func (c *EventLogConsumer) Handle(body []byte) error {
	var ev AdmissionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ApplicationID == 0 {
		return errors.New("event without type or application id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatEvent(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEvent renders ev as a single log line.
func FormatEvent(ev AdmissionEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | application_id=%d", ev.OccurredAt, ev.Type, ev.ApplicationID)
	if ev.StudentName != "" {
		fmt.Fprintf(&b, " | student=%q", ev.StudentName)
	}
	if ev.CourseID != 0 {
		fmt.Fprintf(&b, " | course_id=%d", ev.CourseID)
	}
	if ev.CourseName != "" {
		fmt.Fprintf(&b, " | course=%q", ev.CourseName)
	}
	if ev.SeatsRemaining != nil {
		fmt.Fprintf(&b, " | seats_remaining=%d", *ev.SeatsRemaining)
	}
	if ev.InterviewDate != "" {
		fmt.Fprintf(&b, " | interview=%s", ev.InterviewDate)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&b, " | detail=%q", ev.Detail)
	}
	b.WriteByte('\n')
	return b.String()
}
