package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/queue"
)

// EventPublisher receives committed workflow transitions.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev queue.AdmissionEvent) error
}

// NotificationPublisher hands applicant messages to the delivery side.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n queue.Notification) error
}

// NopPublisher drops everything. It is used when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, queue.AdmissionEvent) error { return nil }
func (NopPublisher) PublishNotification(context.Context, queue.Notification) error { return nil }

const publishTimeout = 3 * time.Second

// emit publishes ev after the transaction committed. Failures are
// logged and never reach the caller.
func emit(ctx context.Context, p EventPublisher, log *logrus.Entry, ev queue.AdmissionEvent) {
	if p == nil {
		return
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.PublishEvent(ctx, ev); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"event":          ev.Type,
			"application_id": ev.ApplicationID,
		}).Warn("event not published")
	}
}

// outcome turns an operation result into a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSeatsExhausted):
		return "seats_exhausted"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNoCourseAssigned):
		return "no_course"
	case errors.Is(err, ErrApplicationNotFound), errors.Is(err, ErrCourseNotFound), errors.Is(err, ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, ErrRetryable):
		return "retryable"
	}
	return "error"
}
