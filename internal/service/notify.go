package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/queue"
	"github.com/iliyamo/college-admission/internal/repository"
)

var ErrMessageRequired = errors.New("message is required")

// NotifyResult counts what happened to one notification request.
type NotifyResult struct {
	Recorded int64 `json:"recorded"`
	Queued   int   `json:"queued"`
	Failed   int   `json:"failed"`
}

// Notifier stores the last message on each application and hands it to
// the notification queue. Delivery is someone else's job.
type Notifier struct {
	store     repository.Store
	publisher NotificationPublisher
	log       *logrus.Entry
	now       func() time.Time
}

func NewNotifier(store repository.Store, publisher NotificationPublisher) *Notifier {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Notifier{
		store:     store,
		publisher: publisher,
		log:       logger.WithService("notify"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (n *Notifier) Notify(ctx context.Context, ids []uint64, message string) (*NotifyResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMessageRequired
	}

	at := n.now()
	recorded, err := n.store.SetNotification(ctx, ids, message, at)
	if err != nil {
		return nil, err
	}
	if len(recorded) == 0 {
		return nil, ErrApplicationNotFound
	}

	res := &NotifyResult{Recorded: int64(len(recorded))}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, id := range recorded {
		err := n.publisher.PublishNotification(pubCtx, queue.Notification{
			ApplicationID: id,
			Message:       message,
			SentAt:        at.Format(time.RFC3339),
		})
		if err != nil {
			res.Failed++
			n.log.WithError(err).WithField("application_id", id).Warn("notification not queued")
			continue
		}
		res.Queued++
	}
	n.log.WithFields(logrus.Fields{"recorded": res.Recorded, "queued": res.Queued, "failed": res.Failed}).Info("notifications sent")
	return res, nil
}
