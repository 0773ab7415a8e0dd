package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/metrics"
	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
	"github.com/iliyamo/college-admission/internal/repository"
)

// Selection is the result of selecting an applicant.
type Selection struct {
	ApplicationID   uint64 `json:"application_id"`
	CourseID        uint64 `json:"course_id"`
	CourseName      string `json:"course_name"`
	SeatsRemaining  int    `json:"seats_remaining"`
	AlreadySelected bool   `json:"already_selected"`
}

// Coordinator performs "mark selected and consume one seat" as a single
// transaction. The application row is locked before the course row on
// every path, so two selections never wait on each other in opposite
// order.
type Coordinator struct {
	store      repository.Store
	ledger     *SeatLedger
	events     EventPublisher
	log        *logrus.Entry
	maxRetries int
	now        func() time.Time
}

func NewCoordinator(store repository.Store, ledger *SeatLedger, events EventPublisher, maxRetries int) *Coordinator {
	if events == nil {
		events = NopPublisher{}
	}
	return &Coordinator{
		store:      store,
		ledger:     ledger,
		events:     events,
		log:        logger.WithService("selection"),
		maxRetries: maxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Select marks the application selected and takes one seat of its
// first-preference course. Selecting an already selected application
// returns AlreadySelected without touching the seat counter.
func (c *Coordinator) Select(ctx context.Context, id uint64) (*Selection, error) {
	var (
		sel     *Selection
		student string
	)
	err := withRetry(ctx, "select", c.maxRetries, func() error {
		sel = nil
		return c.store.InTx(ctx, func(tx repository.Tx) error {
			a, err := tx.LockApplication(ctx, id)
			if err != nil {
				return err
			}
			student = a.StudentName
			if err := checkDecision(a, model.SelectionSelected); err != nil {
				if errors.Is(err, errNoChange) {
					courseID, _ := a.FirstPreference()
					sel = &Selection{ApplicationID: id, CourseID: courseID, AlreadySelected: true}
				}
				return err
			}

			courseID, ok := a.FirstPreference()
			if !ok {
				return fmt.Errorf("%w: application %d has no first preference", ErrNoCourseAssigned, id)
			}
			capacity, err := c.ledger.Reserve(ctx, tx, courseID)
			if err != nil {
				return err
			}
			if err := tx.RecordAllocation(ctx, id, courseID, c.now()); err != nil {
				if errors.Is(err, repository.ErrAlreadyAllocated) {
					return invalidTransition("select", id, "a seat was already allocated")
				}
				return err
			}
			if err := tx.SetSelectionStatus(ctx, id, model.SelectionSelected); err != nil {
				return err
			}
			sel = &Selection{
				ApplicationID:  id,
				CourseID:       courseID,
				CourseName:     capacity.CourseName,
				SeatsRemaining: capacity.Available,
			}
			return nil
		})
	})

	if errors.Is(err, errNoChange) && sel != nil {
		if capacity, cerr := c.ledger.CapacityOf(ctx, sel.CourseID); cerr == nil {
			sel.CourseName = capacity.CourseName
			sel.SeatsRemaining = capacity.Available
		}
		metrics.RecordTransition("select", "no_change")
		return sel, nil
	}

	entry := c.log.WithField("application_id", id)
	metrics.RecordTransition("select", outcome(err))
	if err != nil {
		entry.WithError(err).WithField("outcome", outcome(err)).Info("selection refused")
		return nil, err
	}

	entry.WithFields(logrus.Fields{
		"course_id":       sel.CourseID,
		"seats_remaining": sel.SeatsRemaining,
		"outcome":         "selected",
	}).Info("applicant selected")
	metrics.SetSeatsAvailable(sel.CourseID, sel.SeatsRemaining)

	remaining := sel.SeatsRemaining
	emit(ctx, c.events, c.log, queue.AdmissionEvent{
		Type:           queue.EventSelected,
		ApplicationID:  id,
		StudentName:    student,
		CourseID:       sel.CourseID,
		CourseName:     sel.CourseName,
		SeatsRemaining: &remaining,
	})
	return sel, nil
}
