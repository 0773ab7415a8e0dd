package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/metrics"
	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
	"github.com/iliyamo/college-admission/internal/repository"
)

// Workflow applies the officer and admin transitions of one application.
// Every operation is a locked read-modify-write of the application row.
type Workflow struct {
	store       repository.Store
	coordinator *Coordinator
	events      EventPublisher
	log         *logrus.Entry
	maxRetries  int
}

func NewWorkflow(store repository.Store, coordinator *Coordinator, events EventPublisher, maxRetries int) *Workflow {
	if store == nil || coordinator == nil {
		panic("service: NewWorkflow requires a store and a coordinator")
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &Workflow{
		store:       store,
		coordinator: coordinator,
		events:      events,
		log:         logger.WithService("workflow"),
		maxRetries:  maxRetries,
	}
}

// DecisionResult is returned by Decide. Seat is set for "selected".
type DecisionResult struct {
	ApplicationID uint64                `json:"application_id"`
	Decision      model.SelectionStatus `json:"decision"`
	Seat          *Selection            `json:"seat,omitempty"`
}

// StatusView is an application together with its derived workflow
// position and the document requests still waiting for an upload.
type StatusView struct {
	Application *model.Application         `json:"application"`
	Stage       model.Stage                `json:"stage"`
	Terminal    bool                       `json:"terminal"`
	Outstanding []model.AdditionalDocument `json:"outstanding_documents"`
}

// finish records the result of a transition and publishes ev when it
// changed something. changed is false for idempotent repeats.
func (w *Workflow) finish(ctx context.Context, op string, id uint64, changed bool, err error, ev *queue.AdmissionEvent) {
	entry := w.log.WithFields(logrus.Fields{"operation": op, "application_id": id})
	switch {
	case err != nil:
		metrics.RecordTransition(op, outcome(err))
		entry.WithError(err).WithField("outcome", outcome(err)).Info("transition refused")
	case !changed:
		metrics.RecordTransition(op, "no_change")
		entry.WithField("outcome", "no_change").Debug("transition already applied")
	default:
		metrics.RecordTransition(op, "ok")
		entry.WithField("outcome", "ok").Info("transition applied")
		if ev != nil {
			emit(ctx, w.events, w.log, *ev)
		}
	}
}

// transition runs fn through runTransition and reports whether fn
// actually mutated the row.
func (w *Workflow) transition(ctx context.Context, op string, id uint64, fn mutation) (*model.Application, bool, error) {
	changed := false
	a, err := runTransition(ctx, w.store, w.maxRetries, op, id, func(ctx context.Context, tx repository.Tx, a *model.Application) error {
		changed = false
		if err := fn(ctx, tx, a); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		changed = false
	}
	return a, changed, err
}

// Submit turns a draft into a submitted application.
func (w *Workflow) Submit(ctx context.Context, id uint64) (*model.Application, error) {
	a, changed, err := w.transition(ctx, "submit", id, func(ctx context.Context, tx repository.Tx, a *model.Application) error {
		if err := checkSubmit(a); err != nil {
			return err
		}
		if err := tx.Finalize(ctx, id); err != nil {
			return err
		}
		a.IsDraft = false
		return nil
	})
	var ev *queue.AdmissionEvent
	if changed {
		ev = &queue.AdmissionEvent{Type: queue.EventSubmitted, ApplicationID: id, StudentName: a.StudentName}
	}
	w.finish(ctx, "submit", id, changed, err, ev)
	return a, err
}

func (w *Workflow) Approve(ctx context.Context, id uint64) (*model.Application, error) {
	return w.review(ctx, "approve", id, model.AdminApproved, queue.EventApproved)
}

func (w *Workflow) Reject(ctx context.Context, id uint64) (*model.Application, error) {
	return w.review(ctx, "reject", id, model.AdminRejected, queue.EventRejected)
}

func (w *Workflow) review(ctx context.Context, op string, id uint64, target model.AdminStatus, evType queue.EventType) (*model.Application, error) {
	a, changed, err := w.transition(ctx, op, id, func(ctx context.Context, tx repository.Tx, a *model.Application) error {
		if err := checkAdminReview(a, target); err != nil {
			return err
		}
		if err := tx.SetAdminStatus(ctx, id, target); err != nil {
			return err
		}
		a.Status = target
		return nil
	})
	var ev *queue.AdmissionEvent
	if changed {
		ev = &queue.AdmissionEvent{Type: evType, ApplicationID: id, StudentName: a.StudentName}
	}
	w.finish(ctx, op, id, changed, err, ev)
	return a, err
}

// VerifyDocuments records the officer's document check. A negative
// result rejects the application and its selection in one statement.
func (w *Workflow) VerifyDocuments(ctx context.Context, id uint64, verified bool) (*model.Application, error) {
	op := "verify_documents"
	if !verified {
		op = "reject_documents"
	}
	a, changed, err := w.transition(ctx, op, id, func(ctx context.Context, tx repository.Tx, a *model.Application) error {
		if err := checkVerify(a, verified); err != nil {
			return err
		}
		if verified {
			if err := tx.SetVerification(ctx, id, model.VerificationVerified); err != nil {
				return err
			}
			a.OfficerVerified = model.VerificationVerified
			return nil
		}
		if err := tx.RejectDocuments(ctx, id); err != nil {
			return err
		}
		a.OfficerVerified = model.VerificationRejected
		a.SelectionStatus = model.SelectionRejected
		a.Status = model.AdminRejected
		return nil
	})
	var ev *queue.AdmissionEvent
	if changed {
		evType := queue.EventDocumentsVerified
		if !verified {
			evType = queue.EventDocumentsRejected
		}
		ev = &queue.AdmissionEvent{Type: evType, ApplicationID: id, StudentName: a.StudentName}
	}
	w.finish(ctx, op, id, changed, err, ev)
	return a, err
}

// ScheduleInterview sets or moves the interview date.
func (w *Workflow) ScheduleInterview(ctx context.Context, id uint64, at time.Time) (*model.Application, error) {
	if at.IsZero() {
		return nil, ErrInvalidInterviewDate
	}
	at = at.UTC()
	a, changed, err := w.transition(ctx, "schedule_interview", id, func(ctx context.Context, tx repository.Tx, a *model.Application) error {
		if err := checkInterview(a); err != nil {
			return err
		}
		if err := tx.SetInterviewDate(ctx, id, at); err != nil {
			return err
		}
		a.InterviewDate = &at
		return nil
	})
	var ev *queue.AdmissionEvent
	if changed {
		ev = &queue.AdmissionEvent{
			Type:          queue.EventInterviewScheduled,
			ApplicationID: id,
			StudentName:   a.StudentName,
			InterviewDate: at.Format(time.RFC3339),
		}
	}
	w.finish(ctx, "schedule_interview", id, changed, err, ev)
	return a, err
}

// Decide records the officer's final decision. "selected" goes through
// the Coordinator so the seat is taken in the same transaction.
func (w *Workflow) Decide(ctx context.Context, id uint64, raw string) (*DecisionResult, error) {
	d, err := model.ParseDecision(raw)
	if err != nil {
		return nil, ErrInvalidDecision
	}
	if d == model.SelectionSelected {
		sel, err := w.coordinator.Select(ctx, id)
		if err != nil {
			return nil, err
		}
		return &DecisionResult{ApplicationID: id, Decision: d, Seat: sel}, nil
	}

	op := "mark_" + string(d)
	a, changed, err := w.transition(ctx, op, id, func(ctx context.Context, tx repository.Tx, a *model.Application) error {
		if err := checkDecision(a, d); err != nil {
			return err
		}
		if err := tx.SetSelectionStatus(ctx, id, d); err != nil {
			return err
		}
		a.SelectionStatus = d
		return nil
	})
	var ev *queue.AdmissionEvent
	if changed {
		evType := queue.EventWaitlisted
		if d == model.SelectionRejected {
			evType = queue.EventSelectionRejected
		}
		ev = &queue.AdmissionEvent{Type: evType, ApplicationID: id, StudentName: a.StudentName}
	}
	w.finish(ctx, op, id, changed, err, ev)
	if err != nil {
		return nil, err
	}
	return &DecisionResult{ApplicationID: id, Decision: d}, nil
}

// Status returns the application with its stage and open document
// requests.
func (w *Workflow) Status(ctx context.Context, id uint64) (*StatusView, error) {
	a, err := w.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := w.store.ListDocuments(ctx, id)
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		return nil, err
	}
	outstanding := make([]model.AdditionalDocument, 0, len(docs))
	for _, d := range docs {
		if d.Status == model.DocumentRequested {
			outstanding = append(outstanding, d)
		}
	}
	return &StatusView{
		Application: a,
		Stage:       a.Stage(),
		Terminal:    a.IsTerminal(),
		Outstanding: outstanding,
	}, nil
}
