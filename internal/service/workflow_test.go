package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
)

var interviewAt = time.Date(2026, 7, 14, 9, 30, 0, 0, time.UTC)

func TestSubmitDraft(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 1, IsDraft: true})

	a, err := h.workflow.Submit(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, a.IsDraft)
	assert.Equal(t, model.StageSubmitted, a.Stage())

	_, err = h.workflow.Submit(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []queue.EventType{queue.EventSubmitted}, h.events.types())
}

func TestDraftNeverEntersWorkflow(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 1, IsDraft: true})
	ctx := context.Background()

	_, err := h.workflow.Approve(ctx, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, ErrDraftApplication)

	_, err = h.workflow.VerifyDocuments(ctx, 1, true)
	assert.ErrorIs(t, err, ErrDraftApplication)

	_, err = h.workflow.Decide(ctx, 1, "waitlisted")
	assert.ErrorIs(t, err, ErrDraftApplication)

	assert.Equal(t, model.AdminPending, h.store.app(1).Status)
}

func TestApproveIsIdempotent(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 7})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a, err := h.workflow.Approve(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, model.AdminApproved, a.Status)
	}
	assert.Equal(t, []queue.EventType{queue.EventApproved}, h.events.types())
}

func TestAdminRejectionIsFinal(t *testing.T) {
	h := newHarness()
	h.store.addCourse(1, "B.Sc Physics", "Science", 1)
	h.store.ready(8, 1)
	ctx := context.Background()

	a, err := h.workflow.Reject(ctx, 8)
	require.NoError(t, err)
	assert.True(t, a.IsTerminal())

	_, err = h.workflow.Approve(ctx, 8)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.EqualError(t, err, "cannot approve application 8: application was rejected by admin")

	_, err = h.workflow.Reject(ctx, 8)
	require.NoError(t, err)

	_, err = h.workflow.Decide(ctx, 8, "selected")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, model.AdminRejected, h.store.app(8).Status)
	assert.Equal(t, 1, h.store.course(1).AvailableSeats)
	assert.Zero(t, h.store.allocationCount())
}

func TestApproveUnknownApplication(t *testing.T) {
	h := newHarness()
	_, err := h.workflow.Approve(context.Background(), 404)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestVerifyRequiresApproval(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 3})

	_, err := h.workflow.VerifyDocuments(context.Background(), 3, true)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.VerificationUnset, h.store.app(3).OfficerVerified)
}

func TestRejectDocumentsCascades(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 5, Status: model.AdminApproved})
	ctx := context.Background()

	a, err := h.workflow.VerifyDocuments(ctx, 5, false)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationRejected, a.OfficerVerified)
	assert.Equal(t, model.SelectionRejected, a.SelectionStatus)
	assert.Equal(t, model.AdminRejected, a.Status)
	assert.True(t, a.IsTerminal())

	stored := h.store.app(5)
	assert.Equal(t, model.VerificationRejected, stored.OfficerVerified)
	assert.Equal(t, model.SelectionRejected, stored.SelectionStatus)
	assert.Equal(t, model.AdminRejected, stored.Status)

	_, err = h.workflow.Approve(ctx, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.workflow.Decide(ctx, 5, "selected")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.workflow.ScheduleInterview(ctx, 5, interviewAt)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Contains(t, h.events.types(), queue.EventDocumentsRejected)
}

func TestRejectDocumentsOfSelectedApplication(t *testing.T) {
	h := newHarness()
	h.store.addCourse(1, "B.Tech CSE", "Engineering", 10)
	h.store.ready(9, 1)
	ctx := context.Background()

	_, err := h.workflow.Decide(ctx, 9, "selected")
	require.NoError(t, err)

	_, err = h.workflow.VerifyDocuments(ctx, 9, false)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.SelectionSelected, h.store.app(9).SelectionStatus)
}

func TestPreconditionOrder(t *testing.T) {
	h := newHarness()
	h.store.addCourse(1, "B.Tech CSE", "Engineering", 10)
	course := uint64(1)
	ctx := context.Background()

	tests := []struct {
		name string
		app  model.Application
		step Step
		msg  string
	}{
		{
			name: "pending",
			app:  model.Application{ID: 11, CoursePreference1: &course},
			step: StepAdminApproval,
			msg:  "must be approved by admin first",
		},
		{
			name: "approved, documents unchecked",
			app:  model.Application{ID: 12, Status: model.AdminApproved, CoursePreference1: &course},
			step: StepDocumentsVerified,
			msg:  "documents must be verified first",
		},
		{
			name: "verified, no interview",
			app: model.Application{
				ID: 13, Status: model.AdminApproved, OfficerVerified: model.VerificationVerified, CoursePreference1: &course,
			},
			step: StepInterviewScheduled,
			msg:  "interview must be scheduled first",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h.store.addApp(tc.app)
			for _, decision := range []string{"selected", "waitlisted", "rejected"} {
				_, err := h.workflow.Decide(ctx, tc.app.ID, decision)
				var pe *PreconditionError
				require.True(t, errors.As(err, &pe), "decision %s: %v", decision, err)
				assert.Equal(t, tc.step, pe.Step)
				assert.Equal(t, tc.msg, err.Error())
			}
		})
	}
	assert.Equal(t, 10, h.store.course(1).AvailableSeats)
}

func TestScheduleInterviewPreconditions(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 1})
	h.store.addApp(model.Application{ID: 2, Status: model.AdminApproved})
	ctx := context.Background()

	_, err := h.workflow.ScheduleInterview(ctx, 1, interviewAt)
	assert.EqualError(t, err, "must be approved by admin first")

	_, err = h.workflow.ScheduleInterview(ctx, 2, interviewAt)
	assert.EqualError(t, err, "documents must be verified first")

	_, err = h.workflow.ScheduleInterview(ctx, 2, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidInterviewDate)
}

func TestScheduleInterviewReschedule(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 4, Status: model.AdminApproved, OfficerVerified: model.VerificationVerified})
	ctx := context.Background()

	_, err := h.workflow.ScheduleInterview(ctx, 4, interviewAt)
	require.NoError(t, err)

	later := interviewAt.Add(48 * time.Hour)
	a, err := h.workflow.ScheduleInterview(ctx, 4, later)
	require.NoError(t, err)
	assert.True(t, a.InterviewDate.Equal(later))
	assert.Equal(t, model.StageInterviewScheduled, h.store.app(4).Stage())
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	h := newHarness()
	_, err := h.workflow.Decide(context.Background(), 1, "maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestWaitlistThenSelect(t *testing.T) {
	h := newHarness()
	h.store.addCourse(1, "B.Tech CSE", "Engineering", 2)
	h.store.ready(21, 1)
	ctx := context.Background()

	res, err := h.workflow.Decide(ctx, 21, "waitlisted")
	require.NoError(t, err)
	assert.Nil(t, res.Seat)
	assert.Equal(t, 2, h.store.course(1).AvailableSeats)

	res, err = h.workflow.Decide(ctx, 21, "selected")
	require.NoError(t, err)
	require.NotNil(t, res.Seat)
	assert.Equal(t, 1, res.Seat.SeatsRemaining)
	assert.Equal(t, 1, h.store.course(1).AvailableSeats)
}

func TestSelectedCannotChange(t *testing.T) {
	h := newHarness()
	h.store.addCourse(1, "B.Tech CSE", "Engineering", 2)
	h.store.ready(22, 1)
	ctx := context.Background()

	_, err := h.workflow.Decide(ctx, 22, "selected")
	require.NoError(t, err)

	for _, d := range []string{"waitlisted", "rejected"} {
		_, err := h.workflow.Decide(ctx, 22, d)
		assert.ErrorIs(t, err, ErrInvalidTransition, d)
	}
	_, err = h.workflow.Reject(ctx, 22)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = h.workflow.ScheduleInterview(ctx, 22, interviewAt)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, model.SelectionSelected, h.store.app(22).SelectionStatus)
	assert.Equal(t, 1, h.store.course(1).AvailableSeats)
}

func TestStatusListsOutstandingDocuments(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 30, Status: model.AdminApproved})
	docs := NewDocumentService(h.store, h.events)
	ctx := context.Background()

	first, err := docs.RequestDocument(ctx, 30, "Caste certificate")
	require.NoError(t, err)
	_, err = docs.RequestDocument(ctx, 30, "Migration certificate")
	require.NoError(t, err)
	_, err = docs.MarkUploaded(ctx, 30, first.ID, "uploads/abc.pdf")
	require.NoError(t, err)

	view, err := h.workflow.Status(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, model.StageAdminReviewed, view.Stage)
	assert.False(t, view.Terminal)
	require.Len(t, view.Outstanding, 1)
	assert.Equal(t, "Migration certificate", view.Outstanding[0].Reason)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness()
	h.events.err = errors.New("broker down")
	h.store.addApp(model.Application{ID: 40})

	a, err := h.workflow.Approve(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, model.AdminApproved, a.Status)
	assert.Equal(t, model.AdminApproved, h.store.app(40).Status)
}
