package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/repository"
)

func seedInterviewPool(h *harness) {
	h.store.addCourse(1, "B.Tech CSE", "Engineering", 60)
	h.store.addCourse(2, "B.Tech ECE", "Engineering", 60)
	h.store.addCourse(3, "MBA", "Management", 30)
	cse, ece, mba := uint64(1), uint64(2), uint64(3)
	verified := func(id uint64, course *uint64) model.Application {
		return model.Application{
			ID:                id,
			Status:            model.AdminApproved,
			OfficerVerified:   model.VerificationVerified,
			CoursePreference1: course,
		}
	}
	h.store.addApp(verified(1, &cse))
	h.store.addApp(verified(2, &cse))
	h.store.addApp(verified(3, &ece))
	h.store.addApp(verified(4, &mba))
	// not eligible: documents unchecked, already scheduled, draft
	h.store.addApp(model.Application{ID: 5, Status: model.AdminApproved, CoursePreference1: &cse})
	scheduled := verified(6, &cse)
	scheduled.InterviewDate = &interviewAt
	h.store.addApp(scheduled)
	draft := verified(7, &cse)
	draft.IsDraft = true
	h.store.addApp(draft)
}

func TestBulkScheduleInterviewByCourse(t *testing.T) {
	h := newHarness()
	seedInterviewPool(h)

	res, err := h.bulk.BulkScheduleInterview(context.Background(), repository.InterviewFilter{CourseID: 1}, interviewAt)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scheduled)
	assert.Equal(t, "B.Tech CSE", res.CourseName)
	assert.Equal(t, []ScheduledRecord{{ID: 1, Name: "Student 1"}, {ID: 2, Name: "Student 2"}}, res.Students)
	assert.Empty(t, res.Failures)

	for _, id := range []uint64{1, 2} {
		require.NotNil(t, h.store.app(id).InterviewDate)
		assert.True(t, h.store.app(id).InterviewDate.Equal(interviewAt))
	}
	assert.Nil(t, h.store.app(5).InterviewDate)
	assert.Nil(t, h.store.app(7).InterviewDate)

	// everyone eligible now has an interview
	later := interviewAt.Add(24 * time.Hour)
	_, err = h.bulk.BulkScheduleInterview(context.Background(), repository.InterviewFilter{CourseID: 1}, later)
	require.ErrorIs(t, err, ErrNoEligibleCandidates)
	assert.True(t, h.store.app(1).InterviewDate.Equal(interviewAt))
}

func TestBulkScheduleInterviewByDepartment(t *testing.T) {
	h := newHarness()
	seedInterviewPool(h)

	res, err := h.bulk.BulkScheduleInterview(context.Background(), repository.InterviewFilter{Department: " Engineering "}, interviewAt)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scheduled)
	assert.Equal(t, "Engineering", res.Department)
	assert.Nil(t, h.store.app(4).InterviewDate)
}

func TestBulkScheduleInterviewErrors(t *testing.T) {
	h := newHarness()
	seedInterviewPool(h)
	ctx := context.Background()

	_, err := h.bulk.BulkScheduleInterview(ctx, repository.InterviewFilter{}, interviewAt)
	assert.ErrorIs(t, err, ErrFilterRequired)

	_, err = h.bulk.BulkScheduleInterview(ctx, repository.InterviewFilter{CourseID: 1}, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidInterviewDate)

	_, err = h.bulk.BulkScheduleInterview(ctx, repository.InterviewFilter{CourseID: 42}, interviewAt)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = h.bulk.BulkScheduleInterview(ctx, repository.InterviewFilter{Department: "Law"}, interviewAt)
	assert.ErrorIs(t, err, ErrNoEligibleCandidates)
}

func TestBulkApproveReportsPartialFailure(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 1})
	h.store.addApp(model.Application{ID: 2, IsDraft: true})
	h.store.addApp(model.Application{ID: 3, Status: model.AdminApproved})

	res, err := h.bulk.BulkApprove(context.Background(), []uint64{1, 2, 1, 3, 99, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.Equal(t, []uint64{1, 3}, res.IDs)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, uint64(2), res.Failures[0].ApplicationID)
	assert.Equal(t, uint64(99), res.Failures[1].ApplicationID)

	assert.Equal(t, model.AdminApproved, h.store.app(1).Status)
	assert.Equal(t, model.AdminPending, h.store.app(2).Status)
}

func TestBulkApproveEmpty(t *testing.T) {
	h := newHarness()
	_, err := h.bulk.BulkApprove(context.Background(), []uint64{0, 0})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestBulkRejectDocuments(t *testing.T) {
	h := newHarness()
	h.store.addApp(model.Application{ID: 1, Status: model.AdminApproved})
	h.store.addApp(model.Application{ID: 2, Status: model.AdminApproved})
	h.store.addApp(model.Application{ID: 3})

	res, err := h.bulk.BulkVerifyDocuments(context.Background(), []uint64{1, 2, 3}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, uint64(3), res.Failures[0].ApplicationID)

	for _, id := range []uint64{1, 2} {
		a := h.store.app(id)
		assert.Equal(t, model.SelectionRejected, a.SelectionStatus)
		assert.Equal(t, model.AdminRejected, a.Status)
	}
}

func TestBulkRunsToCompletionAfterCancel(t *testing.T) {
	h := newHarness()
	for id := uint64(1); id <= 5; id++ {
		h.store.addApp(model.Application{ID: id})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.bulk.BulkApprove(ctx, []uint64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Affected)
}
