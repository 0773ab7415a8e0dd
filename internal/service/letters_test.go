package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/college-admission/internal/model"
)

type fakeGenerator struct {
	fail  map[uint64]bool
	calls []uint64
}

func (g *fakeGenerator) Generate(_ context.Context, a *model.Application, c *model.Course) (string, error) {
	g.calls = append(g.calls, a.ID)
	if g.fail[a.ID] {
		return "", errors.New("disk full")
	}
	name := "unknown"
	if c != nil {
		name = c.Name
	}
	return fmt.Sprintf("letters/%d-%s.txt", a.ID, name), nil
}

func paidApp(id, course uint64) model.Application {
	return model.Application{
		ID:                id,
		Status:            model.AdminApproved,
		OfficerVerified:   model.VerificationVerified,
		InterviewDate:     &interviewAt,
		SelectionStatus:   model.SelectionSelected,
		Payment:           model.Payment{Status: model.PaymentPaid},
		CoursePreference1: &course,
	}
}

func TestIssueLettersCollectsFailures(t *testing.T) {
	h := newHarness()
	h.store.addCourse(1, "BCA", "Computer Applications", 40)
	h.store.addApp(paidApp(1, 1))
	h.store.addApp(paidApp(2, 1))
	h.store.addApp(paidApp(3, 7))
	unpaid := paidApp(4, 1)
	unpaid.Payment.Status = model.PaymentPending
	h.store.addApp(unpaid)

	gen := &fakeGenerator{fail: map[uint64]bool{2: true}}
	svc := NewLetterService(h.store, gen, h.events)

	res, err := svc.IssueLetters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, uint64(2), res.Errors[0].ApplicationID)

	assert.Equal(t, "letters/1-BCA.txt", *h.store.app(1).AdmissionLetterPath)
	assert.Equal(t, "letters/3-unknown.txt", *h.store.app(3).AdmissionLetterPath)
	failed := h.store.app(2)
	assert.Nil(t, failed.AdmissionLetterPath)
	assert.Equal(t, model.SelectionSelected, failed.SelectionStatus)
	assert.Equal(t, model.PaymentPaid, failed.Payment.Status)

	// the retry only picks up the failed one
	gen.fail = nil
	res, err = svc.IssueLetters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, model.StageLetterIssued, h.store.app(2).Stage())
}

func TestIssueLettersWithoutCandidates(t *testing.T) {
	h := newHarness()
	svc := NewLetterService(h.store, &fakeGenerator{}, h.events)

	_, err := svc.IssueLetters(context.Background())
	assert.ErrorIs(t, err, ErrNoEligibleCandidates)
	assert.NotPanics(t, func() { svc.RunScheduled(context.Background()) })
}

func TestIssueLetterEligibility(t *testing.T) {
	h := newHarness()
	h.store.addCourse(1, "BCA", "Computer Applications", 40)
	unpaid := paidApp(1, 1)
	unpaid.Payment.Status = model.PaymentNone
	h.store.addApp(unpaid)
	h.store.ready(2, 1)
	issued := paidApp(3, 1)
	path := "letters/old.txt"
	issued.AdmissionLetterPath = &path
	h.store.addApp(issued)

	gen := &fakeGenerator{}
	svc := NewLetterService(h.store, gen, h.events)
	ctx := context.Background()

	_, err := svc.IssueLetter(ctx, 1)
	assert.ErrorIs(t, err, ErrPaymentRequired)
	_, err = svc.IssueLetter(ctx, 2)
	assert.ErrorIs(t, err, ErrNotSelected)

	letter, err := svc.IssueLetter(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, path, letter.Path)
	assert.Empty(t, gen.calls)
}
