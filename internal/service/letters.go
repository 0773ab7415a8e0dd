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

// LetterGenerator renders an admission letter and returns where it was
// stored. course is nil when the first-preference course is gone.
type LetterGenerator interface {
	Generate(ctx context.Context, a *model.Application, course *model.Course) (string, error)
}

// IssuedLetter is one letter written by a batch.
type IssuedLetter struct {
	ApplicationID uint64 `json:"application_id"`
	StudentName   string `json:"student_name"`
	Path          string `json:"path"`
}

// LetterBatchResult summarises an IssueLetters run.
type LetterBatchResult struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Errors     []ItemFailure  `json:"errors"`
	Issued     []IssuedLetter `json:"issued"`
}

// LetterService issues admission letters to selected applicants who have
// paid. A letter failure never touches the selection or the payment.
type LetterService struct {
	store     repository.Store
	generator LetterGenerator
	events    EventPublisher
	log       *logrus.Entry
	now       func() time.Time
}

func NewLetterService(store repository.Store, generator LetterGenerator, events EventPublisher) *LetterService {
	if generator == nil {
		panic("service: NewLetterService requires a generator")
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &LetterService{
		store:     store,
		generator: generator,
		events:    events,
		log:       logger.WithService("letters"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// IssueLetters writes a letter for every selected, paid applicant that
// has none yet.
func (s *LetterService) IssueLetters(ctx context.Context) (*LetterBatchResult, error) {
	candidates, err := s.store.LetterCandidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoEligibleCandidates
	}

	ctx = context.WithoutCancel(ctx)
	res := &LetterBatchResult{Total: len(candidates), Errors: []ItemFailure{}, Issued: []IssuedLetter{}}
	for i := range candidates {
		a := &candidates[i]
		path, err := s.issue(ctx, a)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ItemFailure{ApplicationID: a.ID, Error: err.Error()})
			continue
		}
		res.Successful++
		res.Issued = append(res.Issued, IssuedLetter{ApplicationID: a.ID, StudentName: a.StudentName, Path: path})
	}

	s.log.WithFields(logrus.Fields{
		"total":      res.Total,
		"successful": res.Successful,
		"failed":     res.Failed,
	}).Info("admission letters issued")
	return res, nil
}

// IssueLetter writes the letter of one application. An application that
// already has a letter returns the stored path.
func (s *LetterService) IssueLetter(ctx context.Context, id uint64) (*IssuedLetter, error) {
	a, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsDraft {
		return nil, draftError("issue letter for", id)
	}
	if a.SelectionStatus != model.SelectionSelected {
		return nil, ErrNotSelected
	}
	if a.Payment.Status != model.PaymentPaid {
		return nil, ErrPaymentRequired
	}
	if a.HasLetter() {
		return &IssuedLetter{ApplicationID: a.ID, StudentName: a.StudentName, Path: *a.AdmissionLetterPath}, nil
	}
	path, err := s.issue(ctx, a)
	if err != nil {
		return nil, err
	}
	return &IssuedLetter{ApplicationID: a.ID, StudentName: a.StudentName, Path: path}, nil
}

// RunScheduled is the cron entry point. An empty candidate list is not
// an error there.
func (s *LetterService) RunScheduled(ctx context.Context) {
	if _, err := s.IssueLetters(ctx); err != nil && !errors.Is(err, ErrNoEligibleCandidates) {
		s.log.WithError(err).Error("scheduled letter run failed")
	}
}

func (s *LetterService) issue(ctx context.Context, a *model.Application) (string, error) {
	var course *model.Course
	if courseID, ok := a.FirstPreference(); ok {
		c, err := s.store.GetCourse(ctx, courseID)
		switch {
		case err == nil:
			course = c
		case !errors.Is(err, repository.ErrCourseNotFound):
			metrics.RecordLetter("failed")
			return "", err
		}
	}

	entry := s.log.WithField("application_id", a.ID)
	path, err := s.generator.Generate(ctx, a, course)
	if err != nil {
		metrics.RecordLetter("failed")
		entry.WithError(err).Warn("letter generation failed")
		return "", fmt.Errorf("generate letter: %w", err)
	}
	if err := s.store.SetAdmissionLetter(ctx, a.ID, path, s.now()); err != nil {
		metrics.RecordLetter("failed")
		entry.WithError(err).Warn("letter path not stored")
		return "", err
	}
	metrics.RecordLetter("issued")
	entry.WithField("path", path).Info("admission letter issued")

	ev := queue.AdmissionEvent{Type: queue.EventLetterIssued, ApplicationID: a.ID, StudentName: a.StudentName, Detail: path}
	if course != nil {
		ev.CourseID = course.ID
		ev.CourseName = course.Name
	}
	emit(ctx, s.events, s.log, ev)
	return path, nil
}
