package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/college-admission/internal/logger"
	"github.com/iliyamo/college-admission/internal/metrics"
	"github.com/iliyamo/college-admission/internal/repository"
)

// ErrFilterRequired is returned when a bulk interview names neither a
// course nor a department.
var ErrFilterRequired = errors.New("either course_id or department is required")

// ItemFailure is one item of a batch that could not be applied.
type ItemFailure struct {
	ApplicationID uint64 `json:"application_id"`
	Error         string `json:"error"`
}

// BulkResult summarises a batch over explicit application ids.
type BulkResult struct {
	Affected int           `json:"affected"`
	IDs      []uint64      `json:"ids"`
	Failures []ItemFailure `json:"failures"`
}

// BulkInterviewResult summarises a bulk interview scheduling run.
type BulkInterviewResult struct {
	Scheduled     int               `json:"scheduled"`
	CourseID      uint64            `json:"course_id,omitempty"`
	CourseName    string            `json:"course_name,omitempty"`
	Department    string            `json:"department,omitempty"`
	InterviewDate time.Time         `json:"interview_date"`
	Students      []ScheduledRecord `json:"students"`
	Failures      []ItemFailure     `json:"failures"`
}

type ScheduledRecord struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// BulkEngine applies one workflow transition to many applications.
// Items are independent: a failing item is reported and the batch goes
// on. Once started, a batch runs to the end even if the caller goes
// away.
type BulkEngine struct {
	store    repository.Store
	workflow *Workflow
	log      *logrus.Entry
}

func NewBulkEngine(store repository.Store, workflow *Workflow) *BulkEngine {
	return &BulkEngine{store: store, workflow: workflow, log: logger.WithService("bulk")}
}

// BulkScheduleInterview schedules an interview at the given time for
// every eligible applicant of a course or a department.
func (b *BulkEngine) BulkScheduleInterview(ctx context.Context, f repository.InterviewFilter, at time.Time) (*BulkInterviewResult, error) {
	if at.IsZero() {
		return nil, ErrInvalidInterviewDate
	}
	f.Department = strings.TrimSpace(f.Department)
	if f.CourseID == 0 && f.Department == "" {
		return nil, ErrFilterRequired
	}

	res := &BulkInterviewResult{
		InterviewDate: at.UTC(),
		Department:    f.Department,
		Students:      []ScheduledRecord{},
		Failures:      []ItemFailure{},
	}
	if f.CourseID != 0 {
		c, err := b.store.GetCourse(ctx, f.CourseID)
		if err != nil {
			return nil, err
		}
		res.CourseID = c.ID
		res.CourseName = c.Name
	}

	candidates, err := b.store.InterviewCandidates(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoEligibleCandidates
	}

	ctx = context.WithoutCancel(ctx)
	for _, c := range candidates {
		if _, err := b.workflow.ScheduleInterview(ctx, c.ID, at); err != nil {
			res.Failures = append(res.Failures, ItemFailure{ApplicationID: c.ID, Error: err.Error()})
			metrics.RecordBulkItem("schedule_interview", outcome(err))
			continue
		}
		res.Students = append(res.Students, ScheduledRecord{ID: c.ID, Name: c.StudentName})
		metrics.RecordBulkItem("schedule_interview", "ok")
	}
	res.Scheduled = len(res.Students)

	b.log.WithFields(logrus.Fields{
		"course_id":  f.CourseID,
		"department": f.Department,
		"scheduled":  res.Scheduled,
		"failed":     len(res.Failures),
	}).Info("bulk interview scheduling finished")
	return res, nil
}

// BulkApprove approves every listed application.
func (b *BulkEngine) BulkApprove(ctx context.Context, ids []uint64) (*BulkResult, error) {
	return b.run(ctx, "approve", ids, func(ctx context.Context, id uint64) error {
		_, err := b.workflow.Approve(ctx, id)
		return err
	})
}

// BulkVerifyDocuments records the same document verdict for every
// listed application.
func (b *BulkEngine) BulkVerifyDocuments(ctx context.Context, ids []uint64, verified bool) (*BulkResult, error) {
	op := "verify_documents"
	if !verified {
		op = "reject_documents"
	}
	return b.run(ctx, op, ids, func(ctx context.Context, id uint64) error {
		_, err := b.workflow.VerifyDocuments(ctx, id, verified)
		return err
	})
}

func (b *BulkEngine) run(ctx context.Context, op string, ids []uint64, apply func(context.Context, uint64) error) (*BulkResult, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}

	ctx = context.WithoutCancel(ctx)
	res := &BulkResult{IDs: []uint64{}, Failures: []ItemFailure{}}
	for _, id := range ids {
		if err := apply(ctx, id); err != nil {
			res.Failures = append(res.Failures, ItemFailure{ApplicationID: id, Error: err.Error()})
			metrics.RecordBulkItem(op, outcome(err))
			continue
		}
		res.IDs = append(res.IDs, id)
		metrics.RecordBulkItem(op, "ok")
	}
	res.Affected = len(res.IDs)

	b.log.WithFields(logrus.Fields{
		"operation": op,
		"affected":  res.Affected,
		"failed":    len(res.Failures),
	}).Info("bulk operation finished")
	return res, nil
}

// dedupe drops zero ids and repeats, keeping first-seen order.
func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
