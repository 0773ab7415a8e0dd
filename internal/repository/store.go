package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/college-admission/internal/model"
)

// Tx is the set of writes the admission workflow performs inside one
// transaction. Lock methods take row locks held until the transaction
// ends.
type Tx interface {
	LockApplication(ctx context.Context, id uint64) (*model.Application, error)
	SetAdminStatus(ctx context.Context, id uint64, status model.AdminStatus) error
	SetVerification(ctx context.Context, id uint64, v model.Verification) error
	RejectDocuments(ctx context.Context, id uint64) error
	SetInterviewDate(ctx context.Context, id uint64, at time.Time) error
	SetSelectionStatus(ctx context.Context, id uint64, s model.SelectionStatus) error
	SetPayment(ctx context.Context, id uint64, p model.Payment) error
	Finalize(ctx context.Context, id uint64) error

	LockCourse(ctx context.Context, id uint64) (*model.Course, error)
	// DecrementSeat reports false when no seat is left.
	DecrementSeat(ctx context.Context, courseID uint64) (bool, error)
	RecordAllocation(ctx context.Context, applicationID, courseID uint64, at time.Time) error
}

// Store is the persistence surface of the service layer.
type Store interface {
	// InTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise. Transient driver failures come back wrapped
	// in ErrTransient.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetApplication(ctx context.Context, id uint64) (*model.Application, error)
	InterviewCandidates(ctx context.Context, f InterviewFilter) ([]model.Candidate, error)
	LetterCandidates(ctx context.Context) ([]model.Application, error)
	SetAdmissionLetter(ctx context.Context, id uint64, path string, at time.Time) error
	SetNotification(ctx context.Context, ids []uint64, message string, at time.Time) ([]uint64, error)

	GetCourse(ctx context.Context, id uint64) (*model.Course, error)

	CreateDocument(ctx context.Context, applicationID uint64, reason string) (uint64, error)
	GetDocument(ctx context.Context, id uint64) (*model.AdditionalDocument, error)
	ListDocuments(ctx context.Context, applicationID uint64) ([]model.AdditionalDocument, error)
	MarkDocumentUploaded(ctx context.Context, id uint64, path string, at time.Time) error
}

// SQLStore implements Store on top of the MySQL repositories.
type SQLStore struct {
	db           *sql.DB
	Applications *ApplicationRepo
	Courses      *CourseRepo
	Allocations  *SeatAllocationRepo
	Documents    *DocumentRepo
}

// NewStore wires the repositories sharing db.
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:           db,
		Applications: NewApplicationRepo(db),
		Courses:      NewCourseRepo(db),
		Allocations:  NewSeatAllocationRepo(db),
		Documents:    NewDocumentRepo(db),
	}
}

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlTx{tx: tx, s: s}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

func (s *SQLStore) GetApplication(ctx context.Context, id uint64) (*model.Application, error) {
	a, err := s.Applications.GetByID(ctx, id)
	return a, classify(err)
}

func (s *SQLStore) InterviewCandidates(ctx context.Context, f InterviewFilter) ([]model.Candidate, error) {
	return s.Applications.InterviewCandidates(ctx, f)
}

func (s *SQLStore) LetterCandidates(ctx context.Context) ([]model.Application, error) {
	return s.Applications.LetterCandidates(ctx)
}

func (s *SQLStore) SetAdmissionLetter(ctx context.Context, id uint64, path string, at time.Time) error {
	return s.Applications.SetAdmissionLetter(ctx, id, path, at)
}

func (s *SQLStore) SetNotification(ctx context.Context, ids []uint64, message string, at time.Time) ([]uint64, error) {
	return s.Applications.SetNotification(ctx, ids, message, at)
}

func (s *SQLStore) GetCourse(ctx context.Context, id uint64) (*model.Course, error) {
	return s.Courses.GetByID(ctx, id)
}

func (s *SQLStore) CreateDocument(ctx context.Context, applicationID uint64, reason string) (uint64, error) {
	return s.Documents.Create(ctx, applicationID, reason)
}

func (s *SQLStore) GetDocument(ctx context.Context, id uint64) (*model.AdditionalDocument, error) {
	return s.Documents.GetByID(ctx, id)
}

func (s *SQLStore) ListDocuments(ctx context.Context, applicationID uint64) ([]model.AdditionalDocument, error) {
	return s.Documents.ListByApplication(ctx, applicationID)
}

func (s *SQLStore) MarkDocumentUploaded(ctx context.Context, id uint64, path string, at time.Time) error {
	return s.Documents.MarkUploaded(ctx, id, path, at)
}

// sqlTx binds the repositories' ...Tx methods to one *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
	s  *SQLStore
}

func (t *sqlTx) LockApplication(ctx context.Context, id uint64) (*model.Application, error) {
	return t.s.Applications.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) SetAdminStatus(ctx context.Context, id uint64, status model.AdminStatus) error {
	return t.s.Applications.UpdateStatusTx(ctx, t.tx, id, status)
}

func (t *sqlTx) SetVerification(ctx context.Context, id uint64, v model.Verification) error {
	return t.s.Applications.SetVerificationTx(ctx, t.tx, id, v)
}

func (t *sqlTx) RejectDocuments(ctx context.Context, id uint64) error {
	return t.s.Applications.RejectDocumentsTx(ctx, t.tx, id)
}

func (t *sqlTx) SetInterviewDate(ctx context.Context, id uint64, at time.Time) error {
	return t.s.Applications.SetInterviewDateTx(ctx, t.tx, id, at)
}

func (t *sqlTx) SetSelectionStatus(ctx context.Context, id uint64, st model.SelectionStatus) error {
	return t.s.Applications.SetSelectionStatusTx(ctx, t.tx, id, st)
}

func (t *sqlTx) SetPayment(ctx context.Context, id uint64, p model.Payment) error {
	return t.s.Applications.SetPaymentTx(ctx, t.tx, id, p)
}

func (t *sqlTx) Finalize(ctx context.Context, id uint64) error {
	return t.s.Applications.FinalizeTx(ctx, t.tx, id)
}

func (t *sqlTx) LockCourse(ctx context.Context, id uint64) (*model.Course, error) {
	return t.s.Courses.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) DecrementSeat(ctx context.Context, courseID uint64) (bool, error) {
	return t.s.Courses.DecrementSeatTx(ctx, t.tx, courseID)
}

func (t *sqlTx) RecordAllocation(ctx context.Context, applicationID, courseID uint64, at time.Time) error {
	return t.s.Allocations.CreateTx(ctx, t.tx, applicationID, courseID, at)
}
