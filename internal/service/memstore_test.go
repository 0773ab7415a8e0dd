package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/queue"
	"github.com/iliyamo/college-admission/internal/repository"
)

// memStore is an in-memory repository.Store. Transactions are
// serialized, which matches what row locks give two transactions that
// touch the same application or course.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	apps        map[uint64]*model.Application
	courses     map[uint64]*model.Course
	allocations map[uint64]model.SeatAllocation
	docs        map[uint64]*model.AdditionalDocument
	nextDocID   uint64

	// transientFailures makes the next n commits fail with a transient
	// error after fn ran; -1 fails every commit.
	transientFailures int
	commits           int
	rollbacks         int
}

func newMemStore() *memStore {
	return &memStore{
		apps:        map[uint64]*model.Application{},
		courses:     map[uint64]*model.Course{},
		allocations: map[uint64]model.SeatAllocation{},
		docs:        map[uint64]*model.AdditionalDocument{},
	}
}

var _ repository.Store = (*memStore)(nil)

func (s *memStore) addCourse(id uint64, name, dept string, seats int) *model.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &model.Course{ID: id, Name: name, Department: dept, TotalSeats: seats, AvailableSeats: seats, FeesPaise: 5000000}
	s.courses[id] = c
	return c
}

func (s *memStore) addApp(a model.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Status == "" {
		a.Status = model.AdminPending
	}
	if a.OfficerVerified == "" {
		a.OfficerVerified = model.VerificationUnset
	}
	if a.SelectionStatus == "" {
		a.SelectionStatus = model.SelectionNone
	}
	if a.Payment.Status == "" {
		a.Payment.Status = model.PaymentNone
	}
	if a.StudentName == "" {
		a.StudentName = fmt.Sprintf("Student %d", a.ID)
	}
	s.apps[a.ID] = &a
}

// ready adds an application that passed every step before the decision.
func (s *memStore) ready(id, courseID uint64) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s.addApp(model.Application{
		ID:                id,
		Status:            model.AdminApproved,
		OfficerVerified:   model.VerificationVerified,
		InterviewDate:     &at,
		CoursePreference1: &courseID,
	})
}

// app returns a copy of the stored application.
func (s *memStore) app(id uint64) *model.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *s.apps[id]
	return &a
}

func (s *memStore) course(id uint64) model.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.courses[id]
}

func (s *memStore) allocationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.allocations)
}

func (s *memStore) failCommits(n int) {
	s.mu.Lock()
	s.transientFailures = n
	s.mu.Unlock()
}

type snapshot struct {
	apps        map[uint64]model.Application
	courses     map[uint64]model.Course
	allocations map[uint64]model.SeatAllocation
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		apps:        make(map[uint64]model.Application, len(s.apps)),
		courses:     make(map[uint64]model.Course, len(s.courses)),
		allocations: make(map[uint64]model.SeatAllocation, len(s.allocations)),
	}
	for k, v := range s.apps {
		snap.apps[k] = *v
	}
	for k, v := range s.courses {
		snap.courses[k] = *v
	}
	for k, v := range s.allocations {
		snap.allocations[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = make(map[uint64]*model.Application, len(snap.apps))
	for k, v := range snap.apps {
		v := v
		s.apps[k] = &v
	}
	s.courses = make(map[uint64]*model.Course, len(snap.courses))
	for k, v := range snap.courses {
		v := v
		s.courses[k] = &v
	}
	s.allocations = snap.allocations
	s.rollbacks++
}

func (s *memStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}

	s.mu.Lock()
	fail := s.transientFailures != 0
	if s.transientFailures > 0 {
		s.transientFailures--
	}
	s.mu.Unlock()
	if fail {
		s.restore(snap)
		return fmt.Errorf("commit: %w", repository.ErrTransient)
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

func (s *memStore) GetApplication(ctx context.Context, id uint64) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, repository.ErrApplicationNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) InterviewCandidates(ctx context.Context, f repository.InterviewFilter) ([]model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Candidate{}
	for _, a := range s.apps {
		if a.IsDraft || a.Status != model.AdminApproved || a.OfficerVerified != model.VerificationVerified ||
			a.InterviewDate != nil || a.SelectionStatus != model.SelectionNone || a.CoursePreference1 == nil {
			continue
		}
		c, ok := s.courses[*a.CoursePreference1]
		if !ok {
			continue
		}
		if f.CourseID != 0 && c.ID != f.CourseID {
			continue
		}
		if f.CourseID == 0 && c.Department != f.Department {
			continue
		}
		out = append(out, model.Candidate{ID: a.ID, StudentName: a.StudentName, Email: a.Email})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) LetterCandidates(ctx context.Context) ([]model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Application{}
	for _, a := range s.apps {
		if !a.IsDraft && a.SelectionStatus == model.SelectionSelected && a.Payment.Status == model.PaymentPaid && !a.HasLetter() {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetAdmissionLetter(ctx context.Context, id uint64, path string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return repository.ErrApplicationNotFound
	}
	a.AdmissionLetterPath = &path
	a.AdmissionLetterSentAt = &at
	return nil
}

func (s *memStore) SetNotification(ctx context.Context, ids []uint64, message string, at time.Time) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint64
	for _, id := range ids {
		a, ok := s.apps[id]
		if !ok || a.IsDraft {
			continue
		}
		msg := message
		a.LastNotification = &msg
		a.LastNotificationAt = &at
		out = append(out, id)
	}
	return out, nil
}

func (s *memStore) GetCourse(ctx context.Context, id uint64) (*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, repository.ErrCourseNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) CreateDocument(ctx context.Context, applicationID uint64, reason string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDocID++
	s.docs[s.nextDocID] = &model.AdditionalDocument{
		ID:            s.nextDocID,
		ApplicationID: applicationID,
		Reason:        reason,
		Status:        model.DocumentRequested,
		CreatedAt:     time.Now().UTC(),
	}
	return s.nextDocID, nil
}

func (s *memStore) GetDocument(ctx context.Context, id uint64) (*model.AdditionalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) ListDocuments(ctx context.Context, applicationID uint64) ([]model.AdditionalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AdditionalDocument{}
	for _, d := range s.docs {
		if d.ApplicationID == applicationID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) MarkDocumentUploaded(ctx context.Context, id uint64, path string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return repository.ErrDocumentNotFound
	}
	d.Status = model.DocumentUploaded
	d.FilePath = &path
	d.UploadedAt = &at
	return nil
}

type memTx struct{ s *memStore }

func (t *memTx) update(id uint64, fn func(a *model.Application)) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	a, ok := t.s.apps[id]
	if !ok {
		return repository.ErrApplicationNotFound
	}
	fn(a)
	return nil
}

func (t *memTx) LockApplication(ctx context.Context, id uint64) (*model.Application, error) {
	return t.s.GetApplication(ctx, id)
}

func (t *memTx) SetAdminStatus(ctx context.Context, id uint64, status model.AdminStatus) error {
	return t.update(id, func(a *model.Application) { a.Status = status })
}

func (t *memTx) SetVerification(ctx context.Context, id uint64, v model.Verification) error {
	return t.update(id, func(a *model.Application) { a.OfficerVerified = v })
}

func (t *memTx) RejectDocuments(ctx context.Context, id uint64) error {
	return t.update(id, func(a *model.Application) {
		a.OfficerVerified = model.VerificationRejected
		a.SelectionStatus = model.SelectionRejected
		a.Status = model.AdminRejected
	})
}

func (t *memTx) SetInterviewDate(ctx context.Context, id uint64, at time.Time) error {
	return t.update(id, func(a *model.Application) { a.InterviewDate = &at })
}

func (t *memTx) SetSelectionStatus(ctx context.Context, id uint64, st model.SelectionStatus) error {
	return t.update(id, func(a *model.Application) { a.SelectionStatus = st })
}

func (t *memTx) SetPayment(ctx context.Context, id uint64, p model.Payment) error {
	return t.update(id, func(a *model.Application) { a.Payment = p })
}

func (t *memTx) Finalize(ctx context.Context, id uint64) error {
	return t.update(id, func(a *model.Application) { a.IsDraft = false })
}

func (t *memTx) LockCourse(ctx context.Context, id uint64) (*model.Course, error) {
	return t.s.GetCourse(ctx, id)
}

func (t *memTx) DecrementSeat(ctx context.Context, courseID uint64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c, ok := t.s.courses[courseID]
	if !ok || c.AvailableSeats <= 0 {
		return false, nil
	}
	c.AvailableSeats--
	return true, nil
}

func (t *memTx) RecordAllocation(ctx context.Context, applicationID, courseID uint64, at time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.allocations[applicationID]; ok {
		return repository.ErrAlreadyAllocated
	}
	t.s.allocations[applicationID] = model.SeatAllocation{ApplicationID: applicationID, CourseID: courseID, AllocatedAt: at}
	return nil
}

// recorder collects published events and notifications.
type recorder struct {
	mu            sync.Mutex
	events        []queue.AdmissionEvent
	notifications []queue.Notification
	err           error
}

func (r *recorder) PublishEvent(_ context.Context, ev queue.AdmissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) PublishNotification(_ context.Context, n queue.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.notifications = append(r.notifications, n)
	return nil
}

func (r *recorder) types() []queue.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// harness wires the services over one memStore.
type harness struct {
	store    *memStore
	events   *recorder
	ledger   *SeatLedger
	coord    *Coordinator
	workflow *Workflow
	bulk     *BulkEngine
}

func newHarness() *harness {
	store := newMemStore()
	events := &recorder{}
	ledger := NewSeatLedger(store)
	coord := NewCoordinator(store, ledger, events, DefaultMaxRetries)
	wf := NewWorkflow(store, coord, events, DefaultMaxRetries)
	return &harness{
		store:    store,
		events:   events,
		ledger:   ledger,
		coord:    coord,
		workflow: wf,
		bulk:     NewBulkEngine(store, wf),
	}
}
