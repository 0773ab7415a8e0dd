package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/college-admission/internal/repository"
)

var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrSeatsExhausted       = errors.New("no seats available")
	ErrNoCourseAssigned     = errors.New("no course assigned")
	ErrNoEligibleCandidates = errors.New("no eligible candidates")
	ErrRetryable            = errors.New("temporarily unavailable, retry")
	ErrInvalidDecision      = errors.New("decision must be selected, waitlisted or rejected")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrReasonRequired       = errors.New("reason is required")
	ErrDraftApplication     = errors.New("application is still a draft")
	ErrEmptyBatch           = errors.New("no application ids given")
	ErrInvalidInterviewDate = errors.New("interview date is required")
	ErrNotSelected          = errors.New("application is not selected")
	ErrPaymentRequired      = errors.New("payment not completed")

	// Lookup failures are the repository sentinels so callers need only
	// one set of values to branch on.
	ErrApplicationNotFound = repository.ErrApplicationNotFound
	ErrCourseNotFound      = repository.ErrCourseNotFound
	ErrDocumentNotFound    = repository.ErrDocumentNotFound
)

// TransitionError reports an operation that the application's current
// state does not allow.
type TransitionError struct {
	Op            string
	ApplicationID uint64
	Reason        string

	cause error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s application %d: %s", e.Op, e.ApplicationID, e.Reason)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func (e *TransitionError) Unwrap() error { return e.cause }

// Step names the first unmet requirement of a transition.
type Step string

const (
	StepAdminApproval      Step = "admin_approval"
	StepDocumentsVerified  Step = "documents_verified"
	StepInterviewScheduled Step = "interview_scheduled"
)

func (s Step) message() string {
	switch s {
	case StepAdminApproval:
		return "must be approved by admin first"
	case StepDocumentsVerified:
		return "documents must be verified first"
	case StepInterviewScheduled:
		return "interview must be scheduled first"
	}
	return string(s)
}

// PreconditionError reports the first workflow step that has not been
// completed yet.
type PreconditionError struct {
	ApplicationID uint64
	Step          Step
}

func (e *PreconditionError) Error() string { return e.Step.message() }

func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionFailed }

// SeatsExhaustedError is returned when the first-preference course has
// no seat left.
type SeatsExhaustedError struct {
	CourseID   uint64
	CourseName string
}

func (e *SeatsExhaustedError) Error() string {
	return "No seats available for " + e.CourseName
}

func (e *SeatsExhaustedError) Is(target error) bool { return target == ErrSeatsExhausted }

// RetryableError wraps a transient datastore failure that outlived the
// retry budget.
type RetryableError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

func (e *RetryableError) Is(target error) bool { return target == ErrRetryable }

func invalidTransition(op string, id uint64, reason string) error {
	return &TransitionError{Op: op, ApplicationID: id, Reason: reason}
}

func precondition(id uint64, step Step) error {
	return &PreconditionError{ApplicationID: id, Step: step}
}
