package model

import (
	"fmt"
	"strings"
	"time"
)

// AdminStatus is the admin review outcome stored in applications.status.
type AdminStatus string

const (
	AdminPending  AdminStatus = "pending"
	AdminApproved AdminStatus = "approved"
	AdminRejected AdminStatus = "rejected"
)

// Verification is the officer's document verdict. The column
// applications.officer_verified is a nullable tinyint: NULL means
// unset, 1 verified, 0 rejected.
type Verification string

const (
	VerificationUnset    Verification = "unset"
	VerificationVerified Verification = "verified"
	VerificationRejected Verification = "rejected"
)

// SelectionStatus is the final officer decision. NULL in the
// database maps to SelectionNone.
type SelectionStatus string

const (
	SelectionNone       SelectionStatus = "none"
	SelectionSelected   SelectionStatus = "selected"
	SelectionWaitlisted SelectionStatus = "waitlisted"
	SelectionRejected   SelectionStatus = "rejected"
)

// ParseDecision accepts the three decisions an officer may record.
func ParseDecision(raw string) (SelectionStatus, error) {
	switch s := SelectionStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case SelectionSelected, SelectionWaitlisted, SelectionRejected:
		return s, nil
	default:
		return "", fmt.Errorf("invalid decision %q", raw)
	}
}

// PaymentStatus tracks the admission fee.
type PaymentStatus string

const (
	PaymentNone    PaymentStatus = "none"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Stage is the workflow position derived from an application's fields.
type Stage string

const (
	StageDraft              Stage = "draft"
	StageSubmitted          Stage = "submitted"
	StageAdminReviewed      Stage = "admin_reviewed"
	StageDocumentsVerified  Stage = "documents_verified"
	StageInterviewScheduled Stage = "interview_scheduled"
	StageSelectionDecided   Stage = "selection_decided"
	StagePaymentDone        Stage = "payment_done"
	StageLetterIssued       Stage = "letter_issued"
)

// Payment groups the fee columns of an application.
type Payment struct {
	Status      PaymentStatus `json:"status"`
	AmountPaise *int64        `json:"amount_paise,omitempty"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	OrderID     *string       `json:"order_id,omitempty"`
	PaymentID   *string       `json:"payment_id,omitempty"`
	Signature   *string       `json:"-"`
}

// UploadFields are the form fields of the documents sent with an
// application, in display order.
var UploadFields = []string{"photo", "signature", "marksheet10", "marksheet12", "entrance_card", "id_proof"}

// Uploads holds the storage keys of the documents sent with the
// application form. A draft may lack any of them.
type Uploads struct {
	PhotoPath        *string `json:"photo_path,omitempty"`
	SignaturePath    *string `json:"signature_path,omitempty"`
	Marksheet10Path  *string `json:"marksheet10_path,omitempty"`
	Marksheet12Path  *string `json:"marksheet12_path,omitempty"`
	EntranceCardPath *string `json:"entrance_card_path,omitempty"`
	IDProofPath      *string `json:"id_proof_path,omitempty"`
}

// Set stores key under the upload form field name. Unknown fields are
// reported as false.
func (u *Uploads) Set(field, key string) bool {
	var dst **string
	switch field {
	case "photo":
		dst = &u.PhotoPath
	case "signature":
		dst = &u.SignaturePath
	case "marksheet10":
		dst = &u.Marksheet10Path
	case "marksheet12":
		dst = &u.Marksheet12Path
	case "entrance_card":
		dst = &u.EntranceCardPath
	case "id_proof":
		dst = &u.IDProofPath
	default:
		return false
	}
	*dst = &key
	return true
}

// Application mirrors a row of the applications table. CourseName and
// Department are filled from the first-preference course when the
// query joins it.
type Application struct {
	ID                    uint64          `json:"id"`
	StudentName           string          `json:"student_name"`
	Email                 string          `json:"email"`
	Phone                 string          `json:"phone"`
	Department            string          `json:"department,omitempty"`
	IsDraft               bool            `json:"is_draft"`
	Status                AdminStatus     `json:"status"`
	OfficerVerified       Verification    `json:"officer_verified"`
	InterviewDate         *time.Time      `json:"interview_date,omitempty"`
	SelectionStatus       SelectionStatus `json:"selection_status"`
	Payment               Payment         `json:"payment"`
	CoursePreference1     *uint64         `json:"course_preference_1,omitempty"`
	CoursePreference2     *uint64         `json:"course_preference_2,omitempty"`
	CoursePreference3     *uint64         `json:"course_preference_3,omitempty"`
	CourseName            string          `json:"course_name,omitempty"`
	Uploads               Uploads         `json:"uploads"`
	AdmissionLetterPath   *string         `json:"admission_letter_path,omitempty"`
	AdmissionLetterSentAt *time.Time      `json:"admission_letter_sent_at,omitempty"`
	LastNotification      *string         `json:"last_notification,omitempty"`
	LastNotificationAt    *time.Time      `json:"last_notification_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// HasLetter reports whether an admission letter has been stored.
func (a *Application) HasLetter() bool {
	return a.AdmissionLetterPath != nil && *a.AdmissionLetterPath != ""
}

// Stage derives the furthest stage the application has reached.
func (a *Application) Stage() Stage {
	switch {
	case a.IsDraft:
		return StageDraft
	case a.HasLetter():
		return StageLetterIssued
	case a.SelectionStatus == SelectionSelected && a.Payment.Status == PaymentPaid:
		return StagePaymentDone
	case a.SelectionStatus != SelectionNone && a.SelectionStatus != "":
		return StageSelectionDecided
	case a.InterviewDate != nil:
		return StageInterviewScheduled
	case a.OfficerVerified == VerificationVerified || a.OfficerVerified == VerificationRejected:
		return StageDocumentsVerified
	case a.Status == AdminApproved || a.Status == AdminRejected:
		return StageAdminReviewed
	default:
		return StageSubmitted
	}
}

// IsTerminal reports whether no further workflow transition may
// change the application. A waitlisted application is not terminal.
func (a *Application) IsTerminal() bool {
	switch {
	case a.Status == AdminRejected:
		return true
	case a.OfficerVerified == VerificationRejected:
		return true
	case a.SelectionStatus == SelectionRejected:
		return true
	case a.Payment.Status == PaymentPaid && a.HasLetter():
		return true
	}
	return false
}

// FirstPreference returns the id of the course a selection consumes a
// seat from.
func (a *Application) FirstPreference() (uint64, bool) {
	if a.CoursePreference1 == nil || *a.CoursePreference1 == 0 {
		return 0, false
	}
	return *a.CoursePreference1, true
}

// Candidate is the projection returned by bulk candidate queries.
type Candidate struct {
	ID          uint64 `json:"id"`
	StudentName string `json:"student_name"`
	Email       string `json:"email,omitempty"`
}

// OfficerStats feeds the officer dashboard.
type OfficerStats struct {
	TotalEligible     int `json:"totalEligible"`
	VerifiedDocuments int `json:"verifiedDocuments"`
	SelectedStudents  int `json:"selectedStudents"`
	PendingReview     int `json:"pendingReview"`
}
