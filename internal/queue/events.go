// Package queue defines the admission messages exchanged over RabbitMQ
// together with their publisher and the log-writing consumer.
package queue

const (
	// EventsQueue carries workflow transitions for downstream consumers.
	EventsQueue = "admission.events"
	// NotificationsQueue carries messages addressed to applicants.
	NotificationsQueue = "admission.notifications"
)

// EventType names a committed workflow transition.
type EventType string

const (
	EventSubmitted          EventType = "application.submitted"
	EventApproved           EventType = "application.approved"
	EventRejected           EventType = "application.rejected"
	EventDocumentsVerified  EventType = "documents.verified"
	EventDocumentsRejected  EventType = "documents.rejected"
	EventDocumentRequested  EventType = "documents.requested"
	EventInterviewScheduled EventType = "interview.scheduled"
	EventSelected           EventType = "selection.selected"
	EventWaitlisted         EventType = "selection.waitlisted"
	EventSelectionRejected  EventType = "selection.rejected"
	EventPaymentConfirmed   EventType = "payment.confirmed"
	EventLetterIssued       EventType = "letter.issued"
)

// AdmissionEvent is published after a transition commits. It carries
// enough context for a consumer to log or notify without reading the
// database.
type AdmissionEvent struct {
	Type           EventType `json:"type"`
	ApplicationID  uint64    `json:"application_id"`
	StudentName    string    `json:"student_name,omitempty"`
	CourseID       uint64    `json:"course_id,omitempty"`
	CourseName     string    `json:"course_name,omitempty"`
	SeatsRemaining *int      `json:"seats_remaining,omitempty"`
	InterviewDate  string    `json:"interview_date,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	OccurredAt     string    `json:"occurred_at"`
}

// Notification is a free-text message from an officer to one applicant.
type Notification struct {
	ApplicationID uint64 `json:"application_id"`
	Message       string `json:"message"`
	SentAt        string `json:"sent_at"`
}
