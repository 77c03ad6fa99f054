package events

import (
	"time"

	"github.com/civicpulse/hub/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated        EventType = "complaint_created"
	EventComplaintAssigned       EventType = "complaint_assigned"
	EventComplaintReassigned     EventType = "complaint_reassigned"
	EventComplaintMessageUpdated EventType = "complaint_message_updated"
	EventComplaintResolved       EventType = "complaint_resolved"
	EventFeedbackSubmitted       EventType = "feedback_submitted"
	EventComplaintOverdue        EventType = "complaint_overdue"
)

// AllEventTypes lists every type, in the order subscribers usually register.
var AllEventTypes = []EventType{
	EventComplaintCreated,
	EventComplaintAssigned,
	EventComplaintReassigned,
	EventComplaintMessageUpdated,
	EventComplaintResolved,
	EventFeedbackSubmitted,
	EventComplaintOverdue,
}

// Actor identifies who caused an event. ID is nil for system actors such as the
// deadline sweep.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   *int64             `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ComplaintID int64     `json:"complaint_id"`
	Actor       Actor     `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

type ComplaintCreatedPayload struct {
	UserID   int64  `json:"user_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	City     string `json:"city,omitempty"`
}

// ComplaintAssignedPayload is used for both first assignment and reassignment.
type ComplaintAssignedPayload struct {
	DepartmentID       int64                  `json:"department_id"`
	DepartmentName     string                 `json:"department_name"`
	PreviousDepartment *int64                 `json:"previous_department_id,omitempty"`
	OldStatus          domain.ComplaintStatus `json:"old_status"`
	DeadlineAt         time.Time              `json:"deadline_at"`
}

type ComplaintMessageUpdatedPayload struct {
	Message string `json:"message"`
}

type ComplaintResolvedPayload struct {
	DepartmentID   int64   `json:"department_id"`
	WorkerIDs      []int64 `json:"worker_ids"`
	AfterImagePath string  `json:"after_image_path"`
	CompletionTime string  `json:"completion_time"`
}

type FeedbackSubmittedPayload struct {
	Rating           int  `json:"rating"`
	NeedsReassigning bool `json:"needs_reassigning"`
}

type ComplaintOverduePayload struct {
	DepartmentID int64     `json:"department_id"`
	DeadlineAt   time.Time `json:"deadline_at"`
}
