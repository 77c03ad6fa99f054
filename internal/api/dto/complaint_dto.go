package dto

import (
	"time"

	"github.com/civicpulse/hub/internal/domain"
)

// ComplaintResponse is the wire form of a complaint shared by every list and detail
// endpoint.
type ComplaintResponse struct {
	ComplainID      int64            `json:"complainId"`
	UserID          int64            `json:"userId"`
	FirstName       string           `json:"firstName"`
	UserEmail       string           `json:"userEmail"`
	Title           string           `json:"title"`
	Category        string           `json:"category"`
	Description     string           `json:"description"`
	Location        string           `json:"location"`
	City            string           `json:"city"`
	Status          string           `json:"status"`
	Message         *string          `json:"message"`
	BeforeImagePath *string          `json:"beforeImagePath"`
	AfterImagePath  *string          `json:"afterImagePath"`
	Department      *DepartmentRef   `json:"department"`
	Workers         []WorkerResponse `json:"workers"`
	Deadline        *time.Time       `json:"deadline"`
	ResolvedAt      *time.Time       `json:"resolvedAt"`
	Version         int64            `json:"version"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// AssignDepartmentRequest is the write-only assignment command.
type AssignDepartmentRequest struct {
	DepartmentID int64 `json:"departmentId"`
	TimelineDays int   `json:"timelineDays"`
}

// StatusUpdateRequest edits the department-to-user note.
type StatusUpdateRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RaiseComplaintResponse acknowledges a filed complaint.
type RaiseComplaintResponse struct {
	Message    string `json:"message"`
	ComplainID int64  `json:"complainId"`
}

// FeedbackRequest is the citizen rating payload.
type FeedbackRequest struct {
	Rating          int    `json:"rating"`
	FeedbackMessage string `json:"feedbackMessage"`
}

// FeedbackResponse is the stored rating.
type FeedbackResponse struct {
	ID              int64     `json:"id"`
	ComplainID      int64     `json:"complainId"`
	Rating          int       `json:"rating"`
	FeedbackMessage string    `json:"feedbackMessage"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RatingResponse carries only the star count; 0 means no feedback.
type RatingResponse struct {
	Rating int `json:"rating"`
}

// DeadlineResponse carries the derived absolute deadline.
type DeadlineResponse struct {
	Deadline time.Time `json:"deadline"`
}

// DepartmentCountResponse is one bar of the per-department chart.
type DepartmentCountResponse struct {
	DepartmentName string `json:"departmentName"`
	ComplaintCount int64  `json:"complaintCount"`
}

// CityCountResponse is one slice of the per-city chart.
type CityCountResponse struct {
	City           string `json:"city"`
	ComplaintCount int64  `json:"complaintCount"`
}

// HistoryEntryResponse is one audit trail record.
type HistoryEntryResponse struct {
	ID         int64          `json:"id"`
	ActorType  string         `json:"actorType"`
	ActorID    *int64         `json:"actorId"`
	ChangeType string         `json:"changeType"`
	OldValue   map[string]any `json:"oldValue"`
	NewValue   map[string]any `json:"newValue"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// FromComplaint maps the aggregate to its wire form.
func FromComplaint(c domain.Complaint) ComplaintResponse {
	resp := ComplaintResponse{
		ComplainID:      c.ComplainID,
		UserID:          c.UserID,
		FirstName:       c.FirstName,
		UserEmail:       c.UserEmail,
		Title:           c.Title,
		Category:        c.Category,
		Description:     c.Description,
		Location:        c.Location,
		City:            c.City,
		Status:          string(c.Status),
		Message:         c.Message,
		BeforeImagePath: c.BeforeImagePath,
		AfterImagePath:  c.AfterImagePath,
		Workers:         FromWorkers(c.Workers),
		Deadline:        c.DeadlineAt,
		ResolvedAt:      c.ResolvedAt,
		Version:         c.Version,
		CreatedAt:       c.CreatedAt,
	}
	if c.Department != nil {
		resp.Department = &DepartmentRef{ID: c.Department.ID, Name: c.Department.Name}
	}
	return resp
}

// FromComplaints maps a list preserving order.
func FromComplaints(list []domain.Complaint) []ComplaintResponse {
	out := make([]ComplaintResponse, 0, len(list))
	for _, c := range list {
		out = append(out, FromComplaint(c))
	}
	return out
}

// Domain converts the wire form back into the aggregate. Unknown status strings are
// kept verbatim so that display code can still label them.
func (r ComplaintResponse) Domain() domain.Complaint {
	status := domain.ComplaintStatus(r.Status)
	if parsed, ok := domain.ParseStatus(r.Status); ok {
		status = parsed
	}
	c := domain.Complaint{
		ComplainID:      r.ComplainID,
		UserID:          r.UserID,
		FirstName:       r.FirstName,
		UserEmail:       r.UserEmail,
		Title:           r.Title,
		Category:        r.Category,
		Description:     r.Description,
		Location:        r.Location,
		City:            r.City,
		Status:          status,
		Message:         r.Message,
		BeforeImagePath: r.BeforeImagePath,
		AfterImagePath:  r.AfterImagePath,
		DeadlineAt:      r.Deadline,
		ResolvedAt:      r.ResolvedAt,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
	}
	if r.Department != nil {
		c.Department = &domain.DepartmentRef{ID: r.Department.ID, Name: r.Department.Name}
	}
	for _, w := range r.Workers {
		c.Workers = append(c.Workers, w.Domain())
	}
	return c
}

// FromFeedback maps a stored rating.
func FromFeedback(fb domain.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:              fb.ID,
		ComplainID:      fb.ComplainID,
		Rating:          fb.Rating,
		FeedbackMessage: fb.FeedbackMessage,
		CreatedAt:       fb.CreatedAt,
	}
}

// Domain converts the wire form back into the feedback record.
func (r FeedbackResponse) Domain() domain.Feedback {
	return domain.Feedback{
		ID:              r.ID,
		ComplainID:      r.ComplainID,
		Rating:          r.Rating,
		FeedbackMessage: r.FeedbackMessage,
		CreatedAt:       r.CreatedAt,
	}
}

// FromHistory maps the audit trail.
func FromHistory(entries []domain.ComplaintHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryEntryResponse{
			ID:         h.ID,
			ActorType:  string(h.ChangedByType),
			ActorID:    h.ChangedByID,
			ChangeType: string(h.ChangeType),
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out
}
