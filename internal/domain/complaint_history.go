package domain

import "time"

// ComplaintChangeType captures what changed in a history entry.
type ComplaintChangeType string

const (
	ChangeTypeCreated    ComplaintChangeType = "CREATED"
	ChangeTypeStatus     ComplaintChangeType = "STATUS_CHANGE"
	ChangeTypeDepartment ComplaintChangeType = "DEPARTMENT_CHANGE"
	ChangeTypeMessage    ComplaintChangeType = "MESSAGE_CHANGE"
	ChangeTypeCompletion ComplaintChangeType = "COMPLETION"
	ChangeTypeFeedback   ComplaintChangeType = "FEEDBACK"
)

// ComplaintHistory is an immutable audit trail entry.
type ComplaintHistory struct {
	ID            int64
	ComplainID    int64
	ChangedByType SubjectType
	ChangedByID   *int64
	ChangeType    ComplaintChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
