package domain

import (
	"strings"
	"time"
)

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	StatusPending    ComplaintStatus = "PENDING"
	StatusInProgress ComplaintStatus = "IN_PROGRESS"
	StatusResolved   ComplaintStatus = "RESOLVED"
)

// ParseStatus accepts both the enum form and the legacy display labels
// ("Pending", "In Progress", "in_progress").
func ParseStatus(raw string) (ComplaintStatus, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	switch ComplaintStatus(normalized) {
	case StatusPending, StatusInProgress, StatusResolved:
		return ComplaintStatus(normalized), true
	}
	return "", false
}

// Label renders the status for display: underscores become spaces and each word is
// title-cased, so IN_PROGRESS becomes "In Progress".
func (s ComplaintStatus) Label() string {
	return StatusLabel(string(s))
}

// StatusLabel is the display rule applied to any status string.
func StatusLabel(raw string) string {
	words := strings.Fields(strings.ReplaceAll(raw, "_", " "))
	for i, w := range words {
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// Complaint is the aggregate for citizen-filed civic issues.
type Complaint struct {
	ComplainID      int64
	UserID          int64
	FirstName       string
	UserEmail       string
	Title           string
	Category        string
	Description     string
	Location        string
	City            string
	Status          ComplaintStatus
	Message         *string
	BeforeImagePath *string
	AfterImagePath  *string
	Department      *DepartmentRef
	Workers         []Worker
	DeadlineAt      *time.Time
	ResolvedAt      *time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Open reports whether the complaint still needs work.
func (c *Complaint) Open() bool {
	return c.Status == StatusPending || c.Status == StatusInProgress
}

// Overdue reports whether an in-progress complaint has passed its deadline.
func (c *Complaint) Overdue(now time.Time) bool {
	return c.Status == StatusInProgress && c.DeadlineAt != nil && now.After(*c.DeadlineAt)
}

// AssignedTo reports whether the complaint is currently held by the department.
func (c *Complaint) AssignedTo(departmentID int64) bool {
	return c.Department != nil && c.Department.ID == departmentID
}
