package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMessageLocked     = errors.New("message cannot change after resolution")
	ErrNoWorkers         = errors.New("at least one worker is required")
	ErrNoImage           = errors.New("completion image is required")
	ErrFeedbackExists    = errors.New("feedback already submitted")
	ErrFeedbackTooEarly  = errors.New("feedback is accepted only for resolved complaints")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrInvalidTimeline   = errors.New("timelineDays must be positive")
)

var allowedTransitions = map[ComplaintStatus][]ComplaintStatus{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusResolved},
	StatusResolved:   {StatusInProgress},
}

// IsValidTransition reports whether the lifecycle has an edge from current to next.
// The RESOLVED -> IN_PROGRESS edge is additionally gated by CanAssign.
func IsValidTransition(current, next ComplaintStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// NeedsReassignment reports whether the feedback is poor enough to offer Re-Assign.
func NeedsReassignment(fb *Feedback) bool {
	return fb.Given() && fb.Rating <= ReassignRatingThreshold
}

// CanAssign reports whether assign-department is reachable: from PENDING, or from
// RESOLVED when the active feedback rating is at most the reassignment threshold.
func CanAssign(c *Complaint, fb *Feedback) bool {
	if c == nil {
		return false
	}
	switch c.Status {
	case StatusPending:
		return true
	case StatusResolved:
		return NeedsReassignment(fb)
	default:
		return false
	}
}

// CheckAssign is CanAssign with a reason, plus timeline validation.
func CheckAssign(c *Complaint, fb *Feedback, timelineDays int) error {
	if timelineDays <= 0 {
		return ErrInvalidTimeline
	}
	if c == nil {
		return fmt.Errorf("%w: no complaint", ErrInvalidTransition)
	}
	if !CanAssign(c, fb) {
		if c.Status == StatusResolved {
			return fmt.Errorf("%w: resolved complaint requires a rating of %d or lower", ErrInvalidTransition, ReassignRatingThreshold)
		}
		return fmt.Errorf("%w: cannot assign a complaint in %s", ErrInvalidTransition, c.Status)
	}
	return nil
}

// Deadline derives the absolute deadline for an assignment made at now.
func Deadline(now time.Time, timelineDays int) time.Time {
	return now.Add(time.Duration(timelineDays) * 24 * time.Hour)
}

// CanUpdateMessage reports whether the department-to-user note may still change.
func CanUpdateMessage(c *Complaint) bool {
	return c != nil && c.Status != StatusResolved
}

// ValidateCompletion checks the completion preconditions that do not depend on the
// complaint: at least one worker and a non-empty image.
func ValidateCompletion(workerIDs []int64, imageSize int64) error {
	if len(workerIDs) == 0 {
		return ErrNoWorkers
	}
	if imageSize <= 0 {
		return ErrNoImage
	}
	return nil
}

// CheckComplete validates a completion attempt against the complaint state.
func CheckComplete(c *Complaint, workerIDs []int64, imageSize int64) error {
	if err := ValidateCompletion(workerIDs, imageSize); err != nil {
		return err
	}
	if !IsValidTransition(c.Status, StatusResolved) {
		return fmt.Errorf("%w: cannot complete a complaint in %s", ErrInvalidTransition, c.Status)
	}
	return nil
}

// CheckFeedback validates a feedback submission against the complaint and any
// active feedback it already has.
func CheckFeedback(c *Complaint, existing *Feedback, rating int) error {
	if !ValidRating(rating) {
		return ErrInvalidRating
	}
	if c.Status != StatusResolved {
		return ErrFeedbackTooEarly
	}
	if existing.Given() {
		return ErrFeedbackExists
	}
	return nil
}

// CompletionTime renders how the resolution time compares with the deadline day.
// The deadline counts from the start of its day; partial hours are truncated.
func CompletionTime(deadline, resolvedAt *time.Time) string {
	if deadline == nil || resolvedAt == nil {
		return "Completion time unavailable"
	}
	y, m, d := deadline.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, deadline.Location())
	diff := resolvedAt.Sub(dayStart)
	hours := int64(diff / time.Hour)
	if hours < 0 {
		hours = -hours
	}
	days, rem := hours/24, hours%24
	switch {
	case diff == 0:
		return "on the exact deadline day"
	case diff < 0:
		return fmt.Sprintf("%dd %dh before deadline", days, rem)
	default:
		return fmt.Sprintf("%dd %dh after deadline", days, rem)
	}
}

// StatusFilter selects complaints for list views.
type StatusFilter string

const (
	FilterAll        StatusFilter = "ALL"
	FilterOpen       StatusFilter = "Open"
	FilterPending    StatusFilter = StatusFilter(StatusPending)
	FilterInProgress StatusFilter = StatusFilter(StatusInProgress)
	FilterResolved   StatusFilter = StatusFilter(StatusResolved)
)

// Match reports whether a complaint in status s passes the filter.
func (f StatusFilter) Match(s ComplaintStatus) bool {
	switch f {
	case FilterAll, "":
		return true
	case FilterOpen:
		return s == StatusPending || s == StatusInProgress
	default:
		return ComplaintStatus(f) == s
	}
}

// FilterComplaints keeps the complaints matching f in input order.
func FilterComplaints(list []Complaint, f StatusFilter) []Complaint {
	out := make([]Complaint, 0, len(list))
	for _, c := range list {
		if f.Match(c.Status) {
			out = append(out, c)
		}
	}
	return out
}

// TransitionError describes a rejected move between two statuses.
func TransitionError(from, to ComplaintStatus) error {
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}
