package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5

	// ReassignRatingThreshold is the highest rating that still offers reassignment.
	ReassignRatingThreshold = 3
)

// Feedback is the citizen's rating of a resolved complaint.
// ArchivedAt is set when the complaint is reassigned; archived feedback is kept for audit
// but no longer counts as the complaint's feedback.
type Feedback struct {
	ID              int64
	ComplainID      int64
	UserID          int64
	Rating          int
	FeedbackMessage string
	CreatedAt       time.Time
	ArchivedAt      *time.Time
}

// Given reports whether the feedback carries a real rating.
func (f *Feedback) Given() bool {
	return f != nil && f.Rating != 0 && f.ArchivedAt == nil
}

// ValidRating reports whether r is within the accepted star range.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
