package service

import (
	"context"
	"errors"
	"strings"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/repository"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// FeedbackService handles citizen ratings of resolved complaints.
type FeedbackService struct {
	complaintCore
	feedback repository.FeedbackRepository
}

// FeedbackDependencies bundles repositories.
type FeedbackDependencies struct {
	CoreDependencies
	FeedbackRepo repository.FeedbackRepository
}

// NewFeedbackService constructs the service.
func NewFeedbackService(deps FeedbackDependencies) *FeedbackService {
	return &FeedbackService{
		complaintCore: newComplaintCore(deps.CoreDependencies),
		feedback:      deps.FeedbackRepo,
	}
}

// Submit records the owner's one rating for a RESOLVED complaint.
func (s *FeedbackService) Submit(ctx context.Context, actor domain.Actor, complaintID int64, rating int, message string) (*domain.Feedback, error) {
	var result *domain.Feedback
	err := s.mutate(ctx, complaintID, func(complaint *domain.Complaint) error {
		if !actor.IsUser(complaint.UserID) {
			return apperrors.NewForbidden("only the complaint owner can leave feedback")
		}
		existing, err := activeFeedback(ctx, s.feedback, complaintID)
		if err != nil {
			return err
		}
		if err := domain.CheckFeedback(complaint, existing, rating); err != nil {
			return lifecycleError(err)
		}

		fb := &domain.Feedback{
			ComplainID:      complaintID,
			UserID:          actor.ID,
			Rating:          rating,
			FeedbackMessage: strings.TrimSpace(message),
		}
		if err := s.feedback.Create(ctx, fb); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return lifecycleError(domain.ErrFeedbackExists)
			}
			return apperrors.MapError(err)
		}

		s.record(ctx, actor, complaintID, domain.ChangeTypeFeedback, nil, map[string]any{"rating": rating})
		s.publish(ctx, actor, complaintID, events.EventFeedbackSubmitted, events.FeedbackSubmittedPayload{
			Rating:           rating,
			NeedsReassigning: domain.NeedsReassignment(fb),
		})
		result = fb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Rating returns the active rating, 0 when none was given.
func (s *FeedbackService) Rating(ctx context.Context, actor domain.Actor, complaintID int64) (int, error) {
	if _, err := s.loadVisible(ctx, actor, complaintID); err != nil {
		return 0, err
	}
	fb, err := activeFeedback(ctx, s.feedback, complaintID)
	if err != nil {
		return 0, err
	}
	if !fb.Given() {
		return 0, nil
	}
	return fb.Rating, nil
}

// ForAdmin returns the active feedback, 404 when there is none.
func (s *FeedbackService) ForAdmin(ctx context.Context, actor domain.Actor, complaintID int64) (*domain.Feedback, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if _, err := s.load(ctx, complaintID); err != nil {
		return nil, err
	}
	fb, err := activeFeedback(ctx, s.feedback, complaintID)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, apperrors.NewNotFound("feedback", map[string]any{"complainId": complaintID})
	}
	return fb, nil
}
