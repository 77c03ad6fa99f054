package service

import (
	"context"
	"strings"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/repository"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// AssignmentService handles department assignment, reassignment and the
// department-to-citizen message.
type AssignmentService struct {
	complaintCore
	departments repository.DepartmentRepository
	feedback    repository.FeedbackRepository
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	CoreDependencies
	DepartmentRepo repository.DepartmentRepository
	FeedbackRepo   repository.FeedbackRepository
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		complaintCore: newComplaintCore(deps.CoreDependencies),
		departments:   deps.DepartmentRepo,
		feedback:      deps.FeedbackRepo,
	}
}

// AssignDepartment moves a PENDING complaint, or a RESOLVED one rated 3 or lower,
// to IN_PROGRESS under the given department with a deadline timelineDays from now.
// Reassignment clears the completion data and archives the feedback.
func (s *AssignmentService) AssignDepartment(ctx context.Context, actor domain.Actor, complaintID, departmentID int64, timelineDays int) (*domain.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if departmentID <= 0 {
		return nil, apperrors.NewValidationError("departmentId is required", nil)
	}

	var result *domain.Complaint
	err := s.mutate(ctx, complaintID, func(complaint *domain.Complaint) error {
		fb, err := activeFeedback(ctx, s.feedback, complaintID)
		if err != nil {
			return err
		}
		if err := domain.CheckAssign(complaint, fb, timelineDays); err != nil {
			return lifecycleError(err)
		}

		dept, err := s.departments.GetByID(ctx, departmentID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewNotFound("department", map[string]any{"departmentId": departmentID})
			}
			return apperrors.MapError(err)
		}

		reassign := complaint.Status == domain.StatusResolved
		oldStatus := complaint.Status
		var previous *int64
		oldValue := statusValue(oldStatus)
		if complaint.Department != nil {
			prevID := complaint.Department.ID
			previous = &prevID
			oldValue["departmentId"] = prevID
		}

		deadline := domain.Deadline(s.now(), timelineDays)
		ref := dept.Ref()
		complaint.Department = &ref
		complaint.Status = domain.StatusInProgress
		complaint.DeadlineAt = &deadline
		if reassign {
			complaint.AfterImagePath = nil
			complaint.Workers = nil
			complaint.ResolvedAt = nil
		}

		if err := s.save(ctx, complaint, repository.UpdateOptions{ArchiveFeedback: reassign}); err != nil {
			return err
		}

		s.record(ctx, actor, complaint.ComplainID, domain.ChangeTypeDepartment, oldValue, map[string]any{
			"status":       complaint.Status,
			"departmentId": ref.ID,
			"timelineDays": timelineDays,
			"reassigned":   reassign,
		})
		eventType := events.EventComplaintAssigned
		if reassign {
			eventType = events.EventComplaintReassigned
		}
		s.publish(ctx, actor, complaint.ComplainID, eventType, events.ComplaintAssignedPayload{
			DepartmentID:       ref.ID,
			DepartmentName:     ref.Name,
			PreviousDepartment: previous,
			OldStatus:          oldStatus,
			DeadlineAt:         deadline,
		})
		result = complaint
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateMessage edits the note shown to the citizen. Admins may edit it on any
// unresolved complaint; a department only on complaints assigned to it. status,
// when given, must equal the current status: transitions go through
// AssignDepartment and Complete.
func (s *AssignmentService) UpdateMessage(ctx context.Context, actor domain.Actor, complaintID int64, status, message string) (*domain.Complaint, error) {
	var requested *domain.ComplaintStatus
	if strings.TrimSpace(status) != "" {
		parsed, ok := domain.ParseStatus(status)
		if !ok {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
		}
		requested = &parsed
	}

	var result *domain.Complaint
	err := s.mutate(ctx, complaintID, func(complaint *domain.Complaint) error {
		switch {
		case actor.IsAdmin():
		case actor.Type == domain.SubjectTypeDepartment && complaint.AssignedTo(actor.ID):
		default:
			return apperrors.NewForbidden("complaint not assigned to caller")
		}
		if requested != nil && *requested != complaint.Status {
			return lifecycleError(domain.TransitionError(complaint.Status, *requested))
		}
		if !domain.CanUpdateMessage(complaint) {
			return lifecycleError(domain.ErrMessageLocked)
		}

		old := derefString(complaint.Message)
		complaint.Message = strPtr(strings.TrimSpace(message))
		if err := s.save(ctx, complaint, repository.UpdateOptions{}); err != nil {
			return err
		}
		s.record(ctx, actor, complaint.ComplainID, domain.ChangeTypeMessage,
			map[string]any{"message": old},
			map[string]any{"message": *complaint.Message})
		s.publish(ctx, actor, complaint.ComplainID, events.EventComplaintMessageUpdated, events.ComplaintMessageUpdatedPayload{
			Message: *complaint.Message,
		})
		result = complaint
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// activeFeedback returns nil when the complaint has no active feedback.
func activeFeedback(ctx context.Context, repo repository.FeedbackRepository, complaintID int64) (*domain.Feedback, error) {
	fb, err := repo.GetActive(ctx, complaintID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return fb, nil
}
