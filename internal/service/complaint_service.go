package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/repository"
	"github.com/civicpulse/hub/internal/storage"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// ComplaintService covers filing complaints and every read-side query.
type ComplaintService struct {
	complaintCore
	images *storage.Images
}

// ComplaintDependencies bundles repositories for the complaint service.
type ComplaintDependencies struct {
	CoreDependencies
	Images *storage.Images
}

// RaiseInput is the multipart complaint form.
type RaiseInput struct {
	UserID      int64
	Title       string
	Category    string
	Description string
	Location    string
	City        string
	Image       []byte
}

// NewComplaintService constructs the service.
func NewComplaintService(deps ComplaintDependencies) *ComplaintService {
	return &ComplaintService{
		complaintCore: newComplaintCore(deps.CoreDependencies),
		images:        deps.Images,
	}
}

// Raise files a new PENDING complaint for the calling citizen.
func (s *ComplaintService) Raise(ctx context.Context, actor domain.Actor, input RaiseInput) (*domain.Complaint, error) {
	if !actor.IsUser(input.UserID) {
		return nil, apperrors.NewForbidden("complaints can only be raised for yourself")
	}

	complaint := &domain.Complaint{
		UserID:      input.UserID,
		Title:       strings.TrimSpace(input.Title),
		Category:    strings.TrimSpace(input.Category),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		City:        strings.TrimSpace(input.City),
		Status:      domain.StatusPending,
	}
	details := map[string]any{}
	for field, value := range map[string]string{
		"title":       complaint.Title,
		"category":    complaint.Category,
		"description": complaint.Description,
		"location":    complaint.Location,
	} {
		if value == "" {
			details[field] = "required"
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid complaint payload", details)
	}

	if len(input.Image) > 0 {
		key, err := s.images.Save(ctx, "", input.Image)
		if err != nil {
			return nil, lifecycleError(err)
		}
		complaint.BeforeImagePath = &key
	}

	if err := s.complaints.Create(ctx, complaint); err != nil {
		if complaint.BeforeImagePath != nil {
			s.discardImage(ctx, s.images, *complaint.BeforeImagePath)
		}
		return nil, apperrors.MapError(err)
	}
	s.record(ctx, actor, complaint.ComplainID, domain.ChangeTypeCreated, nil, statusValue(complaint.Status))
	s.publish(ctx, actor, complaint.ComplainID, events.EventComplaintCreated, events.ComplaintCreatedPayload{
		UserID:   complaint.UserID,
		Title:    complaint.Title,
		Category: complaint.Category,
		City:     complaint.City,
	})
	return complaint, nil
}

// History lists the citizen's own complaints with their workers.
func (s *ComplaintService) History(ctx context.Context, actor domain.Actor, userID int64) ([]domain.Complaint, error) {
	if !actor.IsUser(userID) {
		return nil, apperrors.NewForbidden("history is only visible to its owner")
	}
	list, err := s.complaints.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// ListAll returns every complaint in id order for the admin board.
func (s *ComplaintService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	list, err := s.complaints.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// ListForDepartment returns the complaints currently assigned to the department.
func (s *ComplaintService) ListForDepartment(ctx context.Context, actor domain.Actor, departmentID int64) ([]domain.Complaint, error) {
	if !actor.IsDepartment(departmentID) {
		return nil, apperrors.NewForbidden("department mismatch")
	}
	list, err := s.complaints.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// Workers returns the workers recorded at completion.
func (s *ComplaintService) Workers(ctx context.Context, actor domain.Actor, id int64) ([]domain.Worker, error) {
	complaint, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if complaint.Workers == nil {
		return []domain.Worker{}, nil
	}
	return complaint.Workers, nil
}

// DepartmentName returns the assigned department's name, 404 while unassigned.
func (s *ComplaintService) DepartmentName(ctx context.Context, actor domain.Actor, id int64) (string, error) {
	complaint, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if complaint.Department == nil {
		return "", apperrors.NewNotFound("department", map[string]any{"complainId": id})
	}
	return complaint.Department.Name, nil
}

// Deadline returns the resolution deadline, 404 when none is set.
func (s *ComplaintService) Deadline(ctx context.Context, actor domain.Actor, id int64) (time.Time, error) {
	complaint, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return time.Time{}, err
	}
	if complaint.DeadlineAt == nil {
		return time.Time{}, apperrors.NewNotFound("deadline", map[string]any{"complainId": id})
	}
	return *complaint.DeadlineAt, nil
}

// CompletionTime renders resolution time against the deadline.
func (s *ComplaintService) CompletionTime(ctx context.Context, actor domain.Actor, id int64) (string, error) {
	complaint, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return domain.CompletionTime(complaint.DeadlineAt, complaint.ResolvedAt), nil
}

// AuditTrail returns the complaint history for admins.
func (s *ComplaintService) AuditTrail(ctx context.Context, actor domain.Actor, id int64) ([]domain.ComplaintHistory, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.ComplaintHistory{}, nil
	}
	entries, err := s.history.ListByComplaint(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// CountByDepartment feeds the admin department chart.
func (s *ComplaintService) CountByDepartment(ctx context.Context, actor domain.Actor) ([]repository.DepartmentCount, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	counts, err := s.complaints.CountByDepartment(ctx)
	return counts, apperrors.MapError(err)
}

// CountByCity feeds the admin city chart.
func (s *ComplaintService) CountByCity(ctx context.Context, actor domain.Actor) ([]repository.CityCount, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbidden("admin role required")
	}
	counts, err := s.complaints.CountByCity(ctx)
	return counts, apperrors.MapError(err)
}

// Overdue lists in-progress complaints past their deadline, oldest deadline first.
func (s *ComplaintService) Overdue(ctx context.Context, limit int) ([]domain.Complaint, error) {
	list, err := s.complaints.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// NotifyOverdue publishes the overdue event for one complaint.
func (s *ComplaintService) NotifyOverdue(ctx context.Context, complaint domain.Complaint) {
	if complaint.Department == nil || complaint.DeadlineAt == nil {
		return
	}
	s.logger.Info("complaint overdue",
		zap.Int64("complain_id", complaint.ComplainID),
		zap.Int64("department_id", complaint.Department.ID),
		zap.Time("deadline_at", *complaint.DeadlineAt))
	s.publish(ctx, systemActor, complaint.ComplainID, events.EventComplaintOverdue, events.ComplaintOverduePayload{
		DepartmentID: complaint.Department.ID,
		DeadlineAt:   *complaint.DeadlineAt,
	})
}
