package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/repository"
	"github.com/civicpulse/hub/internal/storage"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// DepartmentService manages departments, their workers and complaint completion.
type DepartmentService struct {
	complaintCore
	departments repository.DepartmentRepository
	workers     repository.WorkerRepository
	images      *storage.Images
}

// DepartmentDependencies encapsulates repositories required for department work.
type DepartmentDependencies struct {
	CoreDependencies
	DepartmentRepo repository.DepartmentRepository
	WorkerRepo     repository.WorkerRepository
	Images         *storage.Images
}

// WorkerInput is the worker creation payload.
type WorkerInput struct {
	Name        string
	Email       string
	PhoneNumber string
}

// CompleteInput is the multipart completion form.
type CompleteInput struct {
	Message   string
	WorkerIDs []int64
	Image     []byte
}

// NewDepartmentService constructs the service.
func NewDepartmentService(deps DepartmentDependencies) *DepartmentService {
	return &DepartmentService{
		complaintCore: newComplaintCore(deps.CoreDependencies),
		departments:   deps.DepartmentRepo,
		workers:       deps.WorkerRepo,
		images:        deps.Images,
	}
}

// ListNames returns the public {id, name} list used by login and assignment pickers.
func (s *DepartmentService) ListNames(ctx context.Context) ([]domain.DepartmentRef, error) {
	refs, err := s.departments.ListNames(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if refs == nil {
		refs = []domain.DepartmentRef{}
	}
	return refs, nil
}

// Get returns the department to itself or to an admin.
func (s *DepartmentService) Get(ctx context.Context, actor domain.Actor, departmentID int64) (*domain.Department, error) {
	if !actor.IsAdmin() && !actor.IsDepartment(departmentID) {
		return nil, apperrors.NewForbidden("department mismatch")
	}
	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("department", map[string]any{"departmentId": departmentID})
		}
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

// CreateWorker adds a worker to the caller's department.
func (s *DepartmentService) CreateWorker(ctx context.Context, actor domain.Actor, departmentID int64, input WorkerInput) (*domain.Worker, error) {
	if !actor.IsDepartment(departmentID) {
		return nil, apperrors.NewForbidden("department mismatch")
	}
	worker := &domain.Worker{
		DepartmentID: departmentID,
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.TrimSpace(input.Email),
		PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
	}
	details := map[string]any{}
	if worker.Name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(worker.Email); err != nil {
		details["email"] = "invalid"
	}
	if worker.PhoneNumber == "" {
		details["phoneNumber"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid worker payload", details)
	}

	if err := s.workers.Create(ctx, worker); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("worker email or phone already registered", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return worker, nil
}

// ListWorkers returns the caller's workers.
func (s *DepartmentService) ListWorkers(ctx context.Context, actor domain.Actor, departmentID int64) ([]domain.Worker, error) {
	if !actor.IsDepartment(departmentID) {
		return nil, apperrors.NewForbidden("department mismatch")
	}
	workers, err := s.workers.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if workers == nil {
		workers = []domain.Worker{}
	}
	return workers, nil
}

// Complete resolves an IN_PROGRESS complaint assigned to the caller. At least one of
// the department's workers and a non-empty after image are required.
func (s *DepartmentService) Complete(ctx context.Context, actor domain.Actor, complaintID int64, input CompleteInput) (*domain.Complaint, error) {
	if actor.Type != domain.SubjectTypeDepartment {
		return nil, apperrors.NewForbidden("department login required")
	}
	workerIDs := uniqueIDs(input.WorkerIDs)
	if err := domain.ValidateCompletion(workerIDs, int64(len(input.Image))); err != nil {
		return nil, lifecycleError(err)
	}

	var result *domain.Complaint
	err := s.mutate(ctx, complaintID, func(complaint *domain.Complaint) error {
		if !complaint.AssignedTo(actor.ID) {
			return apperrors.NewForbidden("complaint not assigned to caller")
		}
		if err := domain.CheckComplete(complaint, workerIDs, int64(len(input.Image))); err != nil {
			return lifecycleError(err)
		}

		workers, err := s.workers.GetByIDs(ctx, workerIDs)
		if err != nil {
			return apperrors.MapError(err)
		}
		if len(workers) != len(workerIDs) {
			return apperrors.NewValidationError("one or more workers not found", map[string]any{"workerIds": workerIDs})
		}
		for _, w := range workers {
			if w.DepartmentID != actor.ID {
				return apperrors.NewValidationError("worker belongs to another department", map[string]any{"workerId": w.ID})
			}
		}

		key, err := s.images.Save(ctx, storage.AfterPrefix, input.Image)
		if err != nil {
			return lifecycleError(err)
		}

		now := s.now()
		complaint.Status = domain.StatusResolved
		complaint.AfterImagePath = &key
		complaint.Workers = workers
		complaint.ResolvedAt = &now
		if msg := strings.TrimSpace(input.Message); msg != "" {
			complaint.Message = &msg
		}
		if err := s.save(ctx, complaint, repository.UpdateOptions{}); err != nil {
			s.discardImage(ctx, s.images, key)
			return err
		}

		completion := domain.CompletionTime(complaint.DeadlineAt, complaint.ResolvedAt)
		s.record(ctx, actor, complaint.ComplainID, domain.ChangeTypeCompletion,
			statusValue(domain.StatusInProgress),
			map[string]any{
				"status":         complaint.Status,
				"workerIds":      workerIDs,
				"afterImagePath": key,
				"completionTime": completion,
			})
		s.publish(ctx, actor, complaint.ComplainID, events.EventComplaintResolved, events.ComplaintResolvedPayload{
			DepartmentID:   actor.ID,
			WorkerIDs:      workerIDs,
			AfterImagePath: key,
			CompletionTime: completion,
		})
		result = complaint
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
