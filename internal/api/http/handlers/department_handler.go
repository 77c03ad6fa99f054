package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civicpulse/hub/internal/api/dto"
	"github.com/civicpulse/hub/internal/auth"
	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/service"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// DepartmentHandler exposes the department manager endpoints under /api/dept-manager.
type DepartmentHandler struct {
	auth        *service.AuthService
	departments *service.DepartmentService
	complaints  *service.ComplaintService
	assignment  *service.AssignmentService
}

// NewDepartmentHandler constructs handler.
func NewDepartmentHandler(authService *service.AuthService, departments *service.DepartmentService, complaints *service.ComplaintService, assignment *service.AssignmentService) *DepartmentHandler {
	return &DepartmentHandler{auth: authService, departments: departments, complaints: complaints, assignment: assignment}
}

// Login handles POST /api/dept-manager/login.
func (h *DepartmentHandler) Login(c *fiber.Ctx) error {
	var req dto.DepartmentLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.DepartmentName == "" || req.AdminEmail == "" || req.Password == "" {
		return apperrors.NewValidationError("departmentName, adminEmail and password required", nil)
	}
	dept, session, err := h.auth.LoginDepartment(c.UserContext(), req.DepartmentName, req.AdminEmail, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{
		Message:      "Department login successful",
		Role:         string(domain.SubjectTypeDepartment),
		DepartmentID: dept.ID,
		Name:         dept.Name,
		Email:        dept.Email,
		Token:        session.Token,
		ExpiresAt:    session.ExpiresAt,
	})
}

// AllNames handles GET /api/dept-manager/all-names.
func (h *DepartmentHandler) AllNames(c *fiber.Ctx) error {
	refs, err := h.departments.ListNames(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.FromDepartmentRefs(refs))
}

// Get handles GET /api/dept-manager/:deptId.
func (h *DepartmentHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	deptID, err := int64Param(c, "deptId")
	if err != nil {
		return err
	}
	dept, err := h.departments.Get(c.UserContext(), actor, deptID)
	if err != nil {
		return err
	}
	return c.JSON(dto.DepartmentRef{ID: dept.ID, Name: dept.Name})
}

// Complaints handles GET /api/dept-manager/:deptId/complaints.
func (h *DepartmentHandler) Complaints(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	deptID, err := int64Param(c, "deptId")
	if err != nil {
		return err
	}
	list, err := h.complaints.ListForDepartment(c.UserContext(), actor, deptID)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromComplaints(list))
}

// CreateWorker handles POST /api/dept-manager/:deptId/workers.
func (h *DepartmentHandler) CreateWorker(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	deptID, err := int64Param(c, "deptId")
	if err != nil {
		return err
	}
	var req dto.CreateWorkerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	worker, err := h.departments.CreateWorker(c.UserContext(), actor, deptID, service.WorkerInput{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.FromWorker(*worker))
}

// ListWorkers handles GET /api/dept-manager/:deptId/workers.
func (h *DepartmentHandler) ListWorkers(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	deptID, err := int64Param(c, "deptId")
	if err != nil {
		return err
	}
	workers, err := h.departments.ListWorkers(c.UserContext(), actor, deptID)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromWorkers(workers))
}

// UpdateStatus handles PUT /api/dept-manager/complaints/:id/status.
func (h *DepartmentHandler) UpdateStatus(c *fiber.Ctx) error {
	return updateMessage(c, h.assignment)
}

// Complete handles the multipart PUT /api/dept-manager/complaints/:id/complete.
func (h *DepartmentHandler) Complete(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	workerIDs, err := parseIDList(c.FormValue("workerIds"))
	if err != nil {
		return err
	}
	image, err := formFileBytes(c, "imageFile")
	if err != nil {
		return err
	}
	complaint, err := h.departments.Complete(c.UserContext(), actor, id, service.CompleteInput{
		Message:   c.FormValue("message"),
		WorkerIDs: workerIDs,
		Image:     image,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.FromComplaint(*complaint))
}

// ComplaintWorkers handles GET /api/dept-manager/complaints/:id/workers.
func (h *DepartmentHandler) ComplaintWorkers(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	workers, err := h.complaints.Workers(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromWorkers(workers))
}

// DepartmentName handles GET /api/dept-manager/complaints/:id/department-name.
func (h *DepartmentHandler) DepartmentName(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	name, err := h.complaints.DepartmentName(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.SendString(name)
}

// Deadline handles GET /api/dept-manager/complaints/:id/deadline.
func (h *DepartmentHandler) Deadline(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	deadline, err := h.complaints.Deadline(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.DeadlineResponse{Deadline: deadline})
}

// CompletionTime handles GET /api/dept-manager/complaints/:id/completion-time.
func (h *DepartmentHandler) CompletionTime(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	text, err := h.complaints.CompletionTime(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.SendString(text)
}
