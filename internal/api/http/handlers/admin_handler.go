package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicpulse/hub/internal/api/dto"
	"github.com/civicpulse/hub/internal/auth"
	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/service"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// AdminHandler exposes the administrator endpoints under /api/admin.
type AdminHandler struct {
	auth       *service.AuthService
	complaints *service.ComplaintService
	assignment *service.AssignmentService
	feedback   *service.FeedbackService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService, complaints *service.ComplaintService, assignment *service.AssignmentService, feedback *service.FeedbackService) *AdminHandler {
	return &AdminHandler{auth: authService, complaints: complaints, assignment: assignment, feedback: feedback}
}

// Login handles POST /api/admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	admin, session, err := h.auth.LoginAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{
		Message:   "Admin login successful",
		Role:      string(domain.SubjectTypeAdmin),
		Email:     admin.Email,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// ListComplaints handles GET /api/admin/complaints.
func (h *AdminHandler) ListComplaints(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	list, err := h.complaints.ListAll(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromComplaints(list))
}

// AssignDepartment handles PUT /api/admin/complaints/:id/assign-department.
func (h *AdminHandler) AssignDepartment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.assignment.AssignDepartment(c.UserContext(), actor, id, req.DepartmentID, req.TimelineDays)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromComplaint(*complaint))
}

// UpdateStatus handles PUT /api/admin/complaints/:id/status.
func (h *AdminHandler) UpdateStatus(c *fiber.Ctx) error {
	return updateMessage(c, h.assignment)
}

// Feedback handles GET /api/admin/complaints/:id/feedback.
func (h *AdminHandler) Feedback(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	fb, err := h.feedback.ForAdmin(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromFeedback(*fb))
}

// DepartmentCount handles GET /api/admin/complaints/department-count.
func (h *AdminHandler) DepartmentCount(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	counts, err := h.complaints.CountByDepartment(c.UserContext(), actor)
	if err != nil {
		return err
	}
	out := make([]dto.DepartmentCountResponse, 0, len(counts))
	for _, row := range counts {
		out = append(out, dto.DepartmentCountResponse{DepartmentName: row.DepartmentName, ComplaintCount: row.ComplaintCount})
	}
	return c.JSON(out)
}

// CityCount handles GET /api/admin/complaints/city-count.
func (h *AdminHandler) CityCount(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	counts, err := h.complaints.CountByCity(c.UserContext(), actor)
	if err != nil {
		return err
	}
	out := make([]dto.CityCountResponse, 0, len(counts))
	for _, row := range counts {
		out = append(out, dto.CityCountResponse{City: row.City, ComplaintCount: row.ComplaintCount})
	}
	return c.JSON(out)
}

// AuditTrail handles GET /api/admin/complaints/:id/history.
func (h *AdminHandler) AuditTrail(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.complaints.AuditTrail(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromHistory(entries))
}

// updateMessage is shared by the admin and department status endpoints; the service
// decides which callers may edit which complaint.
func updateMessage(c *fiber.Ctx, assignment *service.AssignmentService) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	var req dto.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := assignment.UpdateMessage(c.UserContext(), actor, id, req.Status, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromComplaint(*complaint))
}
