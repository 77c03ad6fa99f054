package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/civicpulse/hub/internal/api/dto"
	"github.com/civicpulse/hub/internal/auth"
	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/service"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// UsersHandler exposes the citizen endpoints under /api/users.
type UsersHandler struct {
	auth       *service.AuthService
	complaints *service.ComplaintService
	feedback   *service.FeedbackService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, complaints *service.ComplaintService, feedback *service.FeedbackService) *UsersHandler {
	return &UsersHandler{auth: authService, complaints: complaints, feedback: feedback}
}

// Signup handles POST /api/users/signup.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.auth.RegisterUser(c.UserContext(), service.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.SignupResponse{
		Message: "User registered successfully",
		UserID:  user.ID,
		Email:   user.Email,
	})
}

// Login handles POST /api/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	user, session, err := h.auth.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.AuthResponse{
		Message:   fmt.Sprintf("Login Successful UserID:%d", user.ID),
		Role:      string(domain.SubjectTypeUser),
		UserID:    user.ID,
		Email:     user.Email,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

// History handles GET /api/users/complaints/history/:userId.
func (h *UsersHandler) History(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	userID, err := int64Param(c, "userId")
	if err != nil {
		return err
	}
	list, err := h.complaints.History(c.UserContext(), actor, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromComplaints(list))
}

// Raise handles the multipart POST /api/users/complain/raise.
func (h *UsersHandler) Raise(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(c.FormValue("userId"), 10, 64)
	if err != nil || userID <= 0 {
		return apperrors.NewValidationError("invalid userId", map[string]any{"userId": c.FormValue("userId")})
	}
	image, err := formFileBytes(c, "image")
	if err != nil {
		return err
	}
	complaint, err := h.complaints.Raise(c.UserContext(), actor, service.RaiseInput{
		UserID:      userID,
		Title:       c.FormValue("title"),
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
		Location:    c.FormValue("location"),
		City:        c.FormValue("city"),
		Image:       image,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.RaiseComplaintResponse{
		Message:    "Complaint submitted successfully",
		ComplainID: complaint.ComplainID,
	})
}

// SubmitFeedback handles POST /api/users/complaints/:id/feedback.
func (h *UsersHandler) SubmitFeedback(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	fb, err := h.feedback.Submit(c.UserContext(), actor, id, req.Rating, req.FeedbackMessage)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromFeedback(*fb))
}

// Rating handles GET /api/users/complaints/:id/rating.
func (h *UsersHandler) Rating(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	rating, err := h.feedback.Rating(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(dto.RatingResponse{Rating: rating})
}
