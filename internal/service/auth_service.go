package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/civicpulse/hub/internal/auth"
	"github.com/civicpulse/hub/internal/config"
	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/repository"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// AuthService coordinates registration and the three login flows.
type AuthService struct {
	users       repository.UserRepository
	admins      repository.AdminRepository
	departments repository.DepartmentRepository
	tokenMgr    *auth.TokenManager
	bcryptCost  int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo       repository.UserRepository
	AdminRepo      repository.AdminRepository
	DepartmentRepo repository.DepartmentRepository
}

// SignupInput is the citizen registration payload.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Session is an issued bearer token.
type Session struct {
	Actor     domain.Actor
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		admins:      deps.AdminRepo,
		departments: deps.DepartmentRepo,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:  cfg.Auth.BcryptCost,
	}
}

// RegisterUser creates a citizen account.
func (s *AuthService) RegisterUser(ctx context.Context, input SignupInput) (*domain.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.TrimSpace(input.Email)

	details := map[string]any{}
	if input.FirstName == "" {
		details["firstName"] = "required"
	}
	if input.LastName == "" {
		details["lastName"] = "required"
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		details["email"] = "invalid"
	}
	if len(input.Password) < 6 {
		details["password"] = "min 6 characters"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid signup payload", details)
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// LoginUser authenticates a citizen.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*domain.User, *Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, credentialError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	session, err := s.issue(domain.UserActor(user.ID))
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// LoginAdmin authenticates an administrator.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (*domain.Admin, *Session, error) {
	admin, err := s.admins.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, credentialError(err)
	}
	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	session, err := s.issue(domain.AdminActor(admin.ID))
	if err != nil {
		return nil, nil, err
	}
	return admin, session, nil
}

// LoginDepartment authenticates a department manager by department name, the
// department's admin email and password.
func (s *AuthService) LoginDepartment(ctx context.Context, departmentName, adminEmail, password string) (*domain.Department, *Session, error) {
	dept, err := s.departments.GetByName(ctx, strings.TrimSpace(departmentName))
	if err != nil {
		return nil, nil, credentialError(err)
	}
	if !strings.EqualFold(dept.Email, strings.TrimSpace(adminEmail)) {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(dept.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	session, err := s.issue(domain.DepartmentActor(dept.ID))
	if err != nil {
		return nil, nil, err
	}
	return dept, session, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(actor domain.Actor) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(actor)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Actor: actor, Token: token, ExpiresAt: exp}, nil
}

// credentialError hides whether the account exists.
func credentialError(err error) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	return apperrors.MapError(err)
}
