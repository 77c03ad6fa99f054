package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/repository"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Exactly one of User, Admin and
// Department is set, matching Actor.Type.
type Principal struct {
	Actor      domain.Actor
	User       *domain.User
	Admin      *domain.Admin
	Department *domain.Department
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens      *TokenManager
	users       repository.UserRepository
	admins      repository.AdminRepository
	departments repository.DepartmentRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, admins repository.AdminRepository, departments repository.DepartmentRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, admins: admins, departments: departments}
}

// Handle enforces authentication for protected routes. Accounts deleted after the
// token was issued are rejected.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	principal := &Principal{Actor: claims.Actor()}

	switch claims.Subject {
	case domain.SubjectTypeUser:
		principal.User, err = m.users.GetByID(ctx, claims.SubjectID)
	case domain.SubjectTypeAdmin:
		principal.Admin, err = m.admins.GetByID(ctx, claims.SubjectID)
	case domain.SubjectTypeDepartment:
		principal.Department, err = m.departments.GetByID(ctx, claims.SubjectID)
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewUnauthorized(strings.ToLower(string(claims.Subject)) + " not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ActorFromContext returns the caller identity or an unauthorized error.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}
