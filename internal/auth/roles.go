package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicpulse/hub/internal/domain"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// RequireUser ensures a citizen is authenticated.
func RequireUser() fiber.Handler {
	return requireSubject("citizen login required", domain.SubjectTypeUser)
}

// RequireAdmin ensures an administrator is authenticated.
func RequireAdmin() fiber.Handler {
	return requireSubject("admin login required", domain.SubjectTypeAdmin)
}

// RequireDepartment ensures a department manager is authenticated.
func RequireDepartment() fiber.Handler {
	return requireSubject("department login required", domain.SubjectTypeDepartment)
}

// RequireAnyRole ensures the caller is authenticated as anything.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireDepartmentParam ensures the department in the path is the caller's own.
// Admins pass when allowAdmin is set.
func RequireDepartmentParam(param string, allowAdmin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if allowAdmin && principal.Actor.IsAdmin() {
			return c.Next()
		}
		id, err := c.ParamsInt(param)
		if err != nil || id <= 0 {
			return apperrors.NewValidationError("invalid department id", map[string]any{param: c.Params(param)})
		}
		if !principal.Actor.IsDepartment(int64(id)) {
			return apperrors.NewForbidden("department mismatch")
		}
		return c.Next()
	}
}

func requireSubject(message string, allowed ...domain.SubjectType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized(message)
		}
		for _, subject := range allowed {
			if principal.Actor.Type == subject {
				return c.Next()
			}
		}
		return apperrors.NewForbidden(message)
	}
}
