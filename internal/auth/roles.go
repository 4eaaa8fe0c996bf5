package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// RequireActiveUser rejects principals the directory has deactivated.
func RequireActiveUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.Active {
			return apperrors.NewAccessDenied("user account is inactive")
		}
		return c.Next()
	}
}
