package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// RequireUserType ensures the principal has one of the allowed user types.
func RequireUserType(allowed ...domain.UserType) fiber.Handler {
	allowedSet := make(map[domain.UserType]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.User.UserType]; !exists {
			return apperrors.NewForbidden("not allowed for this user type")
		}
		return c.Next()
	}
}
