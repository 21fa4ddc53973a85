package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/utils"
)

// RequireRole lets the request through when the authenticated identity holds
// one of the roles. Admins pass every check.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := IdentityFromContext(c)
		if identity.UserID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if !models.HasRole(identity, roles...) {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
