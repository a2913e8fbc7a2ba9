package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/maitri/internal/services"
)

const adminContextKey = "currentAdminEmail"

// AdminAuth validates admin session tokens and stores the admin email in context.
func AdminAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		session, err := auth.VerifySession(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, services.ErrSessionRevoked) {
				return fiber.NewError(fiber.StatusUnauthorized, "session ended by a forced logout")
			}
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		if !auth.ValidateAdminEmail(session.Email) {
			return fiber.NewError(fiber.StatusForbidden, "admin access revoked")
		}

		c.Locals(adminContextKey, session.Email)
		return c.Next()
	}
}

// GetCurrentAdmin extracts the authenticated admin email from context.
func GetCurrentAdmin(c *fiber.Ctx) (string, bool) {
	email, ok := c.Locals(adminContextKey).(string)
	return email, ok && email != ""
}
