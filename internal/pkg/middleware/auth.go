package middleware

import (
	"strings"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/erpeaz/siteboard/internal/pkg/token"
	"github.com/gofiber/fiber/v2"
)

const (
	ContextUserID = "auth_user_id"
	ContextRole   = "auth_role"
)

// JWTAuthMiddleware authenticates requests carrying a bearer token.
func JWTAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := extractBearerToken(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing bearer token"})
		}

		claims, err := token.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or expired token"})
		}

		c.Locals(ContextUserID, claims.UserID)
		c.Locals(ContextRole, claims.Role)
		return c.Next()
	}
}

// RequireAdmin allows only users with the admin role past.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(ContextRole).(string)
		if role != models.ROLE_ADMIN {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin role required"})
		}
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
