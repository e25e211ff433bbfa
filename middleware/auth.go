package middleware

import (
	"strings"

	"github.com/olauber7232/tournament-latest-1/services"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by Auth.
const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
)

// TokenParser validates a bearer token.
type TokenParser interface {
	ParseToken(token string) (*services.Claims, error)
}

// Auth requires a valid "Authorization: Bearer <jwt>" header and stores the
// caller's id and role in the request locals.
func Auth(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "missing bearer token",
				"code":    "unauthorized",
			})
		}

		claims, err := tokens.ParseToken(strings.TrimSpace(token))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid or expired token",
				"code":    "unauthorized",
			})
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalUserRole, claims.Role)
		return c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "admin access required",
				"code":    "forbidden",
			})
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(LocalUserRole).(string)
	return role == services.RoleAdmin
}
