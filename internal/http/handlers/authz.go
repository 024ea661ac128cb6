package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "timebank/internal/log"
	"timebank/internal/services"
)

// RequireUser resolves the caller from a bearer token or the session cookie
// and stores the id in Locals("userID").
func RequireUser(auth *services.AuthService, tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok {
			id, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				applog.Security(c, "auth.token.invalid", map[string]any{"reason": err.Error()})
				return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
			}
			c.Locals("userID", id)
			return c.Next()
		}

		sid := c.Cookies("sid")
		if sid == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "login required")
		}
		u, err := auth.CurrentUser(c.UserContext(), sid)
		if err != nil || u == nil {
			applog.Security(c, "auth.session.unknown", nil)
			return fiber.NewError(fiber.StatusUnauthorized, "login required")
		}
		c.Locals("userID", u.ID)
		c.Locals("user", u)
		return c.Next()
	}
}

func currentUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals("userID").(int64)
	return id
}
