package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"timebank/internal/log"
	"timebank/internal/services"
	"timebank/internal/validate"
)

type AuthHandler struct {
	Auth   *services.AuthService
	Tokens *services.TokenService
	Secure bool
}

type credentials struct {
	Login    string `json:"login" form:"login"`
	Password string `json:"password" form:"password"`
}

func (h *AuthHandler) ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   h.Secure,
		})
	}
	return sid
}

func readCredentials(c *fiber.Ctx) (credentials, bool) {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return in, false
	}
	return in, in.Login != "" && validate.Password(in.Password)
}

// Login binds the session cookie to the user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	in, ok := readCredentials(c)
	if !ok {
		log.Security(c, "auth.login.fail", map[string]any{"login": in.Login, "reason": "bad_format"})
		return fiber.NewError(fiber.StatusUnauthorized, services.ErrBadCreds.Error())
	}
	sid := h.ensureSID(c)
	u, err := h.Auth.Login(c.UserContext(), sid, in.Login, in.Password)
	if err != nil {
		log.Security(c, "auth.login.fail", map[string]any{"login": in.Login})
		return fiber.NewError(fiber.StatusUnauthorized, services.ErrBadCreds.Error())
	}
	c.Locals("userID", u.ID)
	log.Audit(c, "auth.login.success", map[string]any{"login": in.Login})
	return c.JSON(u)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := c.Cookies("sid")
	if sid != "" {
		_ = h.Auth.Logout(c.UserContext(), sid)
	}
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.Secure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
	log.Audit(c, "auth.logout", nil)
	return c.SendStatus(fiber.StatusNoContent)
}

// Token exchanges credentials for a bearer token.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	in, ok := readCredentials(c)
	if !ok {
		log.Security(c, "auth.token.fail", map[string]any{"login": in.Login, "reason": "bad_format"})
		return fiber.NewError(fiber.StatusUnauthorized, services.ErrBadCreds.Error())
	}
	u, err := h.Auth.Authenticate(c.UserContext(), in.Login, in.Password)
	if err != nil {
		log.Security(c, "auth.token.fail", map[string]any{"login": in.Login})
		return fiber.NewError(fiber.StatusUnauthorized, services.ErrBadCreds.Error())
	}
	tok, err := h.Tokens.Issue(u.ID)
	if err != nil {
		return err
	}
	log.Audit(c, "auth.token.issue", map[string]any{"user_id": u.ID})
	return c.JSON(fiber.Map{"token": tok, "token_type": "Bearer"})
}
