package handlers

import (
	"github.com/gofiber/fiber/v2"

	"timebank/internal/services"
)

type ProfileHandler struct {
	Profiles *services.ProfileService
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.Profiles.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(u)
}

func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	u, err := h.Profiles.Get(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(u)
}

func (h *ProfileHandler) Transactions(c *fiber.Ctx) error {
	txns, err := h.Profiles.Transactions(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(txns)
}
