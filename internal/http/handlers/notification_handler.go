package handlers

import (
	"github.com/gofiber/fiber/v2"

	"timebank/internal/services"
)

type NotificationHandler struct {
	Notes *services.NotificationService
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	uid := currentUserID(c)
	items, err := h.Notes.List(c.UserContext(), uid)
	if err != nil {
		return err
	}
	unread, err := h.Notes.UnreadCount(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"unread": unread, "items": items})
}

func (h *NotificationHandler) Read(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Notes.MarkRead(c.UserContext(), currentUserID(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}
