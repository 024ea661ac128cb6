package handlers

import (
	"github.com/gofiber/fiber/v2"

	"timebank/internal/apperr"
	applog "timebank/internal/log"
	"timebank/internal/services"
)

type ApplicationHandler struct {
	Apps       *services.ApplicationService
	Completion *services.CompletionService
}

func (h *ApplicationHandler) Apply(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in struct {
		Message string `json:"message" form:"message"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return apperr.NewValidationError("body", "could not parse request body")
		}
	}
	a, err := h.Apps.Apply(c.UserContext(), id, currentUserID(c), in.Message)
	if err != nil {
		return err
	}
	applog.Audit(c, "application.create", map[string]any{"listing_id": id, "application_id": a.ID})
	return created(c, a)
}

func (h *ApplicationHandler) ForListing(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	apps, err := h.Apps.ForListing(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(apps)
}

func (h *ApplicationHandler) Select(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in struct {
		ApplicationID int64 `json:"application_id" form:"application_id"`
	}
	if err := c.BodyParser(&in); err != nil || in.ApplicationID <= 0 {
		return apperr.NewValidationError("application_id", "must be a positive integer")
	}
	txn, err := h.Apps.Select(c.UserContext(), id, currentUserID(c), in.ApplicationID)
	if err != nil {
		return err
	}
	applog.Audit(c, "application.select", map[string]any{
		"listing_id":     id,
		"application_id": in.ApplicationID,
		"transaction_id": txn.ID,
	})
	return c.JSON(txn)
}

func (h *ApplicationHandler) Complete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	txn, err := h.Completion.MarkCompleted(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return err
	}
	applog.Audit(c, "listing.complete", map[string]any{"listing_id": id, "transaction_id": txn.ID})
	return c.JSON(txn)
}

func (h *ApplicationHandler) Mine(c *fiber.Ctx) error {
	out, err := h.Apps.Applied(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
