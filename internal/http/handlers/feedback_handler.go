package handlers

import (
	"github.com/gofiber/fiber/v2"

	"timebank/internal/apperr"
	applog "timebank/internal/log"
	"timebank/internal/services"
)

type FeedbackHandler struct {
	Feedback *services.FeedbackService
	Profiles *services.ProfileService
}

type feedbackInput struct {
	Ratings []int  `json:"ratings"`
	Comment string `json:"comment"`
}

func (h *FeedbackHandler) Submit(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in feedbackInput
	if err := c.BodyParser(&in); err != nil {
		return apperr.NewValidationError("body", "could not parse request body")
	}
	fb, err := h.Feedback.Submit(c.UserContext(), id, currentUserID(c), in.Ratings, in.Comment)
	if err != nil {
		return err
	}
	applog.Audit(c, "feedback.submit", map[string]any{"transaction_id": id, "rating": fb.Rating})
	return created(c, fb)
}

// ForUser lists the feedback a provider has received.
func (h *FeedbackHandler) ForUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.Profiles.Feedback(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}
