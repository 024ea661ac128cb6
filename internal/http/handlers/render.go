package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"timebank/internal/apperr"
	applog "timebank/internal/log"
	"timebank/internal/validate"
)

const genericFailure = "Something went wrong. Please try again."

// ErrorHandler renders every error as a JSON body. Internal failures are
// logged; in production their text never reaches the client.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := apperr.HTTPStatus(err)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		msg := err.Error()

		switch {
		case status >= fiber.StatusInternalServerError:
			applog.Error(c, "server.error", err, nil)
			if production {
				msg = genericFailure
			}
		case status == fiber.StatusForbidden:
			applog.Security(c, "access.denied", map[string]any{"reason": msg})
		case status == fiber.StatusBadRequest:
			applog.Security(c, "validation.fail", map[string]any{"reason": msg})
		}

		body := fiber.Map{"error": msg}
		var rl *apperr.RateLimitedError
		if errors.As(err, &rl) {
			applog.Security(c, "rate.listing.hit", map[string]any{"retry_after": rl.RetryAfterSeconds})
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(rl.RetryAfterSeconds))
			body["retry_after"] = rl.RetryAfterSeconds
		}
		var mf *apperr.MissingFieldsError
		if errors.As(err, &mf) {
			body["missing"] = mf.Fields
		}
		return c.Status(status).JSON(body)
	}
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, ok := validate.ID(c.Params(name))
	if !ok {
		return 0, apperr.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func created(c *fiber.Ctx, v any) error {
	return c.Status(fiber.StatusCreated).JSON(v)
}
