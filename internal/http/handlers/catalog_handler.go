package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"timebank/internal/domain"
	"timebank/internal/services"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
}

func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	return c.JSON(h.Catalog.ListCategories())
}

// Tags lists tags, filtered by ?category=CODE when given.
func (h *CatalogHandler) Tags(c *fiber.Ctx) error {
	cat := domain.Category(strings.ToUpper(strings.TrimSpace(c.Query("category"))))
	tags, err := h.Catalog.ListTags(c.UserContext(), cat)
	if err != nil {
		return err
	}
	return c.JSON(tags)
}
