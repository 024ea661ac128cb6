package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"timebank/internal/apperr"
	"timebank/internal/blob"
	"timebank/internal/domain"
	applog "timebank/internal/log"
	"timebank/internal/repos"
	"timebank/internal/services"
	"timebank/internal/validate"
)

type ListingHandler struct {
	Listings *services.ListingService
	Blobs    blob.Store
}

type listingInput struct {
	Category        string  `json:"category" form:"category"`
	Title           string  `json:"title" form:"title"`
	Description     string  `json:"description" form:"description"`
	Type            string  `json:"listing_type" form:"listing_type"`
	DurationMinutes int     `json:"duration_minutes" form:"duration_minutes"`
	TagIDs          []int64 `json:"tag_ids" form:"tag_ids"`
	Image           string  `json:"image" form:"image"`
}

type patchInput struct {
	Category        *string  `json:"category" form:"category"`
	Title           *string  `json:"title" form:"title"`
	Description     *string  `json:"description" form:"description"`
	Type            *string  `json:"listing_type" form:"listing_type"`
	DurationMinutes *int     `json:"duration_minutes" form:"duration_minutes"`
	TagIDs          *[]int64 `json:"tag_ids" form:"tag_ids"`
	Image           *string  `json:"image" form:"image"`
	Status          *string  `json:"status" form:"status"`
}

func (in patchInput) patch() domain.ListingPatch {
	p := domain.ListingPatch{
		Title:           in.Title,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		TagIDs:          in.TagIDs,
		Image:           in.Image,
	}
	if in.Category != nil {
		cat := domain.Category(strings.ToUpper(strings.TrimSpace(*in.Category)))
		p.Category = &cat
	}
	if in.Type != nil {
		t := domain.ListingType(strings.TrimSpace(*in.Type))
		p.Type = &t
	}
	if in.Status != nil {
		s := domain.ListingStatus(strings.TrimSpace(*in.Status))
		p.Status = &s
	}
	return p
}

// upload stores the multipart "image" part, if any, and returns its reference.
func (h *ListingHandler) upload(c *fiber.Ctx) (string, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return "", nil
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return "", nil
	}
	if h.Blobs == nil {
		return "", apperr.NewValidationError("image", "image uploads are not enabled")
	}
	if fh.Size > blob.MaxImageBytes {
		return "", apperr.NewValidationError("image", "image is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	ref, err := h.Blobs.Put(c.UserContext(), fh.Filename, f)
	if errors.Is(err, blob.ErrUnsupported) {
		applog.Security(c, "upload.reject", map[string]any{"filename": fh.Filename})
		return "", apperr.NewValidationError("image", "unsupported image type")
	}
	return ref, err
}

func (h *ListingHandler) discard(ctx context.Context, ref string) {
	if ref != "" && h.Blobs != nil {
		_ = h.Blobs.Delete(ctx, ref)
	}
}

func (h *ListingHandler) Create(c *fiber.Ctx) error {
	var in listingInput
	if err := c.BodyParser(&in); err != nil {
		return apperr.NewValidationError("body", "could not parse request body")
	}
	ref, err := h.upload(c)
	if err != nil {
		return err
	}
	if ref != "" {
		in.Image = ref
	}

	v, err := h.Listings.Create(c.UserContext(), currentUserID(c), domain.ListingDraft{
		Category:        domain.Category(strings.ToUpper(strings.TrimSpace(in.Category))),
		Title:           in.Title,
		Description:     in.Description,
		Type:            domain.ListingType(strings.TrimSpace(in.Type)),
		DurationMinutes: in.DurationMinutes,
		TagIDs:          in.TagIDs,
		Image:           in.Image,
	})
	if err != nil {
		h.discard(c.UserContext(), ref)
		return err
	}
	applog.Audit(c, "listing.create", map[string]any{"listing_id": v.ID, "type": v.Type})
	return created(c, v)
}

func (h *ListingHandler) Edit(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in patchInput
	if err := c.BodyParser(&in); err != nil {
		return apperr.NewValidationError("body", "could not parse request body")
	}
	ref, err := h.upload(c)
	if err != nil {
		return err
	}
	if ref != "" {
		in.Image = &ref
	}

	v, err := h.Listings.Edit(c.UserContext(), id, currentUserID(c), in.patch())
	if err != nil {
		h.discard(c.UserContext(), ref)
		return err
	}
	applog.Audit(c, "listing.edit", map[string]any{"listing_id": id, "status": v.Status})
	return c.JSON(v)
}

func (h *ListingHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Listings.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return err
	}
	applog.Audit(c, "listing.delete", map[string]any{"listing_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ListingHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.Listings.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// Search filters by ?q, ?category, ?type, ?status, ?creator with ?limit/?offset paging.
func (h *ListingHandler) Search(c *fiber.Ctx) error {
	f := repos.ListingFilter{
		Query:    strings.TrimSpace(c.Query("q")),
		Category: domain.Category(strings.ToUpper(strings.TrimSpace(c.Query("category")))),
		Type:     domain.ListingType(strings.TrimSpace(c.Query("type"))),
		Status:   domain.ListingStatus(strings.TrimSpace(c.Query("status"))),
		Limit:    c.QueryInt("limit", 20),
		Offset:   c.QueryInt("offset", 0),
	}
	if f.Category != "" && !f.Category.Valid() {
		return apperr.NewValidationError("category", "unknown category")
	}
	if f.Type != "" && !f.Type.Valid() {
		return apperr.NewValidationError("type", "must be Offer or Request")
	}
	if raw := c.Query("creator"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			return apperr.NewValidationError("creator", "must be a positive integer")
		}
		f.CreatorID = id
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	views, err := h.Listings.Search(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(views)
}

func (h *ListingHandler) Mine(c *fiber.Ctx) error {
	views, err := h.Listings.Mine(c.UserContext(), currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(views)
}

type availabilityInput struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (h *ListingHandler) AddAvailability(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in availabilityInput
	if err := c.BodyParser(&in); err != nil {
		return apperr.NewValidationError("body", "from and to must be RFC 3339 timestamps")
	}
	a, err := h.Listings.AddAvailability(c.UserContext(), id, currentUserID(c), in.From, in.To)
	if err != nil {
		return err
	}
	return created(c, a)
}

func (h *ListingHandler) Availability(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	slots, err := h.Listings.ListAvailability(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(slots)
}
