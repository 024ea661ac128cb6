package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"timebank/internal/apperr"
	"timebank/internal/domain"
)

const (
	TitleMax    = 50
	DurationMax = 7 * 24 * 60 // one week, in minutes
	MessageMax  = 1000
	CommentMax  = 2000
	RatingParts = 4
	RatingMin   = 1
	RatingMax   = 5
)

var reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// NewListing checks a draft before creation. Missing fields are reported together,
// in form order, before any other rule runs.
func NewListing(d *domain.ListingDraft, descMax int) error {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Image = strings.TrimSpace(d.Image)

	var missing []string
	if d.Title == "" {
		missing = append(missing, "title")
	}
	if d.Category == "" {
		missing = append(missing, "category")
	}
	if d.Description == "" {
		missing = append(missing, "description")
	}
	if d.Image == "" {
		missing = append(missing, "image")
	}
	if d.Type == "" {
		missing = append(missing, "listing_type")
	}
	if d.DurationMinutes == 0 {
		missing = append(missing, "duration")
	}
	if len(missing) > 0 {
		return &apperr.MissingFieldsError{Fields: missing}
	}

	if err := Description(d.Description, descMax); err != nil {
		return err
	}
	if err := ListingType(d.Type); err != nil {
		return err
	}
	if err := Category(d.Category); err != nil {
		return err
	}
	if err := Title(d.Title); err != nil {
		return err
	}
	return Duration(d.DurationMinutes)
}

// Patch re-validates the fields an edit supplies, with the same rules as creation.
func Patch(p *domain.ListingPatch, descMax int) error {
	if p.Empty() {
		return apperr.NewValidationError("", "no fields to update")
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		p.Title = &t
		if t == "" {
			return &apperr.MissingFieldsError{Fields: []string{"title"}}
		}
		if err := Title(t); err != nil {
			return err
		}
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		p.Description = &d
		if d == "" {
			return &apperr.MissingFieldsError{Fields: []string{"description"}}
		}
		if err := Description(d, descMax); err != nil {
			return err
		}
	}
	if p.Type != nil {
		if err := ListingType(*p.Type); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := Category(*p.Category); err != nil {
			return err
		}
	}
	if p.DurationMinutes != nil {
		if err := Duration(*p.DurationMinutes); err != nil {
			return err
		}
	}
	if p.Image != nil && strings.TrimSpace(*p.Image) == "" {
		return &apperr.MissingFieldsError{Fields: []string{"image"}}
	}
	return nil
}

func Title(s string) error {
	if utf8.RuneCountInString(s) > TitleMax {
		return apperr.NewValidationError("title", fmt.Sprintf("must be at most %d characters", TitleMax))
	}
	return nil
}

func Description(s string, max int) error {
	if utf8.RuneCountInString(s) > max {
		return apperr.NewValidationError("description", "description is too long")
	}
	return nil
}

func ListingType(t domain.ListingType) error {
	if !t.Valid() {
		return apperr.NewValidationError("listing_type", "invalid listing type")
	}
	return nil
}

func Category(c domain.Category) error {
	if !c.Valid() {
		return apperr.NewValidationError("category", fmt.Sprintf("unknown category %q", string(c)))
	}
	return nil
}

func Duration(minutes int) error {
	if minutes <= 0 || minutes > DurationMax {
		return apperr.NewValidationError("duration", fmt.Sprintf("must be between 1 and %d minutes", DurationMax))
	}
	return nil
}

// Ratings checks the four feedback components.
func Ratings(parts []int) error {
	if len(parts) != RatingParts {
		return apperr.NewValidationError("ratings", fmt.Sprintf("exactly %d rating components are required", RatingParts))
	}
	for i, r := range parts {
		if r < RatingMin || r > RatingMax {
			return apperr.NewValidationError("ratings", fmt.Sprintf("component %d must be between %d and %d", i+1, RatingMin, RatingMax))
		}
	}
	return nil
}

func Comment(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > CommentMax {
		return "", apperr.NewValidationError("comment", "comment is too long")
	}
	return s, nil
}

// Message normalizes an application message, defaulting to "Applied".
func Message(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Applied", nil
	}
	if utf8.RuneCountInString(s) > MessageMax {
		return "", apperr.NewValidationError("message", "message is too long")
	}
	return s, nil
}

// ID parses a positive numeric identifier from a path or form value.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 50 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Password enforces a simple length window for login checks.
func Password(s string) bool {
	l := len(s)
	return l >= 8 && l <= 64
}
