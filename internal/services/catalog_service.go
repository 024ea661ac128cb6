package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"timebank/internal/apperr"
	"timebank/internal/domain"
	"timebank/internal/repos"
)

type CatalogService struct {
	Store *repos.Store
}

func NewCatalogService(store *repos.Store) *CatalogService {
	return &CatalogService{Store: store}
}

func (s *CatalogService) ListCategories() []domain.CategoryInfo {
	return domain.Categories()
}

// ListTags lists tags, optionally limited to one category.
func (s *CatalogService) ListTags(ctx context.Context, category domain.Category) ([]domain.Tag, error) {
	if category != "" && !category.Valid() {
		return nil, apperr.NewValidationError("category", fmt.Sprintf("unknown category %q", string(category)))
	}
	return s.Store.Tags.List(ctx, category)
}

type TagLoadResult struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
}

// LoadTags reads "CATEGORY: TAG_NAME" lines. Blank lines and lines starting
// with '#' are skipped. Every line is validated before anything is written;
// the inserts then run in one transaction.
func (s *CatalogService) LoadTags(ctx context.Context, r io.Reader) (TagLoadResult, error) {
	type entry struct {
		cat  domain.Category
		name string
	}
	var entries []entry

	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		code, name, ok := strings.Cut(line, ":")
		if !ok {
			return TagLoadResult{}, apperr.NewValidationError("line", fmt.Sprintf("%d: expected 'CATEGORY: TAG_NAME', got %q", n, line))
		}
		cat := domain.Category(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if !cat.Valid() {
			return TagLoadResult{}, apperr.NewValidationError("line", fmt.Sprintf("%d: invalid category code %q", n, string(cat)))
		}
		if name == "" {
			return TagLoadResult{}, apperr.NewValidationError("line", fmt.Sprintf("%d: empty tag name", n))
		}
		entries = append(entries, entry{cat, name})
	}
	if err := sc.Err(); err != nil {
		return TagLoadResult{}, err
	}

	var res TagLoadResult
	err := s.Store.InTx(ctx, func(tx *repos.Store) error {
		for _, e := range entries {
			_, created, err := tx.Tags.GetOrCreate(ctx, e.cat, e.name)
			if err != nil {
				return err
			}
			if created {
				res.Created++
			} else {
				res.Existing++
			}
		}
		return nil
	})
	if err != nil {
		return TagLoadResult{}, err
	}
	return res, nil
}
