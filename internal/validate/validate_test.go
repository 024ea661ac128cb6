package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timebank/internal/apperr"
	"timebank/internal/domain"
)

func goodDraft() domain.ListingDraft {
	return domain.ListingDraft{
		Category:        domain.CatGraphics,
		Title:           "  Logo design ",
		Description:     "I design logos.",
		Type:            domain.Offer,
		DurationMinutes: 60,
		Image:           "media/logo.png",
	}
}

func TestNewListingTrimsAndAccepts(t *testing.T) {
	d := goodDraft()
	require.NoError(t, NewListing(&d, 1000))
	assert.Equal(t, "Logo design", d.Title)
}

func TestNewListingReportsAllMissingFields(t *testing.T) {
	d := domain.ListingDraft{Category: domain.CatTech}
	err := NewListing(&d, 1000)

	var mf *apperr.MissingFieldsError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{"title", "description", "image", "listing_type", "duration"}, mf.Fields)
}

func TestNewListingRules(t *testing.T) {
	cases := map[string]func(*domain.ListingDraft){
		"title":        func(d *domain.ListingDraft) { d.Title = strings.Repeat("a", TitleMax+1) },
		"description":  func(d *domain.ListingDraft) { d.Description = strings.Repeat("a", 1001) },
		"listing_type": func(d *domain.ListingDraft) { d.Type = "Barter" },
		"category":     func(d *domain.ListingDraft) { d.Category = "COOKING" },
		"duration":     func(d *domain.ListingDraft) { d.DurationMinutes = -5 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			d := goodDraft()
			mutate(&d)
			var ve *apperr.ValidationError
			require.ErrorAs(t, NewListing(&d, 1000), &ve)
			assert.Equal(t, field, ve.Field)
		})
	}
}

func TestDurationBounds(t *testing.T) {
	d := goodDraft()
	d.DurationMinutes = DurationMax
	require.NoError(t, NewListing(&d, 1000))

	d = goodDraft()
	d.DurationMinutes = DurationMax + 1
	var ve *apperr.ValidationError
	require.ErrorAs(t, NewListing(&d, 1000), &ve)
	assert.Equal(t, "duration", ve.Field)
}

func TestTitleLimitCountsRunes(t *testing.T) {
	assert.NoError(t, Title(strings.Repeat("é", TitleMax)))
}

func TestDescriptionProfile(t *testing.T) {
	long := strings.Repeat("x", 3000)
	assert.Error(t, Description(long, 1000))
	assert.NoError(t, Description(long, 5000))
}

func TestPatch(t *testing.T) {
	empty := domain.ListingPatch{}
	assert.ErrorIs(t, Patch(&empty, 1000), apperr.ErrValidation)

	blank := "   "
	p := domain.ListingPatch{Title: &blank}
	var mf *apperr.MissingFieldsError
	require.ErrorAs(t, Patch(&p, 1000), &mf)

	title := " New title "
	p = domain.ListingPatch{Title: &title}
	require.NoError(t, Patch(&p, 1000))
	assert.Equal(t, "New title", *p.Title)

	zero := 0
	p = domain.ListingPatch{DurationMinutes: &zero}
	assert.ErrorIs(t, Patch(&p, 1000), apperr.ErrValidation)
}

func TestRatings(t *testing.T) {
	assert.NoError(t, Ratings([]int{1, 5, 3, 4}))
	assert.Error(t, Ratings([]int{5, 5, 5}))
	assert.Error(t, Ratings([]int{5, 5, 5, 6}))
	assert.Error(t, Ratings([]int{0, 5, 5, 5}))
}

func TestMessageDefault(t *testing.T) {
	m, err := Message("  ")
	require.NoError(t, err)
	assert.Equal(t, "Applied", m)

	_, err = Message(strings.Repeat("m", MessageMax+1))
	assert.Error(t, err)
}

func TestID(t *testing.T) {
	n, ok := ID("42")
	assert.True(t, ok)
	assert.EqualValues(t, 42, n)
	for _, s := range []string{"", "0", "-1", "abc"} {
		_, ok := ID(s)
		assert.False(t, ok, s)
	}
}
