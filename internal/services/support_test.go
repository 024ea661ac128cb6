package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"timebank/internal/apperr"
	"timebank/internal/domain"
	"timebank/internal/services"
)

func TestLoadTags(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())

	file := `
# music additions
MUSIC: Songwriting
MUSIC:   Mixing
TECH: Rust
`
	res, err := e.catalog.LoadTags(ctx, strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, services.TagLoadResult{Created: 2, Existing: 1}, res)

	tags, err := e.catalog.ListTags(ctx, domain.CatMusic)
	require.NoError(t, err)
	var names []string
	for _, tg := range tags {
		names = append(names, tg.Name)
	}
	assert.Contains(t, names, "Songwriting")
}

func TestLoadTagsValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())

	for _, bad := range []string{"MUSIC: Jazz\nno colon here\n", "MUSIC: Jazz\nCOOKING: Pasta\n", "MUSIC:   \n"} {
		_, err := e.catalog.LoadTags(ctx, strings.NewReader(bad))
		assert.ErrorIs(t, err, apperr.ErrValidation, bad)
	}
	tags, err := e.catalog.ListTags(ctx, domain.CatMusic)
	require.NoError(t, err)
	for _, tg := range tags {
		assert.NotEqual(t, "Jazz", tg.Name)
	}

	_, err = e.catalog.ListTags(ctx, "COOKING")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Len(t, e.catalog.ListCategories(), 10)
}

func TestNotificationReads(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l := e.listing(t, c, "Tutoring", domain.Offer)
	e.apply(t, l.ID, a)

	ns := e.notificationsFor(t, c)
	require.Len(t, ns, 1)
	n, err := e.notes.UnreadCount(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, e.notes.MarkRead(ctx, a, ns[0].ID), apperr.ErrForbidden)
	assert.ErrorIs(t, e.notes.MarkRead(ctx, c, 9999), apperr.ErrNotFound)
	require.NoError(t, e.notes.MarkRead(ctx, c, ns[0].ID))
	require.NoError(t, e.notes.MarkRead(ctx, c, ns[0].ID))

	n, err = e.notes.UnreadCount(ctx, c)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, e.delivered.out, 1, "committed notifications reach the outbound channel")
	assert.Equal(t, c, e.delivered.out[0].UserID)
}

func TestFailedOperationDeliversNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l := e.listing(t, c, "Tutoring", domain.Offer)
	e.apply(t, l.ID, a)
	before := len(e.delivered.out)

	_, err := e.applications.Apply(ctx, l.ID, a, "")
	require.Error(t, err)
	assert.Len(t, e.delivered.out, before)
}

func TestTokenService(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	ts := services.NewTokenService("s3cret", time.Hour, clock.Now)

	tok, err := ts.Issue(42)
	require.NoError(t, err)
	id, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	other := services.NewTokenService("different", time.Hour, clock.Now)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, services.ErrBadToken)

	clock.Advance(2 * time.Hour)
	_, err = ts.Parse(tok)
	assert.ErrorIs(t, err, services.ErrBadToken)

	_, err = ts.Parse("not.a.token")
	assert.ErrorIs(t, err, services.ErrBadToken)
}

func TestAuthLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd!"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{Username: "carol", Email: "carol@example.test", Name: "Carol", Hash: string(hash)}
	require.NoError(t, e.store.Users.Create(ctx, u))

	auth := services.NewAuthService(e.store.Users)
	_, err = auth.Login(ctx, "sid-1", "carol", "wrong")
	assert.ErrorIs(t, err, services.ErrBadCreds)

	got, err := auth.Login(ctx, "sid-1", "CAROL@example.test", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	cur, err := auth.CurrentUser(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "carol", cur.Username)

	require.NoError(t, auth.Logout(ctx, "sid-1"))
	_, err = auth.CurrentUser(ctx, "sid-1")
	assert.Error(t, err)
}

func TestRecomputeFromHistory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")

	rep, err := e.feedback.Recompute(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, services.Reputation{Multiplier: 1.0}, rep, "no history keeps the defaults")

	_, err = e.feedback.Recompute(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
