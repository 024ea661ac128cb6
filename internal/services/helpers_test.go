package services_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timebank/internal/domain"
	"timebank/internal/repos"
	"timebank/internal/services"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingDeliverer struct {
	mu  sync.Mutex
	out []domain.Notification
}

func (d *recordingDeliverer) Deliver(_ context.Context, n domain.Notification) {
	d.mu.Lock()
	d.out = append(d.out, n)
	d.mu.Unlock()
}

type env struct {
	store     *repos.Store
	clock     *fakeClock
	delivered *recordingDeliverer

	listings     *services.ListingService
	applications *services.ApplicationService
	completion   *services.CompletionService
	feedback     *services.FeedbackService
	notes        *services.NotificationService
	catalog      *services.CatalogService
	profiles     *services.ProfileService
}

func newEnv(t *testing.T, policy services.Policy) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repos.NewStore(db)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	d := &recordingDeliverer{}
	notes := services.NewNotificationService(store, d)
	return &env{
		store:        store,
		clock:        clock,
		delivered:    d,
		listings:     services.NewListingService(store, policy, clock.Now, notes, nil),
		applications: services.NewApplicationService(store, clock.Now, notes),
		completion:   services.NewCompletionService(store, clock.Now, notes),
		feedback:     services.NewFeedbackService(store, clock.Now),
		notes:        notes,
		catalog:      services.NewCatalogService(store),
		profiles:     services.NewProfileService(store),
	}
}

// relaxed keeps the rate limit out of tests that are not about it.
func relaxed() services.Policy {
	p := services.DefaultPolicy()
	p.DisableRateLimit = true
	return p
}

func (e *env) user(t *testing.T, name string) int64 {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.test", Name: name, Hash: "x"}
	require.NoError(t, e.store.Users.Create(context.Background(), u))
	return u.ID
}

func draft(title string, typ domain.ListingType) domain.ListingDraft {
	return domain.ListingDraft{
		Category:        domain.CatGrowth,
		Title:           title,
		Description:     fmt.Sprintf("%s for an hour", title),
		Type:            typ,
		DurationMinutes: 60,
		Image:           "/media/listings/x.png",
	}
}

func (e *env) listing(t *testing.T, creator int64, title string, typ domain.ListingType) *domain.ListingView {
	t.Helper()
	v, err := e.listings.Create(context.Background(), creator, draft(title, typ))
	require.NoError(t, err)
	return v
}

func (e *env) apply(t *testing.T, listingID, applicant int64) *domain.Application {
	t.Helper()
	a, err := e.applications.Apply(context.Background(), listingID, applicant, "")
	require.NoError(t, err)
	return a
}

func (e *env) notificationsFor(t *testing.T, userID int64) []domain.Notification {
	t.Helper()
	ns, err := e.notes.List(context.Background(), userID)
	require.NoError(t, err)
	return ns
}

func (e *env) requireStatusInvariant(t *testing.T) {
	t.Helper()
	views, err := e.listings.Search(context.Background(), repos.ListingFilter{Limit: 100})
	require.NoError(t, err)
	for _, v := range views {
		require.True(t, domain.StatusAllowed(v.Type, v.Status), "listing %d: %s %s", v.ID, v.Type, v.Status)
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
