package services_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timebank/internal/apperr"
	"timebank/internal/domain"
)

func TestApplyRules(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l := e.listing(t, c, "Tutoring", domain.Offer)

	_, err := e.applications.Apply(ctx, l.ID, c, "")
	var self *apperr.SelfApplicationError
	require.ErrorAs(t, err, &self)
	assert.Equal(t, http.StatusForbidden, apperr.HTTPStatus(err))

	e.apply(t, l.ID, a)
	_, err = e.applications.Apply(ctx, l.ID, a, "again")
	var dup *apperr.DuplicateApplicationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))

	_, err = e.applications.Apply(ctx, 9999, a, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	notes := e.notificationsFor(t, c)
	require.Len(t, notes, 1)
	assert.Equal(t, "/listings/"+itoa(l.ID)+"/applications", notes[0].URL)
	assert.False(t, notes[0].IsRead)
}

func TestSelectAcceptsOneRejectsRest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	l := e.listing(t, c, "Tutoring", domain.Offer)

	var apps []*domain.Application
	for _, name := range []string{"alex", "bea", "cy"} {
		apps = append(apps, e.apply(t, l.ID, e.user(t, name)))
	}

	_, err := e.applications.Select(ctx, l.ID, apps[0].ApplicantID, apps[1].ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.applications.Select(ctx, l.ID, c, 424242)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.applications.Select(ctx, l.ID, c, apps[1].ID)
	require.NoError(t, err)

	got, err := e.applications.ForListing(ctx, l.ID, c)
	require.NoError(t, err)
	accepted := 0
	for _, a := range got {
		switch a.Status {
		case domain.AppAccepted:
			accepted++
			assert.Equal(t, apps[1].ID, a.ID)
			assert.Equal(t, "Accepted", a.Message)
		case domain.AppRejected:
			assert.Equal(t, "Rejected", a.Message)
		default:
			t.Fatalf("application %d left %s", a.ID, a.Status)
		}
	}
	assert.Equal(t, 1, accepted)

	_, err = e.applications.Select(ctx, l.ID, c, apps[2].ID)
	var decided *apperr.AlreadyDecidedError
	require.ErrorAs(t, err, &decided)
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))

	rejected := e.notificationsFor(t, apps[0].ApplicantID)
	winner := e.notificationsFor(t, apps[1].ApplicantID)
	require.Len(t, rejected, 1)
	require.Len(t, winner, 1)
	assert.NotEqual(t, rejected[0].Message, winner[0].Message)

	_, err = e.applications.ForListing(ctx, l.ID, apps[0].ApplicantID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestConcurrentSelectOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	l := e.listing(t, c, "Tutoring", domain.Offer)

	var apps []*domain.Application
	for _, name := range []string{"alex", "bea", "cy", "dee", "eve", "fay"} {
		apps = append(apps, e.apply(t, l.ID, e.user(t, name)))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		decided int
	)
	for _, a := range apps {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := e.applications.Select(ctx, l.ID, c, id)
			mu.Lock()
			defer mu.Unlock()
			var d *apperr.AlreadyDecidedError
			switch {
			case err == nil:
				wins++
			case assert.ErrorAs(t, err, &d):
				decided++
			}
		}(a.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, len(apps)-1, decided)
	n, err := e.store.Transactions.LiveForListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "exactly one transaction per listing")
}

func TestMarkCompletedRules(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l := e.listing(t, c, "Tutoring", domain.Offer)

	_, err := e.completion.MarkCompleted(ctx, l.ID, c)
	var none *apperr.NoAcceptedApplicantError
	require.ErrorAs(t, err, &none)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

	app := e.apply(t, l.ID, a)
	_, err = e.applications.Select(ctx, l.ID, c, app.ID)
	require.NoError(t, err)

	_, err = e.completion.MarkCompleted(ctx, l.ID, a)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	first, err := e.completion.MarkCompleted(ctx, l.ID, c)
	require.NoError(t, err)

	_, err = e.completion.MarkCompleted(ctx, l.ID, c)
	var done *apperr.AlreadyCompletedError
	require.ErrorAs(t, err, &done)
	assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err))

	n, err := e.store.Transactions.LiveForListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a retry never duplicates the transaction")

	got, err := e.store.Transactions.ByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	provider, err := e.profiles.Get(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 60.0, provider.AccumulatedCreditMinutes, "credit counts once the work is completed")
	assert.Equal(t, 1.0, provider.Multiplier)
}

func TestMarkCompletedCreatesMissingTransaction(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l := e.listing(t, c, "Tutoring", domain.Offer)
	app := e.apply(t, l.ID, a)
	_, err := e.applications.Select(ctx, l.ID, c, app.ID)
	require.NoError(t, err)

	_, err = e.store.Transactions.DeletePendingForListing(ctx, l.ID)
	require.NoError(t, err)

	txn, err := e.completion.MarkCompleted(ctx, l.ID, c)
	require.NoError(t, err)
	assert.Equal(t, domain.TxCompleted, txn.Status)
	assert.Equal(t, c, txn.ProviderID)
	assert.Equal(t, a, txn.RequesterID)
}

func TestFeedbackOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l := e.listing(t, c, "Tutoring", domain.Offer)
	app := e.apply(t, l.ID, a)
	txn, err := e.applications.Select(ctx, l.ID, c, app.ID)
	require.NoError(t, err)

	_, err = e.feedback.Submit(ctx, txn.ID, a, []int{5, 5, 5, 5}, "")
	var nc *apperr.NotCompletedError
	require.ErrorAs(t, err, &nc, "pending work cannot be reviewed")

	_, err = e.completion.MarkCompleted(ctx, l.ID, c)
	require.NoError(t, err)

	_, err = e.feedback.Submit(ctx, txn.ID, a, []int{5, 5, 5}, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.feedback.Submit(ctx, txn.ID, a, []int{2, 2, 2, 2}, "meh")
	require.NoError(t, err)
	_, err = e.feedback.Submit(ctx, txn.ID, a, []int{5, 5, 5, 5}, "changed my mind")
	var reviewed *apperr.AlreadyReviewedError
	require.ErrorAs(t, err, &reviewed)
	assert.Equal(t, http.StatusConflict, apperr.HTTPStatus(err))

	list, err := e.profiles.Feedback(ctx, c)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Rating)

	provider, err := e.profiles.Get(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2.0, provider.AvgRating)
	assert.Equal(t, 0.9, provider.Multiplier)

	_, err = e.feedback.Submit(ctx, 9999, a, []int{5, 5, 5, 5}, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentFeedbackOnlyOneRow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l := e.listing(t, c, "Tutoring", domain.Offer)
	app := e.apply(t, l.ID, a)
	txn, err := e.applications.Select(ctx, l.ID, c, app.ID)
	require.NoError(t, err)
	_, err = e.completion.MarkCompleted(ctx, l.ID, c)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.feedback.Submit(ctx, txn.ID, a, []int{4, 4, 4, 4}, "")
		}()
	}
	wg.Wait()

	ratings, err := e.store.Feedback.RatingsForProvider(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, ratings)
}

func TestReputationAcrossTransactions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")

	run := func(title string, ratings []int) {
		l := e.listing(t, c, title, domain.Offer)
		app := e.apply(t, l.ID, a)
		txn, err := e.applications.Select(ctx, l.ID, c, app.ID)
		require.NoError(t, err)
		_, err = e.completion.MarkCompleted(ctx, l.ID, c)
		require.NoError(t, err)
		_, err = e.feedback.Submit(ctx, txn.ID, a, ratings, "")
		require.NoError(t, err)
	}
	run("First", []int{5, 5, 5, 5})
	run("Second", []int{4, 4, 4, 4}) // snapshot taken at 1.2

	provider, err := e.profiles.Get(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 4.5, provider.AvgRating)
	assert.Equal(t, 1.15, provider.Multiplier)
	assert.Equal(t, 132.0, provider.AccumulatedCreditMinutes, "60×1.0 + 60×1.2")

	rep, err := e.feedback.Recompute(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, provider.AccumulatedCreditMinutes, rep.CreditMinutes, "recompute is a pure function of history")

	txns, err := e.profiles.Transactions(ctx, a)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestAppliedListings(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, relaxed())
	c := e.user(t, "carol")
	a := e.user(t, "alex")
	l1 := e.listing(t, c, "One", domain.Offer)
	l2 := e.listing(t, c, "Two", domain.Request)
	e.apply(t, l1.ID, a)
	e.apply(t, l2.ID, a)

	got, err := e.applications.Applied(ctx, a)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, x := range got {
		assert.Equal(t, x.Application.ListingID, x.Listing.ID)
		assert.Equal(t, "carol", x.Listing.Creator)
	}
}
