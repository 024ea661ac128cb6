package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"timebank/internal/apperr"
	"timebank/internal/blob"
	"timebank/internal/domain"
	"timebank/internal/metrics"
	"timebank/internal/repos"
	"timebank/internal/validate"
)

type ListingService struct {
	Store  *repos.Store
	Policy Policy
	Now    Clock
	Notes  *NotificationService
	Blobs  blob.Store
}

func NewListingService(store *repos.Store, policy Policy, now Clock, notes *NotificationService, blobs blob.Store) *ListingService {
	if now == nil {
		now = SystemClock
	}
	return &ListingService{Store: store, Policy: policy, Now: now, Notes: notes, Blobs: blobs}
}

// Create validates the draft, applies the quota, duplicate-title and rate-limit
// rules, and persists the listing as Available. Nothing is written when a rule fails.
func (s *ListingService) Create(ctx context.Context, creatorID int64, d domain.ListingDraft) (view *domain.ListingView, err error) {
	defer func() { metrics.RecordOp("listing.create", err) }()

	if err := validate.NewListing(&d, s.Policy.DescriptionMax); err != nil {
		return nil, err
	}
	now := s.Now()

	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		if _, err := tx.Users.ForUpdate(ctx, creatorID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("user", creatorID)
			}
			return err
		}
		if err := checkTags(ctx, tx, d.Category, d.TagIDs); err != nil {
			return err
		}

		n, err := tx.Listings.CountByCreator(ctx, creatorID)
		if err != nil {
			return err
		}
		if n >= s.Policy.ListingQuota {
			return &apperr.QuotaExceededError{Limit: s.Policy.ListingQuota}
		}
		taken, err := tx.Listings.TitleTaken(ctx, creatorID, d.Title, 0)
		if err != nil {
			return err
		}
		if taken {
			return &apperr.DuplicateTitleError{Title: d.Title}
		}
		if err := s.checkRate(ctx, tx, creatorID, now); err != nil {
			return err
		}

		l := domain.Listing{
			CreatorID:       creatorID,
			Category:        d.Category,
			Title:           d.Title,
			Description:     d.Description,
			Image:           d.Image,
			Type:            d.Type,
			DurationMinutes: d.DurationMinutes,
			Status:          domain.StatusAvailable,
			PostedAt:        now,
			EditedAt:        now,
		}
		if err := tx.Listings.Create(ctx, &l); err != nil {
			if repos.IsUniqueViolation(err) {
				return &apperr.DuplicateTitleError{Title: d.Title}
			}
			return fmt.Errorf("insert listing: %w", err)
		}
		if err := tx.Listings.SetTags(ctx, l.ID, d.TagIDs); err != nil {
			return err
		}
		view, err = loadView(ctx, tx, l.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *ListingService) checkRate(ctx context.Context, tx *repos.Store, creatorID int64, now time.Time) error {
	if s.Policy.DisableRateLimit || s.Policy.Cooldown <= 0 {
		return nil
	}
	last, err := tx.Listings.LatestPostedAt(ctx, creatorID)
	if err != nil || last == nil {
		return err
	}
	if wait := s.Policy.Cooldown - now.Sub(*last); wait > 0 {
		return &apperr.RateLimitedError{RetryAfterSeconds: int(math.Ceil(wait.Seconds()))}
	}
	return nil
}

// Edit applies the patch for the listing's owner. A successful edit resets the
// listing to Available unless the patch itself names an owner-settable status,
// and always voids the open transaction and every application, telling each
// applicant to reapply.
func (s *ListingService) Edit(ctx context.Context, listingID, editorID int64, p domain.ListingPatch) (view *domain.ListingView, err error) {
	defer func() { metrics.RecordOp("listing.edit", err) }()

	if err := validate.Patch(&p, s.Policy.DescriptionMax); err != nil {
		return nil, err
	}
	now := s.Now()
	ob := &outbox{at: s.Now}
	var oldImage string

	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		l, err := lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.CreatorID != editorID {
			return apperr.Forbidden("edit this listing")
		}

		next := *l
		if p.Title != nil {
			next.Title = *p.Title
		}
		if p.Description != nil {
			next.Description = *p.Description
		}
		if p.Category != nil {
			next.Category = *p.Category
		}
		if p.Type != nil {
			next.Type = *p.Type
		}
		if p.DurationMinutes != nil {
			next.DurationMinutes = *p.DurationMinutes
		}
		if p.Image != nil {
			next.Image = *p.Image
		}
		next.Status = domain.StatusAvailable
		if p.Status != nil {
			if !domain.OwnerSettable(next.Type, *p.Status) {
				return apperr.NewValidationError("status", fmt.Sprintf("cannot set a %s listing to %q", next.Type, *p.Status))
			}
			next.Status = *p.Status
		}
		next.EditedAt = now

		if next.Title != l.Title {
			taken, err := tx.Listings.TitleTaken(ctx, l.CreatorID, next.Title, l.ID)
			if err != nil {
				return err
			}
			if taken {
				return &apperr.DuplicateTitleError{Title: next.Title}
			}
		}

		tagIDs, err := s.currentTagIDs(ctx, tx, l.ID, p.TagIDs)
		if err != nil {
			return err
		}
		if err := checkTags(ctx, tx, next.Category, tagIDs); err != nil {
			return err
		}

		if err := tx.Listings.Update(ctx, &next); err != nil {
			if repos.IsUniqueViolation(err) {
				return &apperr.DuplicateTitleError{Title: next.Title}
			}
			return fmt.Errorf("update listing: %w", err)
		}
		if p.TagIDs != nil {
			if err := tx.Listings.SetTags(ctx, l.ID, tagIDs); err != nil {
				return err
			}
		}
		if err := s.voidEngagements(ctx, tx, ob, &next); err != nil {
			return err
		}
		if next.Image != l.Image {
			oldImage = l.Image
		}
		view, err = loadView(ctx, tx, l.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Notes.dispatch(ctx, ob)
	s.dropImage(ctx, oldImage)
	return view, nil
}

// voidEngagements removes the open transaction and every application of the
// listing and asks each applicant to reapply. Completed transactions lose the
// listing link so the reopened listing can carry one new transaction.
func (s *ListingService) voidEngagements(ctx context.Context, tx *repos.Store, ob *outbox, l *domain.Listing) error {
	apps, err := tx.Applications.ForListing(ctx, l.ID)
	if err != nil {
		return err
	}
	if _, err := tx.Transactions.DeletePendingForListing(ctx, l.ID); err != nil {
		return err
	}
	if _, err := tx.Transactions.DetachCompletedForListing(ctx, l.ID); err != nil {
		return err
	}
	if err := tx.Applications.DeleteForListing(ctx, l.ID); err != nil {
		return err
	}
	msg := fmt.Sprintf("The listing %q was updated. Please review it and apply again.", l.Title)
	for _, a := range apps {
		if err := ob.add(ctx, tx, a.ApplicantID, msg, listingURL(l.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *ListingService) currentTagIDs(ctx context.Context, tx *repos.Store, listingID int64, patch *[]int64) ([]int64, error) {
	if patch != nil {
		return *patch, nil
	}
	byListing, err := tx.Listings.TagsFor(ctx, []int64{listingID})
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, t := range byListing[listingID] {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// Delete removes the owner's listing with its applications and availability.
// The open transaction is kept as Cancelled history; completed ones keep their
// feedback and lose the listing link.
func (s *ListingService) Delete(ctx context.Context, listingID, requesterID int64) (err error) {
	defer func() { metrics.RecordOp("listing.delete", err) }()

	var image string
	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		l, err := lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.CreatorID != requesterID {
			return apperr.Forbidden("delete this listing")
		}
		if _, err := tx.Transactions.CancelPendingForListing(ctx, l.ID); err != nil {
			return err
		}
		if err := tx.Applications.DeleteForListing(ctx, l.ID); err != nil {
			return err
		}
		if err := tx.Availability.DeleteForListing(ctx, l.ID); err != nil {
			return err
		}
		ok, err := tx.Listings.Delete(ctx, l.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("listing", listingID)
		}
		image = l.Image
		return nil
	})
	if err != nil {
		return err
	}
	s.dropImage(ctx, image)
	return nil
}

func (s *ListingService) dropImage(ctx context.Context, ref string) {
	if s.Blobs == nil || ref == "" {
		return
	}
	_ = s.Blobs.Delete(ctx, ref)
}

func (s *ListingService) Get(ctx context.Context, id int64) (*domain.ListingView, error) {
	return loadView(ctx, s.Store, id)
}

func (s *ListingService) Search(ctx context.Context, f repos.ListingFilter) ([]domain.ListingView, error) {
	rows, err := s.Store.Listings.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return materialize(ctx, s.Store, rows)
}

// Mine lists the user's own listings, newest first.
func (s *ListingService) Mine(ctx context.Context, userID int64) ([]domain.ListingView, error) {
	return s.Search(ctx, repos.ListingFilter{CreatorID: userID, Limit: 100})
}

// AddAvailability records a time window during which the owner can do the work.
func (s *ListingService) AddAvailability(ctx context.Context, listingID, ownerID int64, from, to time.Time) (*domain.Availability, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return nil, apperr.NewValidationError("availability", "from must be before to")
	}
	a := domain.Availability{ListingID: listingID, From: from.UTC(), To: to.UTC()}
	err := s.Store.InTx(ctx, func(tx *repos.Store) error {
		l, err := lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.CreatorID != ownerID {
			return apperr.Forbidden("change availability of this listing")
		}
		return tx.Availability.Add(ctx, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *ListingService) ListAvailability(ctx context.Context, listingID int64) ([]domain.Availability, error) {
	if _, err := lockListing(ctx, s.Store, listingID); err != nil {
		return nil, err
	}
	return s.Store.Availability.ForListing(ctx, listingID)
}

// checkTags requires every tag to exist and to belong to category.
func checkTags(ctx context.Context, st *repos.Store, category domain.Category, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tags, err := st.Tags.ByIDs(ctx, ids)
	if err != nil {
		return err
	}
	found := make(map[int64]bool, len(tags))
	for _, t := range tags {
		found[t.ID] = true
		if t.Category != category {
			return apperr.NewValidationError("tags", fmt.Sprintf("tag %q belongs to %s, not %s", t.Name, t.Category, category))
		}
	}
	for _, id := range ids {
		if !found[id] {
			return apperr.NewValidationError("tags", fmt.Sprintf("unknown tag %d", id))
		}
	}
	return nil
}

func lockListing(ctx context.Context, st *repos.Store, id int64) (*domain.Listing, error) {
	l, err := st.Listings.ForUpdate(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("listing", id)
	}
	return l, err
}

func loadView(ctx context.Context, st *repos.Store, id int64) (*domain.ListingView, error) {
	row, err := st.Listings.ByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("listing", id)
	}
	if err != nil {
		return nil, err
	}
	views, err := materialize(ctx, st, []repos.ListingRow{*row})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// materialize resolves tag names and the category label for each row.
func materialize(ctx context.Context, st *repos.Store, rows []repos.ListingRow) ([]domain.ListingView, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	tags, err := st.Listings.TagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ListingView, len(rows))
	for i, r := range rows {
		v := domain.ListingView{
			Listing:       r.Listing,
			Creator:       r.Creator,
			CategoryLabel: r.Category.Label(),
			Tags:          []string{},
			TagIDs:        []int64{},
		}
		for _, t := range tags[r.ID] {
			v.Tags = append(v.Tags, t.Name)
			v.TagIDs = append(v.TagIDs, t.ID)
		}
		out[i] = v
	}
	return out, nil
}

func listingURL(id int64) string { return fmt.Sprintf("/listings/%d", id) }
