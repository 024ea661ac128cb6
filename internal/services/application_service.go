package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"timebank/internal/apperr"
	"timebank/internal/domain"
	"timebank/internal/metrics"
	"timebank/internal/repos"
	"timebank/internal/validate"
)

type ApplicationService struct {
	Store *repos.Store
	Now   Clock
	Notes *NotificationService
}

func NewApplicationService(store *repos.Store, now Clock, notes *NotificationService) *ApplicationService {
	if now == nil {
		now = SystemClock
	}
	return &ApplicationService{Store: store, Now: now, Notes: notes}
}

// AppliedListing pairs a user's application with the listing it targets.
type AppliedListing struct {
	Application domain.Application `json:"application"`
	Listing     domain.ListingView `json:"listing"`
}

// Apply records a Pending application and tells the listing's creator.
func (s *ApplicationService) Apply(ctx context.Context, listingID, applicantID int64, message string) (app *domain.Application, err error) {
	defer func() { metrics.RecordOp("application.apply", err) }()

	msg, err := validate.Message(message)
	if err != nil {
		return nil, err
	}
	ob := &outbox{at: s.Now}

	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		l, err := lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.CreatorID == applicantID {
			return &apperr.SelfApplicationError{}
		}
		dup, err := tx.Applications.Exists(ctx, listingID, applicantID)
		if err != nil {
			return err
		}
		if dup {
			return &apperr.DuplicateApplicationError{}
		}
		if l.Status != domain.StatusAvailable {
			return &apperr.ListingUnavailableError{Status: string(l.Status)}
		}
		accepted, err := tx.Applications.Accepted(ctx, listingID)
		if err != nil {
			return err
		}
		if accepted != nil {
			return &apperr.ListingUnavailableError{Status: "taken"}
		}
		if _, err := tx.Users.ByID(ctx, applicantID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("user", applicantID)
			}
			return err
		}

		now := s.Now()
		a := domain.Application{
			ListingID:   listingID,
			ApplicantID: applicantID,
			Message:     msg,
			Status:      domain.AppPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Applications.Create(ctx, &a); err != nil {
			if repos.IsUniqueViolation(err) {
				return &apperr.DuplicateApplicationError{}
			}
			return fmt.Errorf("insert application: %w", err)
		}
		app = &a
		return ob.add(ctx, tx, l.CreatorID, "You've got a new applicant.", applicationsURL(listingID))
	})
	if err != nil {
		return nil, err
	}
	s.Notes.dispatch(ctx, ob)
	return app, nil
}

// Select accepts one application, rejects the rest and opens the Pending
// transaction. Only one call per listing can succeed.
func (s *ApplicationService) Select(ctx context.Context, listingID, ownerID, applicationID int64) (txn *domain.Transaction, err error) {
	defer func() { metrics.RecordOp("application.select", err) }()

	ob := &outbox{at: s.Now}
	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		l, err := lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.CreatorID != ownerID {
			return apperr.Forbidden("select an applicant for this listing")
		}
		accepted, err := tx.Applications.Accepted(ctx, listingID)
		if err != nil {
			return err
		}
		if accepted != nil {
			return &apperr.AlreadyDecidedError{}
		}
		if l.Status != domain.StatusAvailable {
			return &apperr.ListingUnavailableError{Status: string(l.Status)}
		}
		live, err := tx.Transactions.LiveForListing(ctx, listingID)
		if err != nil {
			return err
		}
		if live > 0 {
			return &apperr.AlreadyDecidedError{}
		}

		apps, err := tx.Applications.ForListing(ctx, listingID)
		if err != nil {
			return err
		}
		var chosen *domain.Application
		for i := range apps {
			if apps[i].ID == applicationID {
				chosen = &apps[i]
			}
		}
		if chosen == nil {
			return apperr.NotFound("application", applicationID)
		}

		now := s.Now()
		if err := tx.Applications.SetStatus(ctx, chosen.ID, domain.AppAccepted, "Accepted", now); err != nil {
			if repos.IsUniqueViolation(err) {
				return &apperr.AlreadyDecidedError{}
			}
			return err
		}
		if err := tx.Applications.RejectOthers(ctx, listingID, chosen.ID, now); err != nil {
			return err
		}
		if l.Type == domain.Offer {
			if err := tx.Listings.SetStatus(ctx, listingID, domain.StatusInProgress, now); err != nil {
				return err
			}
		}

		provider, requester := parties(l, chosen.ApplicantID)
		p, err := tx.Users.ForUpdate(ctx, provider)
		if err != nil {
			return err
		}
		lid := l.ID
		t := domain.Transaction{
			ListingID:       &lid,
			ProviderID:      provider,
			RequesterID:     requester,
			DurationMinutes: l.DurationMinutes,
			Multiplier:      p.Multiplier,
			Status:          domain.TxPending,
			CreatedAt:       now,
		}
		if err := tx.Transactions.Create(ctx, &t); err != nil {
			if repos.IsUniqueViolation(err) {
				return &apperr.AlreadyDecidedError{}
			}
			return fmt.Errorf("insert transaction: %w", err)
		}
		txn = &t

		for _, a := range apps {
			msg := fmt.Sprintf("Your application for %q was not selected.", l.Title)
			if a.ID == chosen.ID {
				msg = fmt.Sprintf("Your application for %q was accepted.", l.Title)
			}
			if err := ob.add(ctx, tx, a.ApplicantID, msg, "/me/applications"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Notes.dispatch(ctx, ob)
	return txn, nil
}

// parties returns (provider, requester): the creator of an Offer provides the
// work, the creator of a Request receives it.
func parties(l *domain.Listing, applicantID int64) (int64, int64) {
	if l.Type == domain.Offer {
		return l.CreatorID, applicantID
	}
	return applicantID, l.CreatorID
}

// ForListing lists a listing's applications; only its creator may see them.
func (s *ApplicationService) ForListing(ctx context.Context, listingID, viewerID int64) ([]domain.Application, error) {
	l, err := lockListing(ctx, s.Store, listingID)
	if err != nil {
		return nil, err
	}
	if l.CreatorID != viewerID {
		return nil, apperr.Forbidden("view applications for this listing")
	}
	return s.Store.Applications.ForListing(ctx, listingID)
}

// Applied lists the listings the user has applied to with their application.
func (s *ApplicationService) Applied(ctx context.Context, userID int64) ([]AppliedListing, error) {
	apps, err := s.Store.Applications.ForApplicant(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Store.Listings.AppliedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	views, err := materialize(ctx, s.Store, rows)
	if err != nil {
		return nil, err
	}
	byListing := make(map[int64]domain.ListingView, len(views))
	for _, v := range views {
		byListing[v.ID] = v
	}
	out := make([]AppliedListing, 0, len(apps))
	for _, a := range apps {
		out = append(out, AppliedListing{Application: a, Listing: byListing[a.ListingID]})
	}
	return out, nil
}

func applicationsURL(listingID int64) string {
	return fmt.Sprintf("/listings/%d/applications", listingID)
}
