package services

import (
	"context"
	"fmt"

	"timebank/internal/apperr"
	"timebank/internal/domain"
	"timebank/internal/metrics"
	"timebank/internal/repos"
)

type CompletionService struct {
	Store *repos.Store
	Now   Clock
	Notes *NotificationService
}

func NewCompletionService(store *repos.Store, now Clock, notes *NotificationService) *CompletionService {
	if now == nil {
		now = SystemClock
	}
	return &CompletionService{Store: store, Now: now, Notes: notes}
}

// MarkCompleted closes the work on a listing. It finalizes the listing's
// Pending transaction, or creates a Completed one when none is open, moves
// the listing to its terminal status and asks the requester for feedback.
func (s *CompletionService) MarkCompleted(ctx context.Context, listingID, actorID int64) (txn *domain.Transaction, err error) {
	defer func() { metrics.RecordOp("listing.complete", err) }()

	ob := &outbox{at: s.Now}
	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		l, err := lockListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.CreatorID != actorID {
			return apperr.Forbidden("complete this listing")
		}
		if l.Status == domain.DoneStatus(l.Type) {
			return &apperr.AlreadyCompletedError{}
		}
		accepted, err := tx.Applications.Accepted(ctx, listingID)
		if err != nil {
			return err
		}
		if accepted == nil {
			return &apperr.NoAcceptedApplicantError{}
		}
		provider, requester := parties(l, accepted.ApplicantID)
		now := s.Now()

		t, err := tx.Transactions.PendingForListing(ctx, listingID)
		if err != nil {
			return err
		}
		if t == nil {
			p, err := tx.Users.ForUpdate(ctx, provider)
			if err != nil {
				return err
			}
			lid := l.ID
			t = &domain.Transaction{
				ListingID:       &lid,
				ProviderID:      provider,
				RequesterID:     requester,
				DurationMinutes: l.DurationMinutes,
				Multiplier:      p.Multiplier,
				Status:          domain.TxCompleted,
				CreatedAt:       now,
				CompletedAt:     &now,
			}
			if err := tx.Transactions.Create(ctx, t); err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
		} else {
			if err := tx.Transactions.Complete(ctx, t.ID, l.DurationMinutes, now); err != nil {
				return err
			}
			t.Status = domain.TxCompleted
			t.DurationMinutes = l.DurationMinutes
			t.CompletedAt = &now
		}

		if err := tx.Listings.SetStatus(ctx, listingID, domain.DoneStatus(l.Type), now); err != nil {
			return err
		}
		if _, err := recomputeProvider(ctx, tx, t.ProviderID); err != nil {
			return err
		}

		if err := ob.add(ctx, tx, t.RequesterID,
			fmt.Sprintf("Work on %q is complete. Please leave feedback.", l.Title),
			fmt.Sprintf("/transactions/%d/feedback", t.ID)); err != nil {
			return err
		}
		if err := ob.add(ctx, tx, t.ProviderID,
			fmt.Sprintf("You completed %q and earned %.0f credit-minutes.", l.Title, float64(t.DurationMinutes)*t.Multiplier),
			"/me/transactions"); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordCredit(float64(txn.DurationMinutes) * txn.Multiplier)
	s.Notes.dispatch(ctx, ob)
	return txn, nil
}
