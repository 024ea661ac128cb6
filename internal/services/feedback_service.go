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

type FeedbackService struct {
	Store *repos.Store
	Now   Clock
}

func NewFeedbackService(store *repos.Store, now Clock) *FeedbackService {
	if now == nil {
		now = SystemClock
	}
	return &FeedbackService{Store: store, Now: now}
}

// Submit records the requester's one review of a completed transaction and
// recomputes the provider's reputation.
func (s *FeedbackService) Submit(ctx context.Context, txnID, requesterID int64, ratings []int, comment string) (fb *domain.Feedback, err error) {
	defer func() { metrics.RecordOp("feedback.submit", err) }()

	if err := validate.Ratings(ratings); err != nil {
		return nil, err
	}
	comment, err = validate.Comment(comment)
	if err != nil {
		return nil, err
	}

	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		t, err := tx.Transactions.ForUpdate(ctx, txnID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("transaction", txnID)
		}
		if err != nil {
			return err
		}
		if t.RequesterID != requesterID {
			return apperr.Forbidden("review this transaction")
		}
		if t.Status != domain.TxCompleted {
			return &apperr.NotCompletedError{}
		}
		if t.FeedbackGiven {
			return &apperr.AlreadyReviewedError{}
		}
		flipped, err := tx.Transactions.MarkFeedbackGiven(ctx, t.ID)
		if err != nil {
			return err
		}
		if !flipped {
			return &apperr.AlreadyReviewedError{}
		}

		f := domain.Feedback{
			TransactionID: t.ID,
			ProviderID:    t.ProviderID,
			RequesterID:   t.RequesterID,
			Rating:        Rating(ratings),
			Comment:       comment,
			CreatedAt:     s.Now(),
		}
		if err := tx.Feedback.Create(ctx, &f); err != nil {
			if repos.IsUniqueViolation(err) {
				return &apperr.AlreadyReviewedError{}
			}
			return fmt.Errorf("insert feedback: %w", err)
		}
		if _, err := recomputeProvider(ctx, tx, t.ProviderID); err != nil {
			return err
		}
		fb = &f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// Recompute rebuilds a provider's reputation fields from their full history.
func (s *FeedbackService) Recompute(ctx context.Context, providerID int64) (rep Reputation, err error) {
	err = s.Store.InTx(ctx, func(tx *repos.Store) error {
		rep, err = recomputeProvider(ctx, tx, providerID)
		return err
	})
	return rep, err
}

func recomputeProvider(ctx context.Context, tx *repos.Store, providerID int64) (Reputation, error) {
	if _, err := tx.Users.ForUpdate(ctx, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reputation{}, apperr.NotFound("user", providerID)
		}
		return Reputation{}, err
	}
	ratings, err := tx.Feedback.RatingsForProvider(ctx, providerID)
	if err != nil {
		return Reputation{}, err
	}
	txns, err := tx.Transactions.CompletedForProvider(ctx, providerID)
	if err != nil {
		return Reputation{}, err
	}
	rep := ComputeReputation(ratings, txns)
	if err := tx.Users.UpdateReputation(ctx, providerID, rep.AvgRating, rep.Multiplier, rep.CreditMinutes); err != nil {
		return Reputation{}, err
	}
	return rep, nil
}
