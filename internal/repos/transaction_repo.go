package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type TransactionRepo struct {
	x    sqlx.ExtContext
	lock string
}

const txCols = `id,listing_id,provider_id,requester_id,duration_minutes,multiplier,status,feedback_given,created_at,completed_at`

func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	return sqlx.GetContext(ctx, r.x, &t.ID, r.x.Rebind(`
		INSERT INTO transactions(listing_id,provider_id,requester_id,duration_minutes,multiplier,status,feedback_given,created_at,completed_at)
		VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`),
		t.ListingID, t.ProviderID, t.RequesterID, t.DurationMinutes, t.Multiplier, string(t.Status),
		t.FeedbackGiven, t.CreatedAt, t.CompletedAt)
}

func (r *TransactionRepo) ByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := sqlx.GetContext(ctx, r.x, &t, r.x.Rebind(`SELECT `+txCols+` FROM transactions WHERE id=?`), id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) ForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := sqlx.GetContext(ctx, r.x, &t, r.x.Rebind(`SELECT `+txCols+` FROM transactions WHERE id=?`+r.lock), id); err != nil {
		return nil, err
	}
	return &t, nil
}

// PendingForListing returns the listing's open transaction, or nil.
func (r *TransactionRepo) PendingForListing(ctx context.Context, listingID int64) (*domain.Transaction, error) {
	var t domain.Transaction
	err := sqlx.GetContext(ctx, r.x, &t, r.x.Rebind(`
		SELECT `+txCols+` FROM transactions WHERE listing_id=? AND status=?`+r.lock),
		listingID, string(domain.TxPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) Complete(ctx context.Context, id int64, durationMinutes int, at time.Time) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`
		UPDATE transactions SET status=?, duration_minutes=?, completed_at=? WHERE id=?`),
		string(domain.TxCompleted), durationMinutes, at, id)
	return err
}

// DeletePendingForListing drops the listing's open transaction, if any.
func (r *TransactionRepo) DeletePendingForListing(ctx context.Context, listingID int64) (int64, error) {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM transactions WHERE listing_id=? AND status=?`),
		listingID, string(domain.TxPending))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DetachCompletedForListing unlinks the listing's finished transactions so a
// reopened listing starts a fresh history. The rows and their feedback stay.
func (r *TransactionRepo) DetachCompletedForListing(ctx context.Context, listingID int64) (int64, error) {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`UPDATE transactions SET listing_id=NULL WHERE listing_id=? AND status=?`),
		listingID, string(domain.TxCompleted))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CancelPendingForListing keeps the open transaction as history, marked Cancelled.
func (r *TransactionRepo) CancelPendingForListing(ctx context.Context, listingID int64) (int64, error) {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`UPDATE transactions SET status=? WHERE listing_id=? AND status=?`),
		string(domain.TxCancelled), listingID, string(domain.TxPending))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkFeedbackGiven flips feedback_given once. It reports false when another
// caller already flipped it.
func (r *TransactionRepo) MarkFeedbackGiven(ctx context.Context, id int64) (bool, error) {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`
		UPDATE transactions SET feedback_given=? WHERE id=? AND feedback_given=?`), true, id, false)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *TransactionRepo) CompletedForProvider(ctx context.Context, providerID int64) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT `+txCols+` FROM transactions WHERE provider_id=? AND status=? ORDER BY id`),
		providerID, string(domain.TxCompleted))
	return out, err
}

// LiveForListing counts the listing's transactions that are not Cancelled.
func (r *TransactionRepo) LiveForListing(ctx context.Context, listingID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.x, &n, r.x.Rebind(`
		SELECT COUNT(*) FROM transactions WHERE listing_id=? AND status<>?`),
		listingID, string(domain.TxCancelled))
	return n, err
}

// ForUser lists transactions where the user is either party, newest first.
func (r *TransactionRepo) ForUser(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	out := []domain.Transaction{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT `+txCols+` FROM transactions
		WHERE provider_id=? OR requester_id=?
		ORDER BY created_at DESC, id DESC`), userID, userID)
	return out, err
}
