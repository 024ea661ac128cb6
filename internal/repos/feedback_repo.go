package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type FeedbackRepo struct{ x sqlx.ExtContext }

func (r *FeedbackRepo) Create(ctx context.Context, f *domain.Feedback) error {
	return sqlx.GetContext(ctx, r.x, &f.ID, r.x.Rebind(`
		INSERT INTO feedback(transaction_id,provider_id,requester_id,rating,comment,created_at)
		VALUES(?,?,?,?,?,?) RETURNING id`),
		f.TransactionID, f.ProviderID, f.RequesterID, f.Rating, f.Comment, f.CreatedAt)
}

// RatingsForProvider returns every rating the provider has received.
func (r *FeedbackRepo) RatingsForProvider(ctx context.Context, providerID int64) ([]int, error) {
	out := []int{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`SELECT rating FROM feedback WHERE provider_id=? ORDER BY id`), providerID)
	return out, err
}

func (r *FeedbackRepo) ForProvider(ctx context.Context, providerID int64) ([]domain.Feedback, error) {
	out := []domain.Feedback{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT id,transaction_id,provider_id,requester_id,rating,comment,created_at
		FROM feedback WHERE provider_id=?
		ORDER BY created_at DESC, id DESC`), providerID)
	return out, err
}
