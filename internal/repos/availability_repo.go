package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type AvailabilityRepo struct{ x sqlx.ExtContext }

func (r *AvailabilityRepo) Add(ctx context.Context, a *domain.Availability) error {
	return sqlx.GetContext(ctx, r.x, &a.ID, r.x.Rebind(`
		INSERT INTO listing_availability(listing_id,from_time,to_time) VALUES(?,?,?) RETURNING id`),
		a.ListingID, a.From, a.To)
}

func (r *AvailabilityRepo) ForListing(ctx context.Context, listingID int64) ([]domain.Availability, error) {
	out := []domain.Availability{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT id,listing_id,from_time,to_time FROM listing_availability
		WHERE listing_id=? ORDER BY from_time, id`), listingID)
	return out, err
}

func (r *AvailabilityRepo) DeleteForListing(ctx context.Context, listingID int64) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM listing_availability WHERE listing_id=?`), listingID)
	return err
}
