package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type ApplicationRepo struct{ x sqlx.ExtContext }

const applicationCols = `a.id,a.listing_id,a.applicant_id,u.username AS applicant,a.message,a.status,a.created_at,a.updated_at`

func (r *ApplicationRepo) Create(ctx context.Context, a *domain.Application) error {
	return sqlx.GetContext(ctx, r.x, &a.ID, r.x.Rebind(`
		INSERT INTO applications(listing_id,applicant_id,message,status,created_at,updated_at)
		VALUES(?,?,?,?,?,?) RETURNING id`),
		a.ListingID, a.ApplicantID, a.Message, int(a.Status), a.CreatedAt, a.UpdatedAt)
}

func (r *ApplicationRepo) ByID(ctx context.Context, id int64) (*domain.Application, error) {
	var a domain.Application
	err := sqlx.GetContext(ctx, r.x, &a, r.x.Rebind(`
		SELECT `+applicationCols+`
		FROM applications a JOIN users u ON u.id=a.applicant_id
		WHERE a.id=?`), id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApplicationRepo) Exists(ctx context.Context, listingID, applicantID int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.x, &n, r.x.Rebind(`
		SELECT COUNT(*) FROM applications WHERE listing_id=? AND applicant_id=?`), listingID, applicantID)
	return n > 0, err
}

// Accepted returns the listing's accepted application, or nil when none exists.
func (r *ApplicationRepo) Accepted(ctx context.Context, listingID int64) (*domain.Application, error) {
	var out []domain.Application
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT `+applicationCols+`
		FROM applications a JOIN users u ON u.id=a.applicant_id
		WHERE a.listing_id=? AND a.status=?`), listingID, int(domain.AppAccepted))
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return &out[0], nil
}

func (r *ApplicationRepo) ForListing(ctx context.Context, listingID int64) ([]domain.Application, error) {
	out := []domain.Application{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT `+applicationCols+`
		FROM applications a JOIN users u ON u.id=a.applicant_id
		WHERE a.listing_id=?
		ORDER BY a.created_at, a.id`), listingID)
	return out, err
}

// ForApplicant lists a user's own applications, newest first.
func (r *ApplicationRepo) ForApplicant(ctx context.Context, applicantID int64) ([]domain.Application, error) {
	out := []domain.Application{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT `+applicationCols+`
		FROM applications a JOIN users u ON u.id=a.applicant_id
		WHERE a.applicant_id=?
		ORDER BY a.created_at DESC, a.id DESC`), applicantID)
	return out, err
}

func (r *ApplicationRepo) SetStatus(ctx context.Context, id int64, status domain.ApplicationStatus, message string, at time.Time) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`
		UPDATE applications SET status=?, message=?, updated_at=? WHERE id=?`), int(status), message, at, id)
	return err
}

// RejectOthers rejects every application on the listing except keepID.
func (r *ApplicationRepo) RejectOthers(ctx context.Context, listingID, keepID int64, at time.Time) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`
		UPDATE applications SET status=?, message=?, updated_at=? WHERE listing_id=? AND id<>?`),
		int(domain.AppRejected), "Rejected", at, listingID, keepID)
	return err
}

func (r *ApplicationRepo) DeleteForListing(ctx context.Context, listingID int64) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM applications WHERE listing_id=?`), listingID)
	return err
}
