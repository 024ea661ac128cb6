package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type ListingRepo struct {
	x    sqlx.ExtContext
	lock string
}

// ListingRow is a listing joined with its creator's username.
type ListingRow struct {
	domain.Listing
	Creator string `db:"creator"`
}

type ListingFilter struct {
	Category  domain.Category
	Type      domain.ListingType
	Status    domain.ListingStatus
	CreatorID int64
	Query     string
	Limit     int
	Offset    int
}

const listingCols = `l.id,l.creator_id,l.category,l.title,l.description,l.image,l.listing_type,
	l.duration_minutes,l.status,l.posted_at,l.edited_at,u.username AS creator`

func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	return sqlx.GetContext(ctx, r.x, &l.ID, r.x.Rebind(`
		INSERT INTO listings(creator_id,category,title,description,image,listing_type,duration_minutes,status,posted_at,edited_at)
		VALUES(?,?,?,?,?,?,?,?,?,?) RETURNING id`),
		l.CreatorID, string(l.Category), l.Title, l.Description, l.Image, string(l.Type),
		l.DurationMinutes, string(l.Status), l.PostedAt, l.EditedAt)
}

func (r *ListingRepo) ByID(ctx context.Context, id int64) (*ListingRow, error) {
	var l ListingRow
	err := sqlx.GetContext(ctx, r.x, &l, r.x.Rebind(`
		SELECT `+listingCols+`
		FROM listings l JOIN users u ON u.id=l.creator_id
		WHERE l.id=?`), id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ForUpdate reads the bare listing row, locking it on postgres.
func (r *ListingRepo) ForUpdate(ctx context.Context, id int64) (*domain.Listing, error) {
	var l domain.Listing
	err := sqlx.GetContext(ctx, r.x, &l, r.x.Rebind(`
		SELECT id,creator_id,category,title,description,image,listing_type,duration_minutes,status,posted_at,edited_at
		FROM listings WHERE id=?`+r.lock), id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingRepo) CountByCreator(ctx context.Context, creatorID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.x, &n, r.x.Rebind(`SELECT COUNT(*) FROM listings WHERE creator_id=?`), creatorID)
	return n, err
}

// TitleTaken reports whether the creator owns another listing with exactly this title.
func (r *ListingRepo) TitleTaken(ctx context.Context, creatorID int64, title string, exceptID int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.x, &n, r.x.Rebind(`
		SELECT COUNT(*) FROM listings WHERE creator_id=? AND title=? AND id<>?`), creatorID, title, exceptID)
	return n > 0, err
}

// LatestPostedAt returns the creator's most recent posted_at, or nil without listings.
func (r *ListingRepo) LatestPostedAt(ctx context.Context, creatorID int64) (*time.Time, error) {
	var t time.Time
	err := sqlx.GetContext(ctx, r.x, &t, r.x.Rebind(`
		SELECT posted_at FROM listings WHERE creator_id=? ORDER BY posted_at DESC, id DESC LIMIT 1`), creatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update rewrites every mutable column of l.
func (r *ListingRepo) Update(ctx context.Context, l *domain.Listing) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`
		UPDATE listings
		SET category=?, title=?, description=?, image=?, listing_type=?, duration_minutes=?, status=?, edited_at=?
		WHERE id=?`),
		string(l.Category), l.Title, l.Description, l.Image, string(l.Type), l.DurationMinutes,
		string(l.Status), l.EditedAt, l.ID)
	return err
}

func (r *ListingRepo) SetStatus(ctx context.Context, id int64, status domain.ListingStatus, at time.Time) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`UPDATE listings SET status=?, edited_at=? WHERE id=?`), string(status), at, id)
	return err
}

// Delete removes the listing; tags and availability cascade.
func (r *ListingRepo) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM listings WHERE id=?`), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetTags replaces the listing's tag set.
func (r *ListingRepo) SetTags(ctx context.Context, id int64, tagIDs []int64) error {
	if _, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM listing_tags WHERE listing_id=?`), id); err != nil {
		return err
	}
	for _, tid := range tagIDs {
		if _, err := r.x.ExecContext(ctx, r.x.Rebind(`INSERT INTO listing_tags(listing_id,tag_id) VALUES(?,?)`), id, tid); err != nil {
			return err
		}
	}
	return nil
}

// TagsFor loads the tags of several listings at once, keyed by listing id.
func (r *ListingRepo) TagsFor(ctx context.Context, ids []int64) (map[int64][]domain.Tag, error) {
	out := map[int64][]domain.Tag{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := inClause(r.x, `
		SELECT lt.listing_id, t.id, t.category, t.name
		FROM listing_tags lt JOIN tags t ON t.id=lt.tag_id
		WHERE lt.listing_id IN (?)
		ORDER BY t.name`, ids)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ListingID int64 `db:"listing_id"`
		domain.Tag
	}
	if err := sqlx.SelectContext(ctx, r.x, &rows, q, args...); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ListingID] = append(out[row.ListingID], row.Tag)
	}
	return out, nil
}

// Search lists listings newest first. Query matches title or description.
func (r *ListingRepo) Search(ctx context.Context, f ListingFilter) ([]ListingRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		where = append(where, "l.category=?")
		args = append(args, string(f.Category))
	}
	if f.Type != "" {
		where = append(where, "l.listing_type=?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		where = append(where, "l.status=?")
		args = append(args, string(f.Status))
	}
	if f.CreatorID != 0 {
		where = append(where, "l.creator_id=?")
		args = append(args, f.CreatorID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(LOWER(l.title) LIKE ? OR LOWER(l.description) LIKE ?)")
		like := "%" + strings.ToLower(q) + "%"
		args = append(args, like, like)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + listingCols + ` FROM listings l JOIN users u ON u.id=l.creator_id`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY l.posted_at DESC, l.id DESC LIMIT ? OFFSET ?")
	args = append(args, f.Limit, f.Offset)

	out := []ListingRow{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(sb.String()), args...)
	return out, err
}

// AppliedBy lists the listings a user has applied to, newest application first.
func (r *ListingRepo) AppliedBy(ctx context.Context, userID int64) ([]ListingRow, error) {
	out := []ListingRow{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT `+listingCols+`
		FROM applications a
		JOIN listings l ON l.id=a.listing_id
		JOIN users u ON u.id=l.creator_id
		WHERE a.applicant_id=?
		ORDER BY a.created_at DESC, a.id DESC`), userID)
	return out, err
}
