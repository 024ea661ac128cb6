package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type TagRepo struct{ x sqlx.ExtContext }

// List returns tags ordered by category then name; an empty category lists all.
func (r *TagRepo) List(ctx context.Context, category domain.Category) ([]domain.Tag, error) {
	out := []domain.Tag{}
	var err error
	if category == "" {
		err = sqlx.SelectContext(ctx, r.x, &out, `SELECT id,category,name FROM tags ORDER BY category,name`)
	} else {
		err = sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`SELECT id,category,name FROM tags WHERE category=? ORDER BY name`), string(category))
	}
	return out, err
}

func (r *TagRepo) ByIDs(ctx context.Context, ids []int64) ([]domain.Tag, error) {
	out := []domain.Tag{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := inClause(r.x, `SELECT id,category,name FROM tags WHERE id IN (?) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	err = sqlx.SelectContext(ctx, r.x, &out, q, args...)
	return out, err
}

// GetOrCreate returns the id of (category, name), inserting it when missing.
func (r *TagRepo) GetOrCreate(ctx context.Context, category domain.Category, name string) (int64, bool, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.x, &id, r.x.Rebind(`SELECT id FROM tags WHERE category=? AND name=?`), string(category), name)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	err = sqlx.GetContext(ctx, r.x, &id, r.x.Rebind(`INSERT INTO tags(category,name) VALUES(?,?) RETURNING id`), string(category), name)
	return id, err == nil, err
}
