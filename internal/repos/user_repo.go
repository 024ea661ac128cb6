package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type UserRepo struct {
	x    sqlx.ExtContext
	lock string
}

const userCols = `id,username,email,name,password_hash,multiplier,avg_rating,accumulated_credit_minutes,created_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.Multiplier == 0 {
		u.Multiplier = 1.0
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return sqlx.GetContext(ctx, r.x, &u.ID, r.x.Rebind(`
		INSERT INTO users(username,email,name,password_hash,multiplier,created_at)
		VALUES(?,?,?,?,?,?) RETURNING id`),
		u.Username, u.Email, u.Name, u.Hash, u.Multiplier, u.CreatedAt)
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.x, &u, r.x.Rebind(`SELECT `+userCols+` FROM users WHERE id=?`), id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ForUpdate reads the user and, on postgres, row-locks it for the transaction.
func (r *UserRepo) ForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.x, &u, r.x.Rebind(`SELECT `+userCols+` FROM users WHERE id=?`+r.lock), id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ByLogin matches either the username or the email, case-insensitively.
func (r *UserRepo) ByLogin(ctx context.Context, login string) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.x, &u, r.x.Rebind(`
		SELECT `+userCols+` FROM users
		WHERE LOWER(username)=LOWER(?) OR LOWER(email)=LOWER(?)`), login, login)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateReputation writes the three derived reputation fields.
func (r *UserRepo) UpdateReputation(ctx context.Context, id int64, avg, multiplier, creditMinutes float64) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`
		UPDATE users SET avg_rating=?, multiplier=?, accumulated_credit_minutes=? WHERE id=?`),
		avg, multiplier, creditMinutes, id)
	return err
}

func (r *UserRepo) BindSession(ctx context.Context, sid string, userID int64) error {
	now := time.Now().UTC()
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`
		INSERT INTO sessions(id,user_id,created_at,last_seen) VALUES(?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,last_seen=excluded.last_seen`),
		sid, userID, now, now)
	return err
}

func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.x, &u, r.x.Rebind(`
		SELECT u.id,u.username,u.email,u.name,u.password_hash,u.multiplier,u.avg_rating,
		       u.accumulated_credit_minutes,u.created_at
		FROM sessions s
		JOIN users u ON u.id=s.user_id
		WHERE s.id=?`), sid)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`UPDATE sessions SET user_id=NULL,last_seen=? WHERE id=?`),
		time.Now().UTC(), sid)
	return err
}
