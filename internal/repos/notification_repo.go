package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"timebank/internal/domain"
)

type NotificationRepo struct{ x sqlx.ExtContext }

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	return sqlx.GetContext(ctx, r.x, &n.ID, r.x.Rebind(`
		INSERT INTO notifications(user_id,message,url,is_read,created_at) VALUES(?,?,?,?,?) RETURNING id`),
		n.UserID, n.Message, n.URL, n.IsRead, n.CreatedAt)
}

func (r *NotificationRepo) ByID(ctx context.Context, id int64) (*domain.Notification, error) {
	var n domain.Notification
	err := sqlx.GetContext(ctx, r.x, &n, r.x.Rebind(`
		SELECT id,user_id,message,url,is_read,created_at FROM notifications WHERE id=?`), id)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ForUser lists the user's notifications newest first.
func (r *NotificationRepo) ForUser(ctx context.Context, userID int64) ([]domain.Notification, error) {
	out := []domain.Notification{}
	err := sqlx.SelectContext(ctx, r.x, &out, r.x.Rebind(`
		SELECT id,user_id,message,url,is_read,created_at FROM notifications
		WHERE user_id=? ORDER BY created_at DESC, id DESC`), userID)
	return out, err
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.x, &n, r.x.Rebind(`
		SELECT COUNT(*) FROM notifications WHERE user_id=? AND is_read=?`), userID, false)
	return n, err
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id int64) error {
	_, err := r.x.ExecContext(ctx, r.x.Rebind(`UPDATE notifications SET is_read=? WHERE id=?`), true, id)
	return err
}
