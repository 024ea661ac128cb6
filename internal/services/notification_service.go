package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"

	"timebank/internal/apperr"
	"timebank/internal/domain"
	"timebank/internal/metrics"
	"timebank/internal/repos"
)

// Deliverer is the outbound channel (mail, push) for notifications that
// have been committed. Delivery is fire-and-forget.
type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification)
}

// LogDeliverer writes each outbound notification as a log line.
type LogDeliverer struct {
	Log logrus.FieldLogger
}

func (d LogDeliverer) Deliver(_ context.Context, n domain.Notification) {
	l := d.Log
	if l == nil {
		l = logrus.StandardLogger()
	}
	l.WithFields(logrus.Fields{"user_id": n.UserID, "notification_id": n.ID, "url": n.URL}).Info(n.Message)
}

// outbox collects notifications written inside a store transaction so they can
// be delivered once the transaction commits.
type outbox struct {
	at    Clock
	items []domain.Notification
}

func (o *outbox) add(ctx context.Context, tx *repos.Store, userID int64, msg, url string) error {
	n := domain.Notification{UserID: userID, Message: msg, URL: url, CreatedAt: o.at()}
	if err := tx.Notifications.Create(ctx, &n); err != nil {
		return err
	}
	o.items = append(o.items, n)
	return nil
}

type NotificationService struct {
	Store   *repos.Store
	Deliver Deliverer
}

func NewNotificationService(store *repos.Store, d Deliverer) *NotificationService {
	if d == nil {
		d = LogDeliverer{}
	}
	return &NotificationService{Store: store, Deliver: d}
}

// dispatch hands committed notifications to the outbound channel.
func (s *NotificationService) dispatch(ctx context.Context, o *outbox) {
	for _, n := range o.items {
		s.Deliver.Deliver(ctx, n)
		metrics.RecordNotification()
	}
}

func (s *NotificationService) List(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return s.Store.Notifications.ForUser(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.Store.Notifications.UnreadCount(ctx, userID)
}

// MarkRead flips is_read on one of the user's notifications.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	n, err := s.Store.Notifications.ByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("notification", id)
	}
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return apperr.Forbidden("read this notification")
	}
	if n.IsRead {
		return nil
	}
	return s.Store.Notifications.MarkRead(ctx, id)
}
