package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store bundles every repo over one executor. The root store runs on the pool;
// the store handed to an InTx callback runs on the open transaction.
type Store struct {
	db *sqlx.DB
	x  sqlx.ExtContext

	Users         *UserRepo
	Tags          *TagRepo
	Listings      *ListingRepo
	Availability  *AvailabilityRepo
	Applications  *ApplicationRepo
	Transactions  *TransactionRepo
	Feedback      *FeedbackRepo
	Notifications *NotificationRepo
}

func NewStore(db *sqlx.DB) *Store {
	s := newStore(db, false)
	s.db = db
	return s
}

func newStore(x sqlx.ExtContext, inTx bool) *Store {
	lock := ""
	if inTx && x.DriverName() == "postgres" {
		lock = " FOR UPDATE"
	}
	return &Store{
		x:             x,
		Users:         &UserRepo{x: x, lock: lock},
		Tags:          &TagRepo{x: x},
		Listings:      &ListingRepo{x: x, lock: lock},
		Availability:  &AvailabilityRepo{x: x},
		Applications:  &ApplicationRepo{x: x},
		Transactions:  &TransactionRepo{x: x, lock: lock},
		Feedback:      &FeedbackRepo{x: x},
		Notifications: &NotificationRepo{x: x},
	}
}

// DB returns the underlying pool; nil on a transaction-scoped store.
func (s *Store) DB() *sqlx.DB { return s.db }

// InTx runs fn inside one database transaction and commits when fn returns nil.
// Inside fn only the store passed in may be used; the sqlite pool has a single
// connection and the root store would block on it.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newStore(tx, true)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err came from a unique constraint or index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// inClause expands "IN (?)" for a slice argument and rebinds for the driver.
func inClause(x sqlx.ExtContext, query string, args ...any) (string, []any, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return x.Rebind(q), a, nil
}
