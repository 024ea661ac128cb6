package repos

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"timebank/internal/domain"
)

// OpenDB opens the entity store. A postgres:// DSN selects lib/pq, anything
// else is treated as a sqlite path (":memory:" included).
func OpenDB(dsn string) (*sqlx.DB, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	} else if !strings.Contains(dsn, "?") {
		dsn += "?_time_format=sqlite"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// One connection: sqlite transactions serialize, and :memory: stays a single database.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if err := seedTags(db); err != nil {
		return nil, fmt.Errorf("seed tags: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == "postgres" {
		schema = postgresSchema
	}
	_, err := db.Exec(schema)
	return err
}

const sqliteSchema = `
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 5000;

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  multiplier REAL NOT NULL DEFAULT 1.0 CHECK (multiplier BETWEEN 0.5 AND 2.0),
  avg_rating REAL NOT NULL DEFAULT 0.0,
  accumulated_credit_minutes REAL NOT NULL DEFAULT 0.0,
  created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id INTEGER NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at DATETIME,
  last_seen  DATETIME
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Catalog
CREATE TABLE IF NOT EXISTS tags(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  category TEXT NOT NULL,
  name TEXT NOT NULL,
  UNIQUE(category, name)
);

-- Listings
CREATE TABLE IF NOT EXISTS listings(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  creator_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  category TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL,
  image TEXT NOT NULL DEFAULT '',
  listing_type TEXT NOT NULL CHECK (listing_type IN ('Offer','Request')),
  duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
  status TEXT NOT NULL DEFAULT 'Available',
  posted_at DATETIME NOT NULL,
  edited_at DATETIME NOT NULL,
  UNIQUE(creator_id, title),
  CHECK ((listing_type = 'Offer'   AND status IN ('Available','In Progress','Completed'))
      OR (listing_type = 'Request' AND status IN ('Available','Fulfilled','Closed')))
);
CREATE INDEX IF NOT EXISTS idx_listings_creator_posted ON listings(creator_id, posted_at);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);

CREATE TABLE IF NOT EXISTS listing_tags(
  listing_id INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
  PRIMARY KEY(listing_id, tag_id)
);

CREATE TABLE IF NOT EXISTS listing_availability(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  listing_id INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  from_time DATETIME NOT NULL,
  to_time DATETIME NOT NULL,
  CHECK (from_time < to_time)
);

-- Applications
CREATE TABLE IF NOT EXISTS applications(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  listing_id INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  applicant_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  message TEXT NOT NULL DEFAULT 'Applied',
  status INTEGER NOT NULL DEFAULT 1 CHECK (status IN (1,2,3)),
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL,
  UNIQUE(listing_id, applicant_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_one_accepted ON applications(listing_id) WHERE status = 2;
CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications(applicant_id);

-- Transactions
CREATE TABLE IF NOT EXISTS transactions(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  listing_id INTEGER NULL REFERENCES listings(id) ON DELETE SET NULL,
  provider_id INTEGER NOT NULL REFERENCES users(id),
  requester_id INTEGER NOT NULL REFERENCES users(id),
  duration_minutes INTEGER NOT NULL,
  multiplier REAL NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('Pending','Completed','Cancelled')),
  feedback_given BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL,
  completed_at DATETIME NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_one_pending ON transactions(listing_id) WHERE status = 'Pending';
CREATE INDEX IF NOT EXISTS idx_transactions_provider ON transactions(provider_id, status);

-- Feedback
CREATE TABLE IF NOT EXISTS feedback(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  transaction_id INTEGER NOT NULL UNIQUE REFERENCES transactions(id),
  provider_id INTEGER NOT NULL REFERENCES users(id),
  requester_id INTEGER NOT NULL REFERENCES users(id),
  rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
  comment TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_provider ON feedback(provider_id);

-- Notifications
CREATE TABLE IF NOT EXISTS notifications(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  message TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  is_read BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users(
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0 CHECK (multiplier BETWEEN 0.5 AND 2.0),
  avg_rating NUMERIC(3,2) NOT NULL DEFAULT 0.00,
  accumulated_credit_minutes DOUBLE PRECISION NOT NULL DEFAULT 0.0,
  created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id BIGINT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ,
  last_seen  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS tags(
  id BIGSERIAL PRIMARY KEY,
  category TEXT NOT NULL,
  name TEXT NOT NULL,
  UNIQUE(category, name)
);

CREATE TABLE IF NOT EXISTS listings(
  id BIGSERIAL PRIMARY KEY,
  creator_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  category TEXT NOT NULL,
  title VARCHAR(50) NOT NULL,
  description TEXT NOT NULL,
  image TEXT NOT NULL DEFAULT '',
  listing_type TEXT NOT NULL CHECK (listing_type IN ('Offer','Request')),
  duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
  status TEXT NOT NULL DEFAULT 'Available',
  posted_at TIMESTAMPTZ NOT NULL,
  edited_at TIMESTAMPTZ NOT NULL,
  UNIQUE(creator_id, title),
  CHECK ((listing_type = 'Offer'   AND status IN ('Available','In Progress','Completed'))
      OR (listing_type = 'Request' AND status IN ('Available','Fulfilled','Closed')))
);
CREATE INDEX IF NOT EXISTS idx_listings_creator_posted ON listings(creator_id, posted_at);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);

CREATE TABLE IF NOT EXISTS listing_tags(
  listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
  PRIMARY KEY(listing_id, tag_id)
);

CREATE TABLE IF NOT EXISTS listing_availability(
  id BIGSERIAL PRIMARY KEY,
  listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  from_time TIMESTAMPTZ NOT NULL,
  to_time TIMESTAMPTZ NOT NULL,
  CHECK (from_time < to_time)
);

CREATE TABLE IF NOT EXISTS applications(
  id BIGSERIAL PRIMARY KEY,
  listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  applicant_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  message TEXT NOT NULL DEFAULT 'Applied',
  status SMALLINT NOT NULL DEFAULT 1 CHECK (status IN (1,2,3)),
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE(listing_id, applicant_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_one_accepted ON applications(listing_id) WHERE status = 2;
CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications(applicant_id);

CREATE TABLE IF NOT EXISTS transactions(
  id BIGSERIAL PRIMARY KEY,
  listing_id BIGINT NULL REFERENCES listings(id) ON DELETE SET NULL,
  provider_id BIGINT NOT NULL REFERENCES users(id),
  requester_id BIGINT NOT NULL REFERENCES users(id),
  duration_minutes INTEGER NOT NULL,
  multiplier DOUBLE PRECISION NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('Pending','Completed','Cancelled')),
  feedback_given BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  completed_at TIMESTAMPTZ NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_one_pending ON transactions(listing_id) WHERE status = 'Pending';
CREATE INDEX IF NOT EXISTS idx_transactions_provider ON transactions(provider_id, status);

CREATE TABLE IF NOT EXISTS feedback(
  id BIGSERIAL PRIMARY KEY,
  transaction_id BIGINT NOT NULL UNIQUE REFERENCES transactions(id),
  provider_id BIGINT NOT NULL REFERENCES users(id),
  requester_id BIGINT NOT NULL REFERENCES users(id),
  rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
  comment TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_provider ON feedback(provider_id);

CREATE TABLE IF NOT EXISTS notifications(
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  message TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  is_read BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);
`

// defaultTags gives every category a handful of tags on a fresh database.
var defaultTags = map[domain.Category][]string{
	domain.CatGraphics:  {"Logo Design", "Illustration", "UI Design"},
	domain.CatTech:      {"Web Development", "Python", "Go", "Databases"},
	domain.CatMarketing: {"SEO", "Social Media"},
	domain.CatVideo:     {"Video Editing", "Animation"},
	domain.CatWriting:   {"Copywriting", "Translation", "Proofreading"},
	domain.CatMusic:     {"Mixing", "Lessons"},
	domain.CatBusiness:  {"Consulting", "Planning"},
	domain.CatFinance:   {"Bookkeeping", "Tax Help"},
	domain.CatAI:        {"Prompt Engineering", "Model Training"},
	domain.CatGrowth:    {"Tutoring", "Coaching", "Language Exchange"},
}

// seedTags inserts the default catalog if the tags table is empty.
func seedTags(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM tags`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting default tags")

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range domain.Categories() {
		for _, name := range defaultTags[c.ID] {
			if _, err := tx.Exec(tx.Rebind(`INSERT INTO tags(category,name) VALUES(?,?)`), string(c.ID), name); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// SeedDemoUsers ensures a few demo accounts exist (idempotent).
func SeedDemoUsers(ctx context.Context, db *sqlx.DB) error {
	type u struct {
		Username, Email, Name, Hash string
	}
	mk := func(username, name, raw string) (u, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(raw), 12)
		return u{Username: username, Email: username + "@timebank.test", Name: name, Hash: string(h)}, err
	}

	var users []u
	for _, x := range [][2]string{{"alice", "Alice"}, {"bob", "Bob"}, {"carol", "Carol"}} {
		v, err := mk(x[0], x[1], "Passw0rd!")
		if err != nil {
			return err
		}
		users = append(users, v)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, x := range users {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users(username,email,name,password_hash,created_at)
			VALUES(?,?,?,?,?)
			ON CONFLICT(username) DO NOTHING
		`), x.Username, x.Email, x.Name, x.Hash, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
