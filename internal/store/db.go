// Package store persists user profiles, skills and tracked applications in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/internship-recommender/internal/dates"
)

var (
	// ErrNotFound is returned when the requested row does not exist for the user.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned for input the store refuses to persist.
	ErrInvalid = errors.New("invalid input")
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type DB struct {
	Pool *sql.DB
	now  dates.Clock
}

type Option func(*DB)

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(clock dates.Clock) Option {
	return func(d *DB) {
		if clock != nil {
			d.now = clock
		}
	}
}

// Open connects to the database at path and applies pending migrations.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pool.SetMaxOpenConns(1)
	pool.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db := &DB{Pool: pool, now: dates.SystemClock}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}

// migrations lists the statements of each schema version, in order.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS profiles (
  user_id TEXT PRIMARY KEY,
  education TEXT NOT NULL DEFAULT '',
  sector TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  skills TEXT NOT NULL DEFAULT '[]',
  updated_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS skills (
  user_id TEXT PRIMARY KEY,
  tech_skills TEXT NOT NULL DEFAULT '[]',
  soft_skills TEXT NOT NULL DEFAULT '[]',
  updated_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS applications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  source_type TEXT NOT NULL DEFAULT 'manual',
  source_id TEXT NOT NULL DEFAULT '',
  source_key TEXT,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  duration TEXT NOT NULL DEFAULT '',
  stipend INTEGER NOT NULL DEFAULT 0,
  application_deadline TEXT,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'applied',
  priority TEXT NOT NULL DEFAULT 'medium',
  applied_date TEXT NOT NULL,
  interview_date TEXT,
  follow_up_date TEXT,
  notes TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		// NULL source keys never collide, so manual entries without a key can repeat.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_user_source_key
  ON applications(user_id, source_key);`,
		`CREATE INDEX IF NOT EXISTS idx_applications_user_updated
  ON applications(user_id, updated_at DESC);`,
	},
}

// Migrate brings the schema up to date, tracking the version in PRAGMA user_version.
func (d *DB) Migrate(ctx context.Context) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		for _, stmt := range migrations[i] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %d: %w", i+1, err)
			}
		}
	}

	if version < len(migrations) {
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, len(migrations))); err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
	}

	return tx.Commit()
}

func (d *DB) timestamp() string {
	return formatTime(d.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func scanNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
