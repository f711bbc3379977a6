package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Store is the relational data store for users, sessions, posts,
// comments and likes.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock returns a copy of the store that stamps rows using now.
func (s *Store) WithClock(now func() time.Time) *Store {
	return &Store{db: s.db, now: now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

// q rebinds a query written with ? placeholders for the active driver.
func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// uniqueViolation reports the column behind a unique constraint failure,
// or "" when err is something else.
func uniqueViolation(err error) string {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		// UNIQUE constraint failed: users.email
		msg := liteErr.Error()
		if i := strings.LastIndexByte(msg, '.'); i >= 0 {
			return msg[i+1:]
		}
		return msg
	}
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// users_email_key
		c := strings.TrimSuffix(pgErr.Constraint, "_key")
		if i := strings.IndexByte(c, '_'); i >= 0 {
			return c[i+1:]
		}
		return c
	}
	return ""
}
