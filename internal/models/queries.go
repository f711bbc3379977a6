package models

import (
	"context"
	"time"
)

type NewUser struct {
	Name         string
	Username     *string
	Email        string
	PasswordHash string
}

const userColumns = `id, name, username, email, password_hash, bio, profile_photo, created_at`

func (s *Store) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	u := User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    s.stamp(),
	}
	err := s.db.QueryRowxContext(ctx,
		s.q(`INSERT INTO users (name, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		u.Name, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		switch uniqueViolation(err) {
		case "email":
			return nil, ErrDuplicateEmail
		case "username":
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE email = ?`), email); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := s.db.GetContext(ctx, &u, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) CountPostsByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM posts WHERE user_id = ?`), userID)
	return n, err
}

// CreateSession records a bearer token session. Other sessions of the
// same user stay valid.
func (s *Store) CreateSession(ctx context.Context, userID int64, sessionID string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`),
		sessionID, userID, s.stamp(), expires.UTC(),
	)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.GetContext(ctx, &sess,
		s.q(`SELECT id, user_id, created_at, expires_at, revoked_at FROM sessions WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`), s.stamp(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
