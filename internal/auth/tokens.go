// Package auth issues and verifies bearer tokens backed by session rows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"photoshare/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// SessionStore is the slice of the data store tokens depend on.
type SessionStore interface {
	CreateSession(ctx context.Context, userID int64, sessionID string, expires time.Time) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	RevokeSession(ctx context.Context, id string) error
}

// Identity is who a verified token belongs to.
type Identity struct {
	UserID    int64
	SessionID string
}

type Tokens struct {
	secret   []byte
	ttl      time.Duration
	sessions SessionStore
	now      func() time.Time
}

func NewTokens(secret string, ttl time.Duration, sessions SessionStore) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, sessions: sessions, now: time.Now}
}

// Issue records a new session for userID and returns its signed token.
func (t *Tokens) Issue(ctx context.Context, userID int64) (string, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	sid := uuid.NewString()
	if err := t.sessions.CreateSession(ctx, userID, sid, expires); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	claims := jwt.RegisteredClaims{
		ID:        sid,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks the signature and expiry, then that the session row is
// still live. Any failure is ErrInvalidToken except store outages.
func (t *Tokens) Verify(ctx context.Context, token string) (*Identity, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	sess, err := t.sessions.GetSession(ctx, claims.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != uid || sess.RevokedAt != nil || !sess.ExpiresAt.After(t.now()) {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: uid, SessionID: sess.ID}, nil
}

// Revoke ends one session. Other tokens of the same user stay valid.
func (t *Tokens) Revoke(ctx context.Context, sessionID string) error {
	err := t.sessions.RevokeSession(ctx, sessionID)
	if errors.Is(err, models.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}
