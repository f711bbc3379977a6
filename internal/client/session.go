package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

type State int

const (
	Loading State = iota
	Unauthenticated
	Authenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Session tracks who is signed in. It starts Loading until Restore has
// resolved the stored token.
type Session struct {
	api    *API
	tokens TokenStore

	mu    sync.RWMutex
	state State
	user  *User
}

func NewSession(api *API, tokens TokenStore) *Session {
	return &Session{api: api, tokens: tokens, state: Loading}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) set(state State, user *User) {
	s.mu.Lock()
	s.state, s.user = state, user
	s.mu.Unlock()
}

// Restore resolves the stored token through Me. Any failure discards the
// token and leaves the session Unauthenticated. Error responses from the
// server are not returned; transport errors are, so callers can report an
// unreachable server.
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.tokens.Load()
	if err != nil {
		s.set(Unauthenticated, nil)
		return err
	}
	if token == "" {
		s.set(Unauthenticated, nil)
		return nil
	}
	s.api.SetToken(token)
	u, err := s.api.Me(ctx)
	if err != nil {
		s.api.SetToken("")
		s.set(Unauthenticated, nil)
		if cerr := s.tokens.Clear(); cerr != nil {
			return cerr
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil
		}
		return err
	}
	s.set(Authenticated, u)
	return nil
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.signIn(res)
}

func (s *Session) Register(ctx context.Context, in RegisterInput) error {
	res, err := s.api.Register(ctx, in)
	if err != nil {
		return err
	}
	return s.signIn(res)
}

func (s *Session) signIn(res *AuthResult) error {
	if err := s.tokens.Save(res.Token); err != nil {
		return err
	}
	s.api.SetToken(res.Token)
	u := res.User
	s.set(Authenticated, &u)
	return nil
}

// Logout clears the token once the server has revoked it, or when the
// server no longer accepts it. Other failures leave the session as is.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil && !isUnauthorized(err) {
		return err
	}
	if err := s.tokens.Clear(); err != nil {
		return err
	}
	s.api.SetToken("")
	s.set(Unauthenticated, nil)
	return nil
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
