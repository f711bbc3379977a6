package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"photoshare/internal/apperr"
	"photoshare/internal/auth"
	"photoshare/internal/models"
)

// viewer is the authenticated caller and the session its token names.
type viewer struct {
	user      *models.User
	sessionID string
}

func (v *viewer) id() *int64 {
	if v == nil {
		return nil
	}
	return &v.user.ID
}

type authedFunc func(http.ResponseWriter, *http.Request, *viewer) error

// middleware
func (s *Server) requireAuth(next authedFunc) http.HandlerFunc {
	return s.wrap(func(w http.ResponseWriter, r *http.Request) error {
		v, err := s.currentUser(r)
		if err != nil {
			return err
		}
		if v == nil {
			return apperr.Unauthenticated()
		}
		return next(w, r, v)
	})
}

// currentUser resolves the bearer token. A missing or invalid token is an
// anonymous caller, not an error.
func (s *Server) currentUser(r *http.Request) (*viewer, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil
	}
	id, err := s.tokens.Verify(r.Context(), token)
	if errors.Is(err, auth.ErrInvalidToken) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUserByID(r.Context(), id.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &viewer{user: u, sessionID: id.SessionID}, nil
}

// authorize is the single ownership check for every mutation.
func authorize(v *viewer, ownerID int64) error {
	if v == nil || v.user.ID != ownerID {
		return apperr.Forbidden()
	}
	return nil
}

type registerRequest struct {
	Name                 string  `json:"name" validate:"required,max=255"`
	Username             *string `json:"username" validate:"omitempty,max=30,handle"`
	Email                string  `json:"email" validate:"required,email,max=255"`
	Password             string  `json:"password" validate:"required,min=6"`
	PasswordConfirmation string  `json:"password_confirmation" validate:"eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func profile(u *models.User) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"name":          u.Name,
		"username":      u.Username,
		"email":         u.Email,
		"bio":           u.Bio,
		"profile_photo": u.ProfilePhoto,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	in, err := decode[registerRequest](r)
	if err != nil {
		return err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Username = optional(in.Username)
	if err := s.check(in); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return err
	}
	u, err := s.store.CreateUser(r.Context(), models.NewUser{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		return apperr.Conflict("email", "The email has already been taken.")
	case errors.Is(err, models.ErrDuplicateUsername):
		return apperr.Conflict("username", "The username has already been taken.")
	case err != nil:
		return err
	}

	token, err := s.tokens.Issue(r.Context(), u.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful",
		"user":    map[string]any{"id": u.ID, "name": u.Name, "email": u.Email},
		"token":   token,
	})
	return nil
}

func (s *Server) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Check(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrInvalidCredentials
	}
	return u, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	in, err := decode[loginRequest](r)
	if err != nil {
		return err
	}
	in.Email = normalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return err
	}

	u, err := s.authenticate(r.Context(), in.Email, in.Password)
	if errors.Is(err, models.ErrInvalidCredentials) {
		return apperr.Field("email", "The provided credentials are incorrect.")
	}
	if err != nil {
		return err
	}
	token, err := s.tokens.Issue(r.Context(), u.ID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    profile(u),
		"token":   token,
	})
	return nil
}

// handleLogout revokes only the session behind the presented token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, v *viewer) error {
	err := s.tokens.Revoke(r.Context(), v.sessionID)
	if errors.Is(err, auth.ErrInvalidToken) {
		return apperr.Unauthenticated()
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
	return nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, v *viewer) error {
	n, err := s.store.CountPostsByUser(r.Context(), v.user.ID)
	if err != nil {
		return err
	}
	user := profile(v.user)
	user["posts_count"] = n
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
	return nil
}
