package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"photoshare/internal/apperr"
	"photoshare/internal/events"
	"photoshare/internal/models"
)

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// wrap turns a handler's returned error into a JSON error response.
func (s *Server) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if errors.Is(err, models.ErrNotFound) {
			ae = apperr.NotFoundf("Resource")
		} else {
			ae = apperr.Wrap(err)
		}
	}
	if ae.Kind == apperr.KindInternal {
		s.log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
	}
	writeJSON(w, apperr.Status(ae.Kind), errorBody{Message: ae.Message, Errors: ae.Fields})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into T. An empty body decodes as the zero value.
func decode[T any](r *http.Request) (T, error) {
	var t T
	err := json.NewDecoder(r.Body).Decode(&t)
	if err != nil && !errors.Is(err, io.EOF) {
		return t, &apperr.Error{Kind: apperr.KindValidation, Message: "The request body must be valid JSON.", Err: err}
	}
	return t, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// helpers
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func pathID(r *http.Request) int64 {
	n, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return n
}

func pageParam(r *http.Request) int {
	return atoi(r.URL.Query().Get("page"))
}

// optional maps blank strings to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func (s *Server) publish(ctx context.Context, e events.Event) {
	e.At = time.Now().UTC()
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", e.Type).Warn("publish event")
	}
}
