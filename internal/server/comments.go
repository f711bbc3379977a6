package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"photoshare/internal/apperr"
	"photoshare/internal/events"
	"photoshare/internal/models"
)

type commentRequest struct {
	Content string `json:"content" validate:"required,max=500"`
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) error {
	p, err := s.loadPost(r)
	if err != nil {
		return err
	}
	page, err := s.feed.Comments(r.Context(), p.ID, pageParam(r))
	if err != nil {
		return err
	}
	page.Link(s.baseURL + "/api/posts/" + strconv.FormatInt(p.ID, 10) + "/comments")
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request, v *viewer) error {
	in, err := decode[commentRequest](r)
	if err != nil {
		return err
	}
	in.Content = strings.TrimSpace(in.Content)
	if err := s.check(in); err != nil {
		return err
	}

	c, err := s.store.CreateComment(r.Context(), pathID(r), v.user.ID, in.Content)
	if errors.Is(err, models.ErrNotFound) {
		return apperr.NotFoundf("Post")
	}
	if err != nil {
		return err
	}
	s.metrics.CommentsCreated.Inc()
	s.publish(r.Context(), events.Event{Type: events.CommentCreated, PostID: c.PostID, UserID: v.user.ID, CommentID: c.ID})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Comment added successfully",
		"comment": s.feed.ProjectComment(*c),
	})
	return nil
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request, v *viewer) error {
	c, err := s.store.GetComment(r.Context(), pathID(r))
	if errors.Is(err, models.ErrNotFound) {
		return apperr.NotFoundf("Comment")
	}
	if err != nil {
		return err
	}
	if err := authorize(v, c.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteComment(r.Context(), c.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return apperr.NotFoundf("Comment")
		}
		return err
	}
	s.publish(r.Context(), events.Event{Type: events.CommentDeleted, PostID: c.PostID, UserID: v.user.ID, CommentID: c.ID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Comment deleted successfully"})
	return nil
}
