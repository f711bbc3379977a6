package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"photoshare/internal/apperr"
	"photoshare/internal/blob"
	"photoshare/internal/events"
	"photoshare/internal/models"
)

const (
	maxUploadSize = 50 << 20
	// multipart overhead allowed on top of the image itself
	maxFormOverhead = 1 << 20
)

var allowedImages = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

type captionRequest struct {
	Caption *string `json:"caption" validate:"omitempty,max=2000"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) error {
	v, err := s.currentUser(r)
	if err != nil {
		return err
	}
	page, err := s.feed.Feed(r.Context(), pageParam(r), v.id())
	if err != nil {
		return err
	}
	page.Link(s.baseURL + "/api/posts")
	writeJSON(w, http.StatusOK, page)
	return nil
}

// handleUserPosts lists one user's posts. An unknown user has no posts and
// gets an empty page.
func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) error {
	id := pathID(r)
	v, err := s.currentUser(r)
	if err != nil {
		return err
	}
	page, err := s.feed.UserFeed(r.Context(), id, pageParam(r), v.id())
	if err != nil {
		return err
	}
	page.Link(s.baseURL + "/api/users/" + strconv.FormatInt(id, 10) + "/posts")
	writeJSON(w, http.StatusOK, page)
	return nil
}

func (s *Server) loadPost(r *http.Request) (*models.Post, error) {
	p, err := s.store.GetPost(r.Context(), pathID(r))
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperr.NotFoundf("Post")
	}
	return p, err
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) error {
	p, err := s.loadPost(r)
	if err != nil {
		return err
	}
	v, err := s.currentUser(r)
	if err != nil {
		return err
	}
	view, err := s.feed.Post(r.Context(), *p, v.id())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": view})
	return nil
}

// upload is a validated image ready to be stored.
type upload struct {
	file        io.ReadSeeker
	size        int64
	contentType string
	ext         string
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, v *viewer) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+maxFormOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.Field("image", "The image field must not be greater than 51200 kilobytes.")
		}
		return apperr.Field("image", "The image field is required.")
	}
	defer r.MultipartForm.RemoveAll()

	fields := map[string][]string{}
	in := captionRequest{}
	if vals, ok := r.MultipartForm.Value["caption"]; ok && len(vals) > 0 {
		in.Caption = optional(&vals[0])
	}
	if err := s.check(in); err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			return err
		}
		for k, msgs := range ae.Fields {
			fields[k] = msgs
		}
	}

	up, closeFile, msg := readImage(r)
	if closeFile != nil {
		defer closeFile()
	}
	if msg != "" {
		fields["image"] = []string{msg}
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}

	key := blob.NewKey("posts", up.ext)
	if err := s.blobs.Put(r.Context(), key, up.contentType, up.file, up.size); err != nil {
		return err
	}
	p, err := s.store.CreatePost(r.Context(), v.user.ID, in.Caption, key)
	if err != nil {
		if derr := s.blobs.Delete(r.Context(), key); derr != nil {
			s.log.WithError(derr).WithField("key", key).Warn("remove orphaned image")
		}
		return err
	}
	s.metrics.PostsCreated.Inc()
	s.publish(r.Context(), events.Event{Type: events.PostCreated, PostID: p.ID, UserID: v.user.ID})

	view, err := s.feed.Post(r.Context(), *p, v.id())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Post created successfully",
		"post":    view,
	})
	return nil
}

// readImage sniffs the uploaded image. It returns a non-empty message when
// the upload is missing or not an accepted image type.
func readImage(r *http.Request) (*upload, func() error, string) {
	file, hdr, err := r.FormFile("image")
	if err != nil {
		return nil, nil, "The image field is required."
	}
	if hdr.Size > maxUploadSize {
		return nil, file.Close, "The image field must not be greater than 51200 kilobytes."
	}
	mt, err := mimetype.DetectReader(file)
	if err != nil || !allowedImages[mt.String()] {
		return nil, file.Close, "The image field must be a file of type: jpeg, png, jpg, gif."
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, file.Close, "The image failed to upload."
	}
	return &upload{file: file, size: hdr.Size, contentType: mt.String(), ext: mt.Extension()}, file.Close, ""
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request, v *viewer) error {
	in, err := decode[captionRequest](r)
	if err != nil {
		return err
	}
	in.Caption = optional(in.Caption)
	if err := s.check(in); err != nil {
		return err
	}

	p, err := s.loadPost(r)
	if err != nil {
		return err
	}
	if err := authorize(v, p.UserID); err != nil {
		return err
	}
	p, err = s.store.UpdateCaption(r.Context(), p.ID, in.Caption)
	if err != nil {
		return err
	}
	view, err := s.feed.Post(r.Context(), *p, v.id())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Post updated successfully",
		"post":    view,
	})
	return nil
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, v *viewer) error {
	p, err := s.loadPost(r)
	if err != nil {
		return err
	}
	if err := authorize(v, p.UserID); err != nil {
		return err
	}
	imagePath, err := s.store.DeletePost(r.Context(), p.ID)
	if errors.Is(err, models.ErrNotFound) {
		return apperr.NotFoundf("Post")
	}
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(r.Context(), imagePath); err != nil {
		s.log.WithError(err).WithField("key", imagePath).Warn("remove image")
	}
	s.publish(r.Context(), events.Event{Type: events.PostDeleted, PostID: p.ID, UserID: v.user.ID})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted successfully"})
	return nil
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request, v *viewer) error {
	postID := pathID(r)
	liked, count, err := s.store.ToggleLike(r.Context(), v.user.ID, postID)
	if errors.Is(err, models.ErrNotFound) {
		return apperr.NotFoundf("Post")
	}
	if err != nil {
		return err
	}
	s.metrics.Liked(liked)
	typ := events.PostUnliked
	if liked {
		typ = events.PostLiked
	}
	s.publish(r.Context(), events.Event{Type: typ, PostID: postID, UserID: v.user.ID})
	writeJSON(w, http.StatusOK, map[string]any{"is_liked": liked, "likes_count": count})
	return nil
}
