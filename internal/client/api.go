// Package client is the client-side state layer for the photoshare API: a
// typed HTTP client, the signed-in session and an in-memory feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"photoshare/internal/feed"
)

// APIError is any non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

type User struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Username     *string `json:"username"`
	Email        string  `json:"email"`
	Bio          *string `json:"bio"`
	ProfilePhoto *string `json:"profile_photo"`
	PostsCount   int     `json:"posts_count"`
}

type RegisterInput struct {
	Name                 string  `json:"name"`
	Username             *string `json:"username,omitempty"`
	Email                string  `json:"email"`
	Password             string  `json:"password"`
	PasswordConfirmation string  `json:"password_confirmation"`
}

type AuthResult struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

type LikeState struct {
	IsLiked    bool `json:"is_liked"`
	LikesCount int  `json:"likes_count"`
}

type PostPage = feed.Page[feed.PostView]
type CommentPage = feed.Page[feed.CommentView]

// API is a typed client for every endpoint under /api.
type API struct {
	base string
	hc   *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI targets base, e.g. "http://localhost:8080/api".
func NewAPI(base string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{base: strings.TrimRight(base, "/"), hc: hc}
}

func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *API) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tok := a.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string              `json:"message"`
			Errors  map[string][]string `json:"errors"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Message, apiErr.Fields = payload.Message, payload.Errors
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *API) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	return a.do(ctx, method, path, body, "application/json", out)
}

func pageQuery(page int) string {
	if page <= 1 {
		return ""
	}
	return "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
}

func (a *API) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	var out AuthResult
	if err := a.doJSON(ctx, http.MethodPost, "/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	in := map[string]string{"email": email, "password": password}
	if err := a.doJSON(ctx, http.MethodPost, "/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Logout(ctx context.Context) error {
	return a.doJSON(ctx, http.MethodPost, "/logout", nil, nil)
}

func (a *API) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := a.doJSON(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (a *API) Posts(ctx context.Context, page int) (*PostPage, error) {
	var out PostPage
	if err := a.doJSON(ctx, http.MethodGet, "/posts"+pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UserPosts(ctx context.Context, userID int64, page int) (*PostPage, error) {
	var out PostPage
	path := "/users/" + strconv.FormatInt(userID, 10) + "/posts" + pageQuery(page)
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}

func (a *API) Post(ctx context.Context, id int64) (*feed.PostView, error) {
	var out struct {
		Post feed.PostView `json:"post"`
	}
	if err := a.doJSON(ctx, http.MethodGet, postPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

// CreatePost uploads image as a multipart form. An empty caption is sent as
// no caption.
func (a *API) CreatePost(ctx context.Context, caption, filename string, image io.Reader) (*feed.PostView, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var out struct {
		Post feed.PostView `json:"post"`
	}
	if err := a.do(ctx, http.MethodPost, "/posts", &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

func (a *API) UpdatePost(ctx context.Context, id int64, caption *string) (*feed.PostView, error) {
	var out struct {
		Post feed.PostView `json:"post"`
	}
	in := map[string]*string{"caption": caption}
	if err := a.doJSON(ctx, http.MethodPut, postPath(id), in, &out); err != nil {
		return nil, err
	}
	return &out.Post, nil
}

func (a *API) DeletePost(ctx context.Context, id int64) error {
	return a.doJSON(ctx, http.MethodDelete, postPath(id), nil, nil)
}

func (a *API) ToggleLike(ctx context.Context, id int64) (*LikeState, error) {
	var out LikeState
	if err := a.doJSON(ctx, http.MethodPost, postPath(id)+"/like", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Comments(ctx context.Context, postID int64, page int) (*CommentPage, error) {
	var out CommentPage
	if err := a.doJSON(ctx, http.MethodGet, postPath(postID)+"/comments"+pageQuery(page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) AddComment(ctx context.Context, postID int64, content string) (*feed.CommentView, error) {
	var out struct {
		Comment feed.CommentView `json:"comment"`
	}
	in := map[string]string{"content": content}
	if err := a.doJSON(ctx, http.MethodPost, postPath(postID)+"/comments", in, &out); err != nil {
		return nil, err
	}
	return &out.Comment, nil
}

func (a *API) DeleteComment(ctx context.Context, id int64) error {
	return a.doJSON(ctx, http.MethodDelete, "/comments/"+strconv.FormatInt(id, 10), nil, nil)
}
