package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photoshare/internal/auth"
	"photoshare/internal/blob"
	"photoshare/internal/db"
	"photoshare/internal/events"
	"photoshare/internal/feed"
	"photoshare/internal/logging"
	"photoshare/internal/models"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Publish(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) Close() error { return nil }

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Open(db.DriverSQLite, filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("db open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := models.NewStore(database)
	disk, err := blob.NewDisk(filepath.Join(dir, "storage"))
	require.NoError(t, err)

	return New(Deps{
		Store:         store,
		Blobs:         disk,
		Tokens:        auth.NewTokens("test-secret", time.Hour, store),
		Hasher:        auth.NewHasher(4),
		Events:        &eventLog{},
		Logger:        logging.NewWithOutput(io.Discard, "error", "text"),
		PublicBaseURL: "http://localhost",
		ImageBaseURL:  "http://localhost/storage",
		StorageDir:    disk.Root,
	})
}

func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type authResp struct {
	Token string `json:"token"`
	User  struct {
		ID int64 `json:"id"`
	} `json:"user"`
}

type errResp struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

type postResp struct {
	ID            int64   `json:"id"`
	Caption       *string `json:"caption"`
	ImageURL      string  `json:"image_url"`
	LikesCount    int     `json:"likes_count"`
	CommentsCount int     `json:"comments_count"`
	IsLiked       bool    `json:"is_liked"`
	Comments      []struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	} `json:"comments"`
}

type pageResp[T any] struct {
	CurrentPage int     `json:"current_page"`
	Data        []T     `json:"data"`
	Total       int     `json:"total"`
	LastPage    int     `json:"last_page"`
	NextPageURL *string `json:"next_page_url"`
}

func register(t *testing.T, srv *Server, name, email string) (string, int64) {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name": name, "email": email, "password": "secret", "password_confirmation": "secret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	r := decodeBody[authResp](t, w)
	require.NotEmpty(t, r.Token)
	return r.Token, r.User.ID
}

func uploadRequest(t *testing.T, token, caption string, img []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if caption != "" {
		require.NoError(t, mw.WriteField("caption", caption))
	}
	if img != nil {
		fw, err := mw.CreateFormFile("image", "upload.bin")
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func createPost(t *testing.T, srv *Server, token, caption string) postResp {
	t.Helper()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, token, caption, pngBytes))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[struct {
		Post postResp `json:"post"`
	}](t, w).Post
}

func TestRegisterLogin(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Alice", "A@B.com")

	w := do(t, srv, http.MethodPost, "/api/login", "", map[string]string{"email": "a@b.com", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[map[string]any](t, w)
	require.Equal(t, "Login successful", body["message"])
	user := body["user"].(map[string]any)
	require.Equal(t, "a@b.com", user["email"])
	require.NotContains(t, user, "password_hash")

	w = do(t, srv, http.MethodPost, "/api/login", "", map[string]string{"email": "a@b.com", "password": "nope"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decodeBody[errResp](t, w)
	require.Equal(t, []string{"The provided credentials are incorrect."}, e.Errors["email"])
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/register", "", map[string]string{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decodeBody[errResp](t, w)
	require.Contains(t, e.Errors, "name")
	require.Contains(t, e.Errors, "email")
	require.Contains(t, e.Errors, "password")

	w = do(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name": "A", "email": "a@b.com", "password": "secret", "password_confirmation": "other",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e = decodeBody[errResp](t, w)
	require.Equal(t, []string{"The password field confirmation does not match."}, e.Errors["password"])

	w = do(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name": "A", "email": "a@b.com", "password": "secret", "password_confirmation": "secret", "username": "bad handle!",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, decodeBody[errResp](t, w).Errors, "username")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "Alice", "a@b.com")

	w := do(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Imposter", "email": " A@b.com ", "password": "secret", "password_confirmation": "secret",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decodeBody[errResp](t, w)
	require.Equal(t, []string{"The email has already been taken."}, e.Errors["email"])

	u, err := srv.store.GetUserByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.Equal(t, "Alice", u.Name)
	_, err = srv.store.GetUserByID(context.Background(), u.ID+1)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/api/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Unauthenticated.", decodeBody[errResp](t, w).Message)

	w = do(t, srv, http.MethodPost, "/api/posts/1/like", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// optional-auth routes treat a bad token as anonymous
	w = do(t, srv, http.MethodGet, "/api/posts", "garbage", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	token, id := register(t, srv, "Alice", "a@b.com")
	createPost(t, srv, token, "one")
	createPost(t, srv, token, "two")

	w := do(t, srv, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[struct {
		User struct {
			ID         int64 `json:"id"`
			PostsCount int   `json:"posts_count"`
		} `json:"user"`
	}](t, w)
	require.Equal(t, id, body.User.ID)
	require.Equal(t, 2, body.User.PostsCount)
}

func TestLikeEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	tokenA, _ := register(t, srv, "Alice", "a@b.com")
	p := createPost(t, srv, tokenA, "hello")
	require.Equal(t, "hello", *p.Caption)
	require.True(t, strings.HasPrefix(p.ImageURL, "http://localhost/storage/posts/"))

	register(t, srv, "Bob", "b@b.com")
	w := do(t, srv, http.MethodPost, "/api/login", "", map[string]string{"email": "b@b.com", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	tokenB := decodeBody[authResp](t, w).Token

	path := fmt.Sprintf("/api/posts/%d", p.ID)
	w = do(t, srv, http.MethodPost, path+"/like", tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	like := decodeBody[map[string]any](t, w)
	require.Equal(t, true, like["is_liked"])
	require.Equal(t, float64(1), like["likes_count"])

	w = do(t, srv, http.MethodGet, path, tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[struct {
		Post postResp `json:"post"`
	}](t, w).Post
	require.True(t, got.IsLiked)
	require.Equal(t, 1, got.LikesCount)

	// the author has not liked it; anonymous never has
	w = do(t, srv, http.MethodGet, path, tokenA, nil)
	require.False(t, decodeBody[struct {
		Post postResp `json:"post"`
	}](t, w).Post.IsLiked)

	// toggling again restores the previous state
	w = do(t, srv, http.MethodPost, path+"/like", tokenB, nil)
	like = decodeBody[map[string]any](t, w)
	require.Equal(t, false, like["is_liked"])
	require.Equal(t, float64(0), like["likes_count"])

	w = do(t, srv, http.MethodPost, "/api/posts/999/like", tokenB, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	log := srv.events.(*eventLog)
	require.Equal(t, []string{events.PostCreated, events.PostLiked, events.PostUnliked}, log.types())
}

func TestOwnership(t *testing.T) {
	srv := newTestServer(t)
	tokenA, _ := register(t, srv, "Alice", "a@b.com")
	tokenB, _ := register(t, srv, "Bob", "b@b.com")
	p := createPost(t, srv, tokenA, "mine")
	path := fmt.Sprintf("/api/posts/%d", p.ID)

	w := do(t, srv, http.MethodPut, path, tokenB, map[string]string{"caption": "hijacked"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "This action is unauthorized.", decodeBody[errResp](t, w).Message)

	w = do(t, srv, http.MethodDelete, path, tokenB, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, srv, http.MethodPost, path+"/comments", tokenA, map[string]string{"content": "by alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	commentID := decodeBody[struct {
		Comment struct {
			ID int64 `json:"id"`
		} `json:"comment"`
	}](t, w).Comment.ID
	w = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/comments/%d", commentID), tokenB, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	// the owner can edit; a null caption clears it
	w = do(t, srv, http.MethodPut, path, tokenA, map[string]any{"caption": "edited"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "edited", *decodeBody[struct {
		Post postResp `json:"post"`
	}](t, w).Post.Caption)
	w = do(t, srv, http.MethodPut, path, tokenA, map[string]any{"caption": nil})
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, decodeBody[struct {
		Post postResp `json:"post"`
	}](t, w).Post.Caption)

	w = do(t, srv, http.MethodPut, path, tokenA, map[string]any{"caption": strings.Repeat("x", 2001)})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDeletePostCascade(t *testing.T) {
	srv := newTestServer(t)
	tokenA, _ := register(t, srv, "Alice", "a@b.com")
	tokenB, _ := register(t, srv, "Bob", "b@b.com")
	p := createPost(t, srv, tokenA, "doomed")
	path := fmt.Sprintf("/api/posts/%d", p.ID)

	for i := 0; i < 3; i++ {
		w := do(t, srv, http.MethodPost, path+"/comments", tokenB, map[string]string{"content": "nice"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	do(t, srv, http.MethodPost, path+"/like", tokenA, nil)
	do(t, srv, http.MethodPost, path+"/like", tokenB, nil)

	key := strings.TrimPrefix(p.ImageURL, "http://localhost/storage/")
	file := filepath.Join(srv.storageDir, filepath.FromSlash(key))
	_, err := os.Stat(file)
	require.NoError(t, err)

	w := do(t, srv, http.MethodDelete, path, tokenA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Post deleted successfully", decodeBody[errResp](t, w).Message)

	_, err = os.Stat(file)
	require.True(t, os.IsNotExist(err))

	w = do(t, srv, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	ctx := context.Background()
	n, err := srv.store.CountComments(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = srv.store.CountLikes(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFeedPagination(t *testing.T) {
	srv := newTestServer(t)
	token, id := register(t, srv, "Alice", "a@b.com")
	for i := 0; i < 25; i++ {
		createPost(t, srv, token, fmt.Sprintf("post %d", i))
	}

	w := do(t, srv, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeBody[pageResp[postResp]](t, w)
	require.Len(t, first.Data, 20)
	require.Equal(t, 25, first.Total)
	require.Equal(t, 2, first.LastPage)
	require.Equal(t, "http://localhost/api/posts?page=2", *first.NextPageURL)

	w = do(t, srv, http.MethodGet, "/api/posts?page=2", "", nil)
	second := decodeBody[pageResp[postResp]](t, w)
	require.Len(t, second.Data, 5)
	require.Nil(t, second.NextPageURL)

	all := append(first.Data, second.Data...)
	seen := map[int64]bool{}
	for i, p := range all {
		require.False(t, seen[p.ID])
		seen[p.ID] = true
		if i > 0 {
			require.Greater(t, all[i-1].ID, p.ID)
		}
	}

	w = do(t, srv, http.MethodGet, fmt.Sprintf("/api/users/%d/posts?page=2", id), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeBody[pageResp[postResp]](t, w).Data, 5)

	w = do(t, srv, http.MethodGet, "/api/posts?page=461168601842738791", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	far := decodeBody[pageResp[postResp]](t, w)
	require.Empty(t, far.Data)
	require.Equal(t, feed.MaxPage, far.CurrentPage)
	require.Equal(t, 25, far.Total)

	w = do(t, srv, http.MethodGet, "/api/users/999/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	empty := decodeBody[pageResp[postResp]](t, w)
	require.Empty(t, empty.Data)
	require.NotNil(t, empty.Data)
	require.Zero(t, empty.Total)
	require.Equal(t, 1, empty.LastPage)
}

func TestCreatePostValidation(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "Alice", "a@b.com")

	cases := map[string][]byte{
		"text":    []byte("just some text, not an image"),
		"missing": nil,
	}
	for name, img := range cases {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, uploadRequest(t, token, "caption", img))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, name)
		require.Contains(t, decodeBody[errResp](t, w).Errors, "image", name)
	}

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, token, strings.Repeat("x", 2001), pngBytes))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, decodeBody[errResp](t, w).Errors, "caption")

	for _, img := range [][]byte{[]byte("GIF89a\x01\x00\x01\x00"), []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, uploadRequest(t, token, "", img))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	entries, err := os.ReadDir(filepath.Join(srv.storageDir, "posts"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestComments(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "Alice", "a@b.com")
	p := createPost(t, srv, token, "p")
	path := fmt.Sprintf("/api/posts/%d", p.ID)

	w := do(t, srv, http.MethodPost, path+"/comments", token, map[string]string{"content": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = do(t, srv, http.MethodPost, path+"/comments", token, map[string]string{"content": strings.Repeat("x", 501)})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = do(t, srv, http.MethodPost, "/api/posts/999/comments", token, map[string]string{"content": "hi"})
	require.Equal(t, http.StatusNotFound, w.Code)

	var ids []int64
	for i := 0; i < 4; i++ {
		w = do(t, srv, http.MethodPost, path+"/comments", token, map[string]string{"content": fmt.Sprintf("c%d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody[map[string]any](t, w)
		require.Equal(t, "Comment added successfully", body["message"])
		ids = append(ids, int64(body["comment"].(map[string]any)["id"].(float64)))
	}

	w = do(t, srv, http.MethodGet, path, "", nil)
	got := decodeBody[struct {
		Post postResp `json:"post"`
	}](t, w).Post
	require.Equal(t, 4, got.CommentsCount)
	require.Len(t, got.Comments, 3)
	require.Equal(t, "c3", got.Comments[0].Content)

	w = do(t, srv, http.MethodGet, path+"/comments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[pageResp[map[string]any]](t, w)
	require.Equal(t, 4, list.Total)

	w = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/comments/%d", ids[0]), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, srv, http.MethodDelete, fmt.Sprintf("/api/comments/%d", ids[0]), token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, path, "", nil)
	require.Equal(t, 3, decodeBody[struct {
		Post postResp `json:"post"`
	}](t, w).Post.CommentsCount)

	w = do(t, srv, http.MethodGet, "/api/posts/999/comments", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogoutRevokesOnlyCurrentToken(t *testing.T) {
	srv := newTestServer(t)
	first, _ := register(t, srv, "Alice", "a@b.com")
	w := do(t, srv, http.MethodPost, "/api/login", "", map[string]string{"email": "a@b.com", "password": "secret"})
	second := decodeBody[authResp](t, w).Token

	w = do(t, srv, http.MethodPost, "/api/logout", first, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Logout successful", decodeBody[errResp](t, w).Message)

	w = do(t, srv, http.MethodGet, "/api/me", first, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, srv, http.MethodGet, "/api/me", second, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestOperationalRoutes(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "Alice", "a@b.com")
	p := createPost(t, srv, token, "served")

	w := do(t, srv, http.MethodGet, "/up", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, strings.TrimPrefix(p.ImageURL, "http://localhost"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, pngBytes, w.Body.Bytes())

	w = do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `photoshare_http_requests_total{method="POST",route="/api/register",status="201"} 1`)
	require.Contains(t, w.Body.String(), "photoshare_posts_created_total 1")

	w = do(t, srv, http.MethodGet, "/api/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
