package client

import (
	"context"
	"io"
	"sync"

	"photoshare/internal/feed"
)

// Feed is the in-memory first page of posts. Local state changes only
// after a successful response.
type Feed struct {
	api *API

	mu    sync.Mutex
	posts []feed.PostView
	total int
}

func NewFeed(api *API) *Feed {
	return &Feed{api: api}
}

// Refresh replaces the post list with the server's first page.
func (f *Feed) Refresh(ctx context.Context) error {
	page, err := f.api.Posts(ctx, 1)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.posts = page.Data
	f.total = page.Total
	f.mu.Unlock()
	return nil
}

func (f *Feed) Posts() []feed.PostView {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]feed.PostView, len(f.posts))
	copy(out, f.posts)
	return out
}

func (f *Feed) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// ToggleLike patches only the liked flag and count of post id from the
// server's answer.
func (f *Feed) ToggleLike(ctx context.Context, id int64) (*LikeState, error) {
	st, err := f.api.ToggleLike(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	for i := range f.posts {
		if f.posts[i].ID == id {
			f.posts[i].IsLiked = st.IsLiked
			f.posts[i].LikesCount = st.LikesCount
			break
		}
	}
	f.mu.Unlock()
	return st, nil
}

func (f *Feed) CreatePost(ctx context.Context, caption, filename string, image io.Reader) (*feed.PostView, error) {
	p, err := f.api.CreatePost(ctx, caption, filename, image)
	if err != nil {
		return nil, err
	}
	return p, f.Refresh(ctx)
}

func (f *Feed) DeletePost(ctx context.Context, id int64) error {
	if err := f.api.DeletePost(ctx, id); err != nil {
		return err
	}
	return f.Refresh(ctx)
}

func (f *Feed) AddComment(ctx context.Context, postID int64, content string) (*feed.CommentView, error) {
	c, err := f.api.AddComment(ctx, postID, content)
	if err != nil {
		return nil, err
	}
	return c, f.Refresh(ctx)
}
