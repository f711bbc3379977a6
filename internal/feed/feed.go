// Package feed turns stored posts and comments into the views the API
// serves: counts, the viewer's liked flag, comment previews and pages.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"photoshare/internal/models"
)

const (
	PerPage         = 20
	PreviewComments = 3
)

// Source is the read side of the data store.
type Source interface {
	ListPosts(ctx context.Context, f models.PostFilter, limit, offset int) ([]models.Post, error)
	CountPosts(ctx context.Context, f models.PostFilter) (int, error)
	RecentComments(ctx context.Context, postIDs []int64, perPost int) (map[int64][]models.Comment, error)
	LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	ListComments(ctx context.Context, postID int64, limit, offset int) ([]models.Comment, error)
	CountComments(ctx context.Context, postID int64) (int, error)
}

type UserView struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Username     *string `json:"username"`
	ProfilePhoto *string `json:"profile_photo"`
}

type CommentView struct {
	ID        int64    `json:"id"`
	Content   string   `json:"content"`
	CreatedAt string   `json:"created_at"`
	User      UserView `json:"user"`
}

type PostView struct {
	ID            int64         `json:"id"`
	Caption       *string       `json:"caption"`
	ImageURL      string        `json:"image_url"`
	LikesCount    int           `json:"likes_count"`
	CommentsCount int           `json:"comments_count"`
	IsLiked       bool          `json:"is_liked"`
	CreatedAt     string        `json:"created_at"`
	User          UserView      `json:"user"`
	Comments      []CommentView `json:"comments"`
}

type Assembler struct {
	src       Source
	imageBase string
	now       func() time.Time
}

// NewAssembler builds views whose image URLs are rooted at imageBase.
func NewAssembler(src Source, imageBase string) *Assembler {
	return &Assembler{src: src, imageBase: strings.TrimRight(imageBase, "/"), now: time.Now}
}

func (a *Assembler) ImageURL(path string) string {
	return a.imageBase + "/" + strings.TrimLeft(path, "/")
}

func (a *Assembler) ago(t time.Time) string {
	return humanize.RelTime(t, a.now(), "ago", "from now")
}

func author(u models.Author) UserView {
	return UserView{ID: u.ID, Name: u.Name, Username: u.Username, ProfilePhoto: u.ProfilePhoto}
}

func (a *Assembler) ProjectComment(c models.Comment) CommentView {
	return CommentView{
		ID:        c.ID,
		Content:   c.Content,
		CreatedAt: a.ago(c.CreatedAt),
		User:      author(c.User),
	}
}

// ProjectPost builds a post view from a post, its newest comments and
// whether the viewer likes it.
func (a *Assembler) ProjectPost(p models.Post, recent []models.Comment, liked bool) PostView {
	if len(recent) > PreviewComments {
		recent = recent[:PreviewComments]
	}
	comments := make([]CommentView, 0, len(recent))
	for _, c := range recent {
		comments = append(comments, a.ProjectComment(c))
	}
	return PostView{
		ID:            p.ID,
		Caption:       p.Caption,
		ImageURL:      a.ImageURL(p.ImagePath),
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		IsLiked:       liked,
		CreatedAt:     a.ago(p.CreatedAt),
		User:          author(p.User),
		Comments:      comments,
	}
}

// Post projects a single post for viewer, which may be nil.
func (a *Assembler) Post(ctx context.Context, p models.Post, viewer *int64) (PostView, error) {
	views, err := a.project(ctx, []models.Post{p}, viewer)
	if err != nil {
		return PostView{}, err
	}
	return views[0], nil
}

// Feed lists every post newest first.
func (a *Assembler) Feed(ctx context.Context, page int, viewer *int64) (Page[PostView], error) {
	return a.posts(ctx, models.PostFilter{}, page, viewer)
}

// UserFeed lists one user's posts newest first.
func (a *Assembler) UserFeed(ctx context.Context, userID int64, page int, viewer *int64) (Page[PostView], error) {
	return a.posts(ctx, models.PostFilter{UserID: &userID}, page, viewer)
}

func (a *Assembler) Comments(ctx context.Context, postID int64, page int) (Page[CommentView], error) {
	page = NormalizePage(page)
	total, err := a.src.CountComments(ctx, postID)
	if err != nil {
		return Page[CommentView]{}, err
	}
	if Offset(page, PerPage) >= total {
		return NewPage([]CommentView{}, page, PerPage, total), nil
	}
	comments, err := a.src.ListComments(ctx, postID, PerPage, Offset(page, PerPage))
	if err != nil {
		return Page[CommentView]{}, err
	}
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, a.ProjectComment(c))
	}
	return NewPage(views, page, PerPage, total), nil
}

func (a *Assembler) posts(ctx context.Context, f models.PostFilter, page int, viewer *int64) (Page[PostView], error) {
	page = NormalizePage(page)
	total, err := a.src.CountPosts(ctx, f)
	if err != nil {
		return Page[PostView]{}, err
	}
	if Offset(page, PerPage) >= total {
		return NewPage([]PostView{}, page, PerPage, total), nil
	}
	posts, err := a.src.ListPosts(ctx, f, PerPage, Offset(page, PerPage))
	if err != nil {
		return Page[PostView]{}, err
	}
	views, err := a.project(ctx, posts, viewer)
	if err != nil {
		return Page[PostView]{}, err
	}
	return NewPage(views, page, PerPage, total), nil
}

// project loads comment previews and liked flags for the whole batch in
// one query each.
func (a *Assembler) project(ctx context.Context, posts []models.Post, viewer *int64) ([]PostView, error) {
	if len(posts) == 0 {
		return []PostView{}, nil
	}
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	recent, err := a.src.RecentComments(ctx, ids, PreviewComments)
	if err != nil {
		return nil, err
	}
	liked := map[int64]bool{}
	if viewer != nil {
		if liked, err = a.src.LikedPostIDs(ctx, *viewer, ids); err != nil {
			return nil, err
		}
	}
	views := make([]PostView, len(posts))
	for i, p := range posts {
		views[i] = a.ProjectPost(p, recent[p.ID], liked[p.ID])
	}
	return views, nil
}
