// Package events publishes domain events for post, comment and like
// mutations.
package events

import (
	"context"
	"time"
)

const (
	PostCreated    = "post.created"
	PostDeleted    = "post.deleted"
	PostLiked      = "post.liked"
	PostUnliked    = "post.unliked"
	CommentCreated = "comment.created"
	CommentDeleted = "comment.deleted"
)

type Event struct {
	Type      string    `json:"type"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	CommentID int64     `json:"comment_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events. Publishing is best effort; callers log and
// carry on when it fails.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
